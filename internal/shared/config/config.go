package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIVersion     = "2024-11-30"
	defaultAllowedExts    = "pdf,doc,docx"
	defaultSASTTLMinutes  = 15
	defaultPollAttempts   = 30
	defaultPollIntervalMs = 2000
	// API Gateway ends integrations at 30s; 12 attempts at 2s stays near 22s.
	lambdaPollAttempts = 12
)

// LambdaSourceIPHeader carries the caller address the Lambda entry point
// copies from the API Gateway request context.
const LambdaSourceIPHeader = "X-Lambda-Source-Ip"

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is honored.
	TrustedProxies []string
	// ClientIPHeader names a header set by the platform in front of the app.
	ClientIPHeader string

	DocIntel DocIntelConfig
	Poll     PollConfig
	Storage  StorageConfig
	Uploads  UploadsConfig

	RedisURL       string
	RateLimitRPS   float64
	RateLimitBurst int
}

// DocIntelConfig describes the remote document analysis service.
type DocIntelConfig struct {
	Endpoint     string
	Key          string
	APIVersion   string
	AuthMode     string
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Configured reports whether enough settings exist to call the service.
func (c DocIntelConfig) Configured() bool {
	if c.Endpoint == "" {
		return false
	}
	if c.AuthMode == "entra" {
		return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
	}
	return c.Key != ""
}

// PollConfig bounds the status polling loop.
type PollConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// StorageConfig selects and configures the blob store used for uploads.
type StorageConfig struct {
	Provider         string
	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string
	AWSRegion        string
	S3Bucket         string
}

// Configured reports whether the selected provider has its required settings.
func (c StorageConfig) Configured() bool {
	switch c.Provider {
	case "s3":
		return c.S3Bucket != ""
	default:
		return c.AzureAccountName != "" && c.AzureAccountKey != "" && c.AzureContainer != ""
	}
}

// UploadsConfig controls upload credential issuance.
type UploadsConfig struct {
	AllowedExts []string
	TTL         time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		loadYAMLFile(path)
	}

	pollAttempts := defaultPollAttempts
	clientIPHeader := ""
	if IsLambdaRuntime() {
		pollAttempts = lambdaPollAttempts
		clientIPHeader = LambdaSourceIPHeader
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             normalizeEnv(getEnv("ENV", "dev")),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGIN", "*")),
		TrustedProxies:  splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		ClientIPHeader:  getEnv("CLIENT_IP_HEADER", clientIPHeader),
		DocIntel: DocIntelConfig{
			Endpoint:     strings.TrimRight(strings.TrimSpace(os.Getenv("AZURE_DI_ENDPOINT")), "/"),
			Key:          strings.TrimSpace(os.Getenv("AZURE_DI_KEY")),
			APIVersion:   getEnv("AZURE_DI_API_VERSION", defaultAPIVersion),
			AuthMode:     normalizeAuthMode(getEnv("AZURE_DI_AUTH", "key")),
			TenantID:     getEnv("AZURE_TENANT_ID", ""),
			ClientID:     getEnv("AZURE_CLIENT_ID", ""),
			ClientSecret: getEnv("AZURE_CLIENT_SECRET", ""),
		},
		Poll: PollConfig{
			MaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", pollAttempts),
			Interval:    time.Duration(getEnvInt("POLL_INTERVAL_MS", defaultPollIntervalMs)) * time.Millisecond,
		},
		Storage: StorageConfig{
			Provider:         normalizeStoreType(getEnv("STORAGE_PROVIDER", "azure")),
			AzureAccountName: getEnv("AZURE_STORAGE_ACCOUNT_NAME", ""),
			AzureAccountKey:  getEnv("AZURE_STORAGE_ACCOUNT_KEY", ""),
			AzureContainer:   getEnv("AZURE_STORAGE_CONTAINER", ""),
			AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
			S3Bucket:         getEnv("UPLOADS_S3_BUCKET", ""),
		},
		Uploads: UploadsConfig{
			AllowedExts: lowerAll(splitAndTrim(getEnv("ALLOWED_UPLOAD_EXTS", defaultAllowedExts))),
			TTL:         time.Duration(getEnvInt("SAS_TTL_MINUTES", defaultSASTTLMinutes)) * time.Minute,
		},
		RedisURL:       getEnv("REDIS_URL", ""),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

// IsLambdaRuntime reports whether the current process is running in AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimPrefix(s, ".")))
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "azure"
	}
}

func normalizeAuthMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "entra", "aad", "oauth":
		return "entra"
	default:
		return "key"
	}
}
