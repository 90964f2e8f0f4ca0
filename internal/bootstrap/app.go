package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/analyses"
	"docextract-backend/internal/docintel"
	"docextract-backend/internal/services/health"
	"docextract-backend/internal/shared/config"
	"docextract-backend/internal/shared/server"
	"docextract-backend/internal/shared/server/middleware"
	"docextract-backend/internal/shared/telemetry"
	"docextract-backend/internal/uploads"
)

const redisPingTimeout = 2 * time.Second

// App holds shared dependencies and the wired router.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	Orchestrator    *analyses.Orchestrator
	Issuer          *uploads.Issuer
	Limiter         middleware.Limiter
	AnalysisHandler *analyses.Handler
	UploadHandler   *uploads.Handler
	Health          *health.Service

	closers []func() error
}

// Build prepares dependencies and the router. Services with missing
// configuration are left nil and their routes answer 500.
func Build(cfg config.Config) (*App, error) {
	telemetry.Configure(os.Stdout, cfg.LogLevel)
	ctx := context.Background()

	app := &App{Config: cfg}

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		return nil, err
	}
	app.Orchestrator = orch

	issuer, err := buildIssuer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Issuer = issuer

	if err := app.buildLimiter(ctx); err != nil {
		return nil, err
	}

	app.AnalysisHandler = analyses.NewHandler(app.Orchestrator)
	app.UploadHandler = uploads.NewHandler(app.Issuer)
	var store health.Pinger
	if p, ok := app.Limiter.(health.Pinger); ok {
		store = p
	}
	app.Health = health.NewService(app.Orchestrator != nil, app.Issuer != nil, store)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
		UploadHandler:   app.UploadHandler,
		Health:          app.Health,
		Limiter:         app.Limiter,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":               cfg.Env,
		"docintel":          app.Orchestrator != nil,
		"docintel_auth":     cfg.DocIntel.AuthMode,
		"storage":           app.Issuer != nil,
		"storage_provider":  cfg.Storage.Provider,
		"rate_limit_rps":    cfg.RateLimitRPS,
		"rate_limit_shared": cfg.RedisURL != "",
	})
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

func buildOrchestrator(cfg config.Config) (*analyses.Orchestrator, error) {
	if !cfg.DocIntel.Configured() {
		telemetry.Warn("bootstrap.docintel.unconfigured", map[string]any{
			"auth_mode": cfg.DocIntel.AuthMode,
		})
		return nil, nil
	}

	var auth docintel.Authorizer
	switch cfg.DocIntel.AuthMode {
	case "entra":
		auth = docintel.NewEntraAuth(cfg.DocIntel.TenantID, cfg.DocIntel.ClientID, cfg.DocIntel.ClientSecret)
	default:
		auth = docintel.KeyAuth{Key: cfg.DocIntel.Key}
	}

	client, err := docintel.NewClient(cfg.DocIntel.Endpoint, auth, docintel.WithAPIVersion(cfg.DocIntel.APIVersion))
	if err != nil {
		return nil, fmt.Errorf("docintel client: %w", err)
	}
	return analyses.NewOrchestrator(client, analyses.Options{
		MaxAttempts: cfg.Poll.MaxAttempts,
		Interval:    cfg.Poll.Interval,
	}), nil
}

func buildIssuer(ctx context.Context, cfg config.Config) (*uploads.Issuer, error) {
	if !cfg.Storage.Configured() {
		telemetry.Warn("bootstrap.storage.unconfigured", map[string]any{
			"provider": cfg.Storage.Provider,
		})
		return nil, nil
	}

	var (
		signer uploads.Signer
		err    error
	)
	switch cfg.Storage.Provider {
	case "s3":
		signer, err = uploads.NewS3Signer(ctx, cfg.Storage.AWSRegion, cfg.Storage.S3Bucket)
	default:
		signer, err = uploads.NewAzureSigner(cfg.Storage.AzureAccountName, cfg.Storage.AzureAccountKey, cfg.Storage.AzureContainer)
	}
	if err != nil {
		return nil, fmt.Errorf("%s signer: %w", cfg.Storage.Provider, err)
	}
	return uploads.NewIssuer(signer, cfg.Uploads.AllowedExts, cfg.Uploads.TTL), nil
}

func (a *App) buildLimiter(ctx context.Context) error {
	redisURL := strings.TrimSpace(a.Config.RedisURL)
	if a.Config.RateLimitRPS <= 0 || redisURL == "" {
		return nil
	}
	limiter, err := middleware.NewRedisLimiter(redisURL, nil)
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := limiter.Ping(pingCtx); err != nil {
		// Instances fall back to their own in-process buckets.
		telemetry.Warn("bootstrap.redis.unreachable", map[string]any{"err": err.Error()})
		_ = limiter.Close()
		return nil
	}
	a.Limiter = limiter
	a.closers = append(a.closers, limiter.Close)
	return nil
}
