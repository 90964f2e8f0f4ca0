package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/analyses"
	"docextract-backend/internal/services/health"
	"docextract-backend/internal/shared/config"
	"docextract-backend/internal/shared/metrics"
	"docextract-backend/internal/shared/server/middleware"
	"docextract-backend/internal/shared/server/respond"
	"docextract-backend/internal/shared/telemetry"
	"docextract-backend/internal/uploads"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupPolling = "POLLING"
)

// RouterDeps holds the handlers and shared components the router mounts.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	UploadHandler   *uploads.Handler
	Health          *health.Service
	// Limiter backs request throttling; nil uses an in-process limiter.
	Limiter middleware.Limiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	// ClientIP keys the throttles; forwarded headers count only from listed proxies.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		telemetry.Warn("router.trusted_proxies.invalid", map[string]any{"err": err.Error()})
		_ = r.SetTrustedProxies(nil)
	}
	r.TrustedPlatform = cfg.ClientIPHeader

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimit(rateLimitConfig(cfg, deps.Limiter)))
	}

	r.NoMethod(func(c *gin.Context) {
		respond.Error(c, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", nil)
	})
	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})

	api := r.Group("/api")
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(cfg.DocIntel.Configured(), cfg.Storage.Configured(), nil)
	}
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status(c.Request.Context()))
	})
	api.GET("/metrics", metrics.Handler())

	analysisHandler := deps.AnalysisHandler
	if analysisHandler == nil {
		analysisHandler = analyses.NewHandler(nil)
	}
	analysisHandler.RegisterRoutes(api)

	uploadHandler := deps.UploadHandler
	if uploadHandler == nil {
		uploadHandler = uploads.NewHandler(nil)
	}
	uploadHandler.RegisterRoutes(api)

	return r
}

// rateLimitConfig gives status checks a looser budget than submissions.
func rateLimitConfig(cfg config.Config, limiter middleware.Limiter) middleware.RateLimitConfig {
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}
	return middleware.RateLimitConfig{
		DefaultGroup: rateGroupDefault,
		Limiter:      limiter,
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodGet && strings.HasSuffix(c.FullPath(), "/analyses/status") {
				return rateGroupPolling
			}
			return rateGroupDefault
		},
		Rules: map[string]middleware.RateLimitRule{
			rateGroupDefault: {Rate: cfg.RateLimitRPS, Burst: burst},
			rateGroupPolling: {Rate: cfg.RateLimitRPS * 5, Burst: burst * 5},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
