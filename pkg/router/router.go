package router

import (
	"net/http"
	"strings"
	"time"

	"campus-found/backend/pkg/config"
	"campus-found/backend/pkg/errors"
	"campus-found/backend/pkg/health"
	"campus-found/backend/pkg/jwt"
	"campus-found/backend/pkg/logger"
	"campus-found/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Logger      *logger.Logger
	Config      *config.Config
	rateLimiter *middleware.RateLimiter
}

// New builds the gin engine with the shared middleware chain. The OpenAPI
// validator is installed here so that it runs for every route registered later.
func New(cfg *config.Config, log *logger.Logger) *Router {
	logger.SetGlobal(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(log))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	r := &Router{
		Engine: engine,
		Logger: log,
		Config: cfg,
		rateLimiter: middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
			Limit:          rate.Limit(cfg.Security.RateLimit),
			Burst:          cfg.Security.RateLimitBurst,
			ExpiryDuration: time.Hour,
		}),
	}

	if cfg.Observability.OpenAPISchema != "" {
		r.AddOpenAPIValidation(cfg.Observability.OpenAPISchema)
	}

	return r
}

// SetupHealthRoutes registers health check endpoints
func (r *Router) SetupHealthRoutes(checker *health.Checker) {
	r.Engine.GET("/health", checker.Handler())
	r.Engine.GET("/api/health", checker.Handler())
	r.Engine.GET("/api/v1/health", r.versionHandler())
}

// SetupMetrics exposes the Prometheus handler at /metrics
func (r *Router) SetupMetrics(handler http.Handler) {
	r.Engine.GET("/metrics", gin.WrapH(handler))
}

// Protected returns the /api/v1 group. Every request in it must carry an
// identity and is rate limited per participant.
func (r *Router) Protected(jwtService *jwt.Service) *gin.RouterGroup {
	v1 := r.Engine.Group("/api/v1")
	v1.Use(middleware.JWTAuthMiddleware(jwtService))
	v1.Use(r.rateLimiter.Middleware())
	return v1
}

// Close releases background resources held by the router
func (r *Router) Close() {
	r.rateLimiter.Stop()
}

func (r *Router) versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": r.Config.Observability.ServiceName,
			"env":     r.Config.Server.Env,
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// corsMiddleware also allows the headers browsers send on a WebSocket upgrade
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		origins[strings.TrimSuffix(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		switch {
		case origin != "" && origins[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Upgrade, Connection, Cache-Control, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
