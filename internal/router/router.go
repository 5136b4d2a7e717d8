package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/csssit/club-api/internal/handler"
	notificationHandler "github.com/csssit/club-api/internal/handler/notification"
	"github.com/csssit/club-api/internal/middleware"
	"github.com/csssit/club-api/internal/model"
	"github.com/csssit/club-api/internal/realtime"
	"github.com/csssit/club-api/pkg/metrics"
)

type Config struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	notifH  *notificationHandler.Handler
	healthH *handler.HealthHandler
	gateway *realtime.Gateway
	metrics *metrics.Metrics
	logger  zerolog.Logger
	config  Config
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	notifH *notificationHandler.Handler,
	healthH *handler.HealthHandler,
	gateway *realtime.Gateway,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:  gin.New(),
		auth:    auth,
		notifH:  notifH,
		healthH: healthH,
		gateway: gateway,
		metrics: m,
		logger:  logger,
		config:  config,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(r.requestMetrics())
	r.engine.Use(r.requestLog())

	r.healthH.RegisterRoutes(&r.engine.RouterGroup)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The handshake carries its own credential; the resolver decides.
	r.gateway.RegisterRoutes(&r.engine.RouterGroup)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  r.config.RateLimit,
		Burst: r.config.RateBurst,
	})

	api := r.engine.Group("/api/v1")
	api.Use(rateLimiter.RateLimit())
	api.Use(r.auth.Authenticate())

	r.notifH.RegisterRoutes(api)

	admin := api.Group("/admin")
	admin.Use(r.auth.RequireRole(model.UserRoleAdmin))
	r.notifH.RegisterAdminRoutes(admin)
}

func (r *Router) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		r.metrics.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		r.metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func (r *Router) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		r.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Msg("request")
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
