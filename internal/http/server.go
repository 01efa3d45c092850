package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/saas-gateway/internal/auth"
	"github.com/jmehdipour/saas-gateway/internal/config"
	"github.com/jmehdipour/saas-gateway/internal/http/middleware"
	"github.com/jmehdipour/saas-gateway/internal/metrics"
	"github.com/jmehdipour/saas-gateway/internal/provider"
	"github.com/jmehdipour/saas-gateway/internal/proxy"
	"github.com/jmehdipour/saas-gateway/internal/service/messaging"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the collaborators the routes are served by.
type Deps struct {
	Resolver  auth.Resolver
	Messaging *messaging.Service
	Lister    MessageLister
	Stripe    *proxy.Registry
	Paddle    *proxy.Registry
	Mailer    *provider.Mailer
	Redis     *redis.Client
	Logger    *zap.Logger

	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), echoMid.Logger())
	e.Use(echoMid.CORSWithConfig(echoMid.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSOrigins,
		AllowHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	reg := d.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gat := d.Gatherer
	if gat == nil {
		gat = prometheus.DefaultGatherer
	}
	metrics.MustRegister(reg)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gat, promhttp.HandlerOpts{})))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.BearerMiddleware(d.Resolver)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:user:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/whatsapp/send", sendWhatsAppHandler(d.Messaging, log))
	v1.GET("/orgs/:org_id/whatsapp/messages", listMessagesHandler(d.Messaging, d.Lister, log))
	v1.POST("/stripe", proxyHandler(d.Stripe, log))
	v1.POST("/paddle", proxyHandler(d.Paddle, log))
	v1.POST("/email/send", sendEmailHandler(d.Mailer, log))

	return &Server{e: e, log: log}
}

// echoLevel maps the configured zap level name onto echo's own logger.
func echoLevel(level string) gommonlog.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return gommonlog.DEBUG
	case "warn":
		return gommonlog.WARN
	case "error":
		return gommonlog.ERROR
	default:
		return gommonlog.INFO
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
