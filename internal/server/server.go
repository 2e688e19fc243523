package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makestack-ai/makestack/internal/config"
	creditdomain "github.com/makestack-ai/makestack/internal/credit/domain"
	"github.com/makestack-ai/makestack/internal/metrics"
	"github.com/makestack-ai/makestack/internal/ratelimit"
	"github.com/makestack-ai/makestack/internal/uptime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Engine    *gin.Engine
	Log       *zap.Logger
	Cfg       config.Config
	CreditSvc creditdomain.Service
	Tracker   *uptime.Tracker
	Limiter   *ratelimit.SpendLimiter `optional:"true"`
}

type Server struct {
	engine    *gin.Engine
	log       *zap.Logger
	cfg       config.Config
	creditSvc creditdomain.Service
	tracker   *uptime.Tracker
	limiter   *ratelimit.SpendLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		engine:    p.Engine,
		log:       p.Log.Named("http.server"),
		cfg:       p.Cfg,
		creditSvc: p.CreditSvc,
		tracker:   p.Tracker,
		limiter:   p.Limiter,
	}
}

func NewEngine(log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(metrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	return r
}

// RegisterRoutes wires the API surface.
func (s *Server) RegisterRoutes() {
	s.engine.POST("/webhooks/payments/:provider", s.HandlePaymentWebhook)

	v1 := s.engine.Group("/v1")
	v1.GET("/credits/:user_id", s.HandleGetCredits)
	v1.GET("/credits/:user_id/transactions", s.HandleListTransactions)
	v1.POST("/credits/:user_id/spend", s.HandleSpendCredits)

	v1.GET("/uptime", s.HandleUptime)

	admin := v1.Group("/admin")
	admin.POST("/credits/:user_id/grant", s.HandleGrantCredits)
	admin.POST("/downtime/start", s.HandleDowntimeStart)
	admin.POST("/downtime/end", s.HandleDowntimeEnd)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
