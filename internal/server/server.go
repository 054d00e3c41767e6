package server

import (
	"context"
	"net/http"
	"time"

	"github.com/eventmirror/pretix-bridge/internal/config"
	"github.com/eventmirror/pretix-bridge/internal/observability"
	obsmiddleware "github.com/eventmirror/pretix-bridge/internal/observability/logger"
	syncservice "github.com/eventmirror/pretix-bridge/internal/sync/service"
	webhookservice "github.com/eventmirror/pretix-bridge/internal/webhook/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(obsCfg observability.Config, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(obsCfg, registry)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	syncSvc    *syncservice.Synchronizer
	webhookSvc *webhookservice.Service
	log        *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	SyncSvc    *syncservice.Synchronizer
	WebhookSvc *webhookservice.Service
	Log        *zap.Logger
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		syncSvc:    p.SyncSvc,
		webhookSvc: p.WebhookSvc,
		log:        p.Log.Named("http.server"),
	}
	s.registerRoutes()
	return s
}

// registerRoutes wires the public surface. The webhook endpoint only accepts
// POST; any other method is rejected as a bad request so misconfigured
// deliveries surface instead of 404ing.
func (s *Server) registerRoutes() {
	s.engine.POST("/webhook/:organizerSlug", s.HandleWebhook)
	s.engine.Match(
		[]string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodDelete},
		"/webhook/:organizerSlug", s.RejectWebhookMethod,
	)
	s.engine.POST("/events/:id/sync", s.HandleSyncEvent)
	s.engine.DELETE("/events/:id/sync", s.HandleDeleteEvent)
}
