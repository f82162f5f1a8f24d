package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/dirhublabs/dirhub/internal/billing"
	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
	"github.com/dirhublabs/dirhub/internal/config"
	"github.com/dirhublabs/dirhub/internal/gateway"
	"github.com/dirhublabs/dirhub/internal/integrity"
	"github.com/dirhublabs/dirhub/internal/observability"
	obsmiddleware "github.com/dirhublabs/dirhub/internal/observability/logger"
	"github.com/dirhublabs/dirhub/internal/organization"
	orgdomain "github.com/dirhublabs/dirhub/internal/organization/domain"
	"github.com/dirhublabs/dirhub/internal/pricing"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	integrity.Module,
	pricing.Module,
	gateway.Module,
	organization.Module,
	billing.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
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
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
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
	db         *gorm.DB
	billingSvc billingdomain.Service
	orgSvc     orgdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	BillingSvc billingdomain.Service
	OrgSvc     orgdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		billingSvc: p.BillingSvc,
		orgSvc:     p.OrgSvc,
	}

	svc.registerBillingRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) registerBillingRoutes() {
	api := s.engine.Group("/api/v1")

	billing := api.Group("/billing")
	billing.POST("/checkout", s.createCheckout)
	billing.POST("/enterprise/provision", s.provisionEnterprise)
	billing.GET("/subscription", s.getActiveSubscription)

	payments := api.Group("/payments")
	payments.POST("/mock/callback", s.mockCallback)
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")
	webhooks.POST("/stripe", s.stripeWebhook)
	webhooks.POST("/payments", s.internalWebhook)

	sslcommerz := s.engine.Group("/payments/sslcommerz")
	sslcommerz.POST("/success", s.sslcommerzCallback("success"))
	sslcommerz.POST("/fail", s.sslcommerzCallback("fail"))
	sslcommerz.POST("/cancel", s.sslcommerzCallback("cancel"))
}
