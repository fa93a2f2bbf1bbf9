package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/vaultline/internal/billingperiod"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	"github.com/smallbiznis/vaultline/internal/config"
	"github.com/smallbiznis/vaultline/internal/container"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	"github.com/smallbiznis/vaultline/internal/customer"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	"github.com/smallbiznis/vaultline/internal/invoice"
	invoicedomain "github.com/smallbiznis/vaultline/internal/invoice/domain"
	"github.com/smallbiznis/vaultline/internal/observability"
	obsmiddleware "github.com/smallbiznis/vaultline/internal/observability/logger"
	obstracing "github.com/smallbiznis/vaultline/internal/observability/tracing"
	"github.com/smallbiznis/vaultline/internal/storagebilling"
	storagebillingdomain "github.com/smallbiznis/vaultline/internal/storagebilling/domain"
	"github.com/smallbiznis/vaultline/internal/workorder"
	workorderdomain "github.com/smallbiznis/vaultline/internal/workorder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	customer.Module,
	container.Module,
	workorder.Module,
	billingperiod.Module,
	invoice.Module,
	storagebilling.Module,
	fx.Provide(registerGin),
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
	r.Use(obstracing.GinMiddleware())
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

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine            *gin.Engine
	cfg               config.Config
	customerSvc       customerdomain.Service
	containerSvc      containerdomain.Service
	workOrderSvc      workorderdomain.Service
	billingPeriodSvc  billingperioddomain.Service
	invoiceSvc        invoicedomain.Service
	storageBillingSvc storagebillingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	Cfg               config.Config
	CustomerSvc       customerdomain.Service
	ContainerSvc      containerdomain.Service
	WorkOrderSvc      workorderdomain.Service
	BillingPeriodSvc  billingperioddomain.Service
	InvoiceSvc        invoicedomain.Service
	StorageBillingSvc storagebillingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:            p.Gin,
		cfg:               p.Cfg,
		customerSvc:       p.CustomerSvc,
		containerSvc:      p.ContainerSvc,
		workOrderSvc:      p.WorkOrderSvc,
		billingPeriodSvc:  p.BillingPeriodSvc,
		invoiceSvc:        p.InvoiceSvc,
		storageBillingSvc: p.StorageBillingSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.OrgContext())

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.PUT("/customers/:id/consolidated-billing", s.SetConsolidatedBilling)

	// -------- Container Types --------
	api.GET("/container-types", s.ListContainerTypes)
	api.POST("/container-types", s.CreateContainerType)

	// -------- Containers --------
	api.GET("/containers", s.ListContainers)
	api.POST("/containers", s.CreateContainer)
	api.GET("/containers/:id", s.GetContainerByID)
	api.POST("/containers/:id/destroy", s.DestroyContainer)
	api.POST("/containers/:id/perm-out", s.PermOutContainer)

	// -------- Work Orders --------
	api.GET("/work-orders", s.ListWorkOrders)
	api.POST("/work-orders", s.CreateWorkOrder)
	api.GET("/work-orders/:id", s.GetWorkOrderByID)
	api.POST("/work-orders/:id/complete", s.CompleteWorkOrder)
	api.POST("/work-orders/:id/cancel", s.CancelWorkOrder)

	// -------- Billing Periods --------
	api.GET("/billing-periods", s.ListBillingPeriods)
	api.POST("/billing-periods", s.CreateBillingPeriod)
	api.GET("/billing-periods/:id", s.GetBillingPeriodByID)
	api.POST("/billing-periods/:id/preview", s.PreviewBillingPeriod)
	api.POST("/billing-periods/:id/invoice", s.InvoiceBillingPeriod)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)
}
