package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	documentcounterdomain "github.com/smallbiznis/schoolbill/internal/documentcounter/domain"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	"github.com/smallbiznis/schoolbill/internal/observability"
	obsmiddleware "github.com/smallbiznis/schoolbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/schoolbill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/schoolbill/internal/observability/tracing"
	"github.com/smallbiznis/schoolbill/internal/ratelimit"
	receiptdomain "github.com/smallbiznis/schoolbill/internal/receipt/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with the shared middleware chain. extra runs right
// after panic recovery.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, extra ...gin.HandlerFunc) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(extra...)
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics, cors.New(corsConfig(cfg)))
}

// corsConfig allows every origin outside production. Production only allows
// CORS_ALLOWED_ORIGINS and denies all when that list is empty.
func corsConfig(cfg config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	if cfg.IsProduction() {
		corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
		if len(corsCfg.AllowOrigins) == 0 {
			corsCfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AddAllowHeaders("Authorization", "X-Request-ID")
	corsCfg.AddExposeHeaders("Content-Disposition", "Retry-After", "X-Request-ID")
	return corsCfg
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
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
	invoiceSvc invoicedomain.Service
	receiptSvc receiptdomain.Service
	ledgerSvc  ledgerdomain.Service
	counterSvc documentcounterdomain.Service
	clock      clock.Clock
	limiter    *ratelimit.WriteLimiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	InvoiceSvc invoicedomain.Service
	ReceiptSvc receiptdomain.Service
	LedgerSvc  ledgerdomain.Service
	CounterSvc documentcounterdomain.Service
	Clock      clock.Clock             `optional:"true"`
	Limiter    *ratelimit.WriteLimiter `optional:"true"`
	Metrics    *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		invoiceSvc: p.InvoiceSvc,
		receiptSvc: p.ReceiptSvc,
		ledgerSvc:  p.LedgerSvc,
		counterSvc: p.CounterSvc,
		clock:      p.Clock,
		limiter:    p.Limiter,
		obsMetrics: p.Metrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func (s *Server) registerAPIRoutes() {
	invoices := s.engine.Group("/invoices")
	{
		invoices.POST("", s.WriteRateLimit(), s.CreateInvoice)
		invoices.GET("", s.ListInvoices)
		invoices.GET("/next-document-id", s.PeekNextDocumentID)
		invoices.GET("/export.xlsx", s.ExportInvoices)
		invoices.GET("/:id", s.GetInvoiceByID)
		invoices.PATCH("/:id/confirm-payment", s.WriteRateLimit(), s.InvoiceLock(), s.ConfirmInvoicePayment)
		invoices.PATCH("/:id/cancel", s.WriteRateLimit(), s.InvoiceLock(), s.CancelInvoice)
		invoices.GET("/:id/receipt", s.GetInvoiceReceipt)
		invoices.GET("/:id/receipt.pdf", s.GetInvoiceReceiptPDF)
	}

	s.engine.POST("/documents/next-id", s.WriteRateLimit(), s.AllocateDocumentID)

	s.engine.POST("/sessions", s.CreateSession)
	s.engine.GET("/sessions/:id", s.GetSession)
	s.engine.POST("/course-plus", s.CreateCoursePlus)
	s.engine.GET("/course-plus/:id", s.GetCoursePlus)
	s.engine.POST("/packages", s.CreatePackage)
	s.engine.GET("/packages/:id", s.GetPackage)
	s.engine.GET("/students/:id/open-entries", s.ListOpenEntries)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
