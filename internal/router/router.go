// internal/router/router.go
package router

import (
	"context"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/config"
	"github.com/estatechain/ledger-backend/internal/handlers"
	"github.com/estatechain/ledger-backend/internal/middleware"
	"github.com/estatechain/ledger-backend/internal/services"
	"github.com/estatechain/ledger-backend/internal/utils"
)

// Services holds the ledger services shared by the HTTP layer and the
// background jobs.
type Services struct {
	Guard       *services.SettlementGuard
	Properties  *services.PropertyService
	Investments *services.InvestmentService
	SellOrders  *services.SellOrderService
	Portfolio   *services.PortfolioService
	Audit       *services.LedgerAuditService
}

// NewServices wires the ledger services. archive may be nil.
func NewServices(db *gorm.DB, archive services.ReportArchive) *Services {
	guard := services.NewSettlementGuard(db)
	return &Services{
		Guard:       guard,
		Properties:  services.NewPropertyService(db),
		Investments: services.NewInvestmentService(db, guard),
		SellOrders:  services.NewSellOrderService(db, guard),
		Portfolio:   services.NewPortfolioService(db),
		Audit:       services.NewLedgerAuditService(db, archive),
	}
}

type Deps struct {
	DB          *gorm.DB
	Config      *config.Config
	Services    *Services
	AuditLogger *middleware.AuditLogger
}

// Initialize builds the HTTP engine. Background helpers started here stop
// when ctx is done.
func Initialize(ctx context.Context, deps Deps) *gin.Engine {
	cfg := deps.Config
	svc := deps.Services
	if svc == nil {
		svc = NewServices(deps.DB, nil)
	}
	auditLogger := deps.AuditLogger
	if auditLogger == nil {
		auditLogger = middleware.NewAuditLogger(deps.DB)
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	propertyHandler := handlers.NewPropertyHandler(svc.Properties, svc.Portfolio)
	investmentHandler := handlers.NewInvestmentHandler(svc.Investments, svc.Portfolio)
	sellOrderHandler := handlers.NewSellOrderHandler(svc.SellOrders, svc.Portfolio)
	adminHandler := handlers.NewAdminHandler(svc.Audit, svc.Guard)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))

	r.GET("/health", healthHandler.Health)
	r.NoRoute(func(c *gin.Context) {
		utils.NotFoundResponse(c, "route")
	})

	v1 := r.Group("/v1")
	// Identity is resolved before rate limiting so authenticated callers get
	// their own bucket.
	v1.Use(middleware.OptionalAuth())
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		go limiter.Cleanup(ctx.Done())
		v1.Use(limiter.Middleware())
	}
	v1.Use(auditLogger.Middleware())
	{
		properties := v1.Group("/properties")
		{
			properties.GET("", propertyHandler.GetProperties)
			properties.GET("/:id", propertyHandler.GetProperty)
			properties.GET("/:id/availability", propertyHandler.GetAvailability)

			admin := properties.Group("", middleware.AuthRequired(), middleware.AdminRequired())
			admin.POST("", propertyHandler.CreateProperty)
			admin.PUT("/:id", propertyHandler.UpdateProperty)
			admin.POST("/:id/list", propertyHandler.ListProperty)
			admin.POST("/:id/delist", propertyHandler.DelistProperty)
		}

		investments := v1.Group("/investments", middleware.AuthRequired())
		{
			investments.POST("", investmentHandler.RecordInvestment)
			investments.GET("", investmentHandler.GetInvestments)
			investments.GET("/holdings", investmentHandler.GetHoldings)
			investments.GET("/transactions", investmentHandler.GetTransactions)
		}

		sellOrders := v1.Group("/sell-orders")
		{
			sellOrders.GET("", sellOrderHandler.GetMarketplace)
			sellOrders.GET("/:id", sellOrderHandler.GetSellOrder)
			sellOrders.GET("/:id/chain-ref", sellOrderHandler.GetChainRef)

			authed := sellOrders.Group("", middleware.AuthRequired())
			authed.POST("", sellOrderHandler.CreateSellOrder)
			authed.GET("/mine", sellOrderHandler.GetMyOrders)
			authed.POST("/:id/complete", sellOrderHandler.CompleteSellOrder)
			authed.POST("/:id/cancel", sellOrderHandler.CancelSellOrder)
			authed.PUT("/:id/chain-ref", sellOrderHandler.SetChainRef)
		}

		admin := v1.Group("/admin", middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/ledger/audit", adminHandler.RunLedgerAudit)
			admin.GET("/settlements/*settlement_id", adminHandler.GetSettlement)
		}
	}

	return r
}
