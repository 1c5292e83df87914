package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	httpmetrics "github.com/slok/go-http-metrics/middleware"
	ginmetrics "github.com/slok/go-http-metrics/middleware/gin"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	LedgerSvc      ports.LedgerService
	RedemptionSvc  ports.RedemptionService
	CertificateSvc ports.CertificateService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService   // nil = audit logging disabled
	Registry       *prometheus.Registry // nil = no /metrics endpoint
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.Registry != nil {
		mdlw := httpmetrics.New(httpmetrics.Config{
			Recorder: metricsprom.NewRecorder(metricsprom.Config{Registry: deps.Registry}),
		})
		// Label by route pattern so path parameters do not fan out series.
		r.Use(func(c *gin.Context) {
			ginmetrics.Handler(c.FullPath(), mdlw)(c)
		})
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	// --- Customer routes ---
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.RedemptionSvc, deps.ReportingSvc)
	wallet := v1.Group("/wallet", jwtAuth, middleware.RequireRole(ports.RoleCustomer))
	{
		wallet.GET("", rl("wallet_read"), walletHandler.GetWallet)
		wallet.GET("/transactions", rl("wallet_read"), walletHandler.ListTransactions)
		wallet.POST("/topup", rl("wallet_write"), walletHandler.TopUp)
		wallet.POST("/pay", rl("wallet_write"), walletHandler.Pay)
		wallet.POST("/redeem", rl("wallet_redeem"), walletHandler.Redeem)
	}

	// --- Staff routes ---
	staffHandler := NewStaffHandler(deps.WalletSvc, deps.LedgerSvc, deps.RedemptionSvc, deps.ReportingSvc)
	certHandler := NewCertificateHandler(deps.CertificateSvc)
	org := v1.Group("/org", jwtAuth, middleware.RequireRole(ports.RoleStaff), rl("staff"))
	{
		org.GET("/wallets", staffHandler.ListWallets)
		org.GET("/wallets/stats", staffHandler.GetStats)
		org.POST("/wallets/:wallet_id/transactions", staffHandler.ApplyTransaction)
		org.GET("/wallets/:wallet_id/transactions", staffHandler.ListTransactions)
		org.PUT("/wallets/:wallet_id/status", staffHandler.SetWalletStatus)

		org.GET("/customers/:customer_id/wallet", staffHandler.GetCustomerWallet)
		org.POST("/customers/:customer_id/wallet/topup", staffHandler.TopUp)
		org.POST("/customers/:customer_id/wallet/pay", staffHandler.Pay)
		org.POST("/customers/:customer_id/wallet/redeem", staffHandler.Redeem)

		org.POST("/certificates", certHandler.Issue)
		org.GET("/certificates/:code/validate", certHandler.Validate)
		org.POST("/certificates/:code/cancel", certHandler.Cancel)
	}

	return r
}
