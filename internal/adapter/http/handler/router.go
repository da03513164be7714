package handler

import (
	"net/http"

	"artmarket-wallet/internal/adapter/http/middleware"
	"artmarket-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc       ports.WalletService
	LedgerSvc       ports.LedgerService
	PaymentSvc      ports.PaymentService
	PurchaseSvc     ports.PurchaseService
	WithdrawalSvc   ports.WithdrawalService
	TokenSvc        ports.TokenService
	RateLimitStore  ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	MetricsGatherer prometheus.Gatherer // nil = no /metrics endpoint
	MetricsPath     string
	Mode            string
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.MetricsGatherer != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
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
	v1.Use(middleware.AuditLog(deps.Logger))

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.LedgerSvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.Logger)
	purchaseHandler := NewPurchaseHandler(deps.PurchaseSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)

	// --- Gateway callback (signature checked by the payment service) ---
	v1.POST("/payments/webhook", rl("webhook"), paymentHandler.Webhook)

	// --- JWT-authenticated routes ---
	authed := v1.Group("", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	wallet := authed.Group("/wallet")
	{
		wallet.GET("", rl("read"), walletHandler.GetWallet)
		wallet.GET("/transactions", rl("read"), walletHandler.ListTransactions)
		wallet.GET("/statistics", rl("read"), walletHandler.Statistics)
		wallet.GET("/reconcile", rl("read"), walletHandler.Reconcile)
	}

	payments := authed.Group("/payments")
	{
		payments.POST("", rl("payments"), paymentHandler.CreateOrder)
		payments.GET("", rl("read"), paymentHandler.ListOrders)
		payments.POST("/:orderCode/verify", rl("payments"), paymentHandler.Verify)
	}

	purchases := authed.Group("/purchases")
	{
		purchases.POST("/artworks/:id", rl("purchases"), purchaseHandler.BuyArtwork)
		purchases.GET("/artworks/:id/access", rl("read"), purchaseHandler.ArtworkAccess)
		purchases.POST("/exhibitions/:id/tickets", rl("purchases"), purchaseHandler.BuyTicket)
	}

	withdrawals := authed.Group("/withdrawals")
	{
		withdrawals.POST("", rl("withdrawals"), withdrawalHandler.Request)
		withdrawals.GET("", rl("read"), withdrawalHandler.ListMine)
	}

	// --- Admin routes ---
	admin := authed.Group("/admin", middleware.RequireRole(ports.RoleAdmin))
	{
		admin.GET("/withdrawals", rl("admin"), withdrawalHandler.ListAll)
		admin.POST("/withdrawals/:id/approve", rl("admin"), withdrawalHandler.Approve)
		admin.POST("/withdrawals/:id/reject", rl("admin"), withdrawalHandler.Reject)
		admin.GET("/transactions", rl("admin"), walletHandler.AllTransactions)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error_code": "NOT_FOUND", "message": "Route not found"})
	})

	return r
}
