package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"artmarket-wallet/config"
	"artmarket-wallet/internal/adapter/gateway/payos"
	httpHandler "artmarket-wallet/internal/adapter/http/handler"
	"artmarket-wallet/internal/adapter/messaging"
	"artmarket-wallet/internal/adapter/storage/memory"
	pgStorage "artmarket-wallet/internal/adapter/storage/postgres"
	redisStorage "artmarket-wallet/internal/adapter/storage/redis"
	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/internal/service"
	"artmarket-wallet/pkg/logger"
	"artmarket-wallet/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// storage is the set of repositories for the configured database driver.
type storage struct {
	wallets     ports.WalletRepository
	txns        ports.TransactionRepository
	orders      ports.PaymentOrderRepository
	withdrawals ports.WithdrawalRepository
	purchases   ports.PurchaseRepository
	catalog     ports.CatalogRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func main() {
	configPath := os.Getenv("AMW_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("db_driver", cfg.Database.Driver).
		Msg("Starting art marketplace wallet")

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	healthCheckers := []ports.HealthChecker{store.health}

	// Redis backs the terminal-order cache and the HTTP rate limiter.
	var (
		orderCache     ports.OrderStatusCache
		rateLimitStore ports.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		orderCache = redisStorage.NewOrderStatusCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: no order cache, no rate limiting")
	}

	var publisher ports.EventPublisher = messaging.NewLogPublisher(log)
	if cfg.Broker.Enabled {
		conn, ch, err := messaging.Dial(cfg.Broker)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to message broker")
		}
		defer conn.Close()
		publisher = messaging.NewRabbitMQPublisher(ch, cfg.Broker.Exchange, log)
		log.Info().Str("exchange", cfg.Broker.Exchange).Msg("Settlement events go to the broker")
	}

	var (
		registry *prometheus.Registry
		settle   *metrics.Settlement
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		settle = metrics.NewSettlement(registry)
	}

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	rate, err := cfg.Settlement.Commission()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid commission rate")
	}

	atomic := service.NewAtomic(store.transactor, service.AtomicOptions{
		MaxAttempts:    cfg.Settlement.MaxAttempts,
		AttemptTimeout: cfg.Settlement.AttemptTimeout,
		Backoff:        cfg.Settlement.RetryBackoff,
	}, settle, log)

	// Business services
	walletSvc := service.NewWalletService(store.wallets, store.txns, atomic, log)
	ledgerSvc := service.NewLedgerService(store.txns, store.wallets, log)
	gateway := payos.NewClient(cfg.Gateway, sigSvc, log)
	paymentSvc := service.NewPaymentService(
		store.orders,
		store.txns,
		walletSvc,
		ledgerSvc,
		atomic,
		gateway,
		sigSvc,
		orderCache,
		publisher,
		settle,
		service.PaymentOptions{
			ChecksumKey:   cfg.Gateway.ChecksumKey,
			ReturnURL:     cfg.Gateway.ReturnURL,
			CancelURL:     cfg.Gateway.CancelURL,
			OrderCacheTTL: cfg.Settlement.OrderCacheTTL,
		},
		log,
	)
	purchaseSvc := service.NewPurchaseService(
		store.catalog,
		store.purchases,
		walletSvc,
		ledgerSvc,
		atomic,
		publisher,
		service.NewCommission(rate),
		domain.UserID(cfg.Settlement.PlatformUserID),
		settle,
		log,
	)
	withdrawalSvc := service.NewWithdrawalService(
		store.withdrawals,
		store.txns,
		walletSvc,
		ledgerSvc,
		atomic,
		encSvc,
		publisher,
		service.WithdrawalLimits{
			MinAmount:  cfg.Withdrawal.MinAmount,
			DailyLimit: cfg.Withdrawal.DailyLimit,
		},
		settle,
		log,
	)

	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI document loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI document not found, Swagger UI will be unavailable")
	}

	deps := httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		LedgerSvc:      ledgerSvc,
		PaymentSvc:     paymentSvc,
		PurchaseSvc:    purchaseSvc,
		WithdrawalSvc:  withdrawalSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		MetricsPath:    cfg.Metrics.Path,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	}
	if registry != nil {
		deps.MetricsGatherer = registry
	}
	router := httpHandler.SetupRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStorage connects the configured driver. Postgres is migrated first
// when database.auto_migrate is set.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Database.Driver == "memory" {
		mem := memory.NewStore()
		log.Warn().Msg("Using the in-memory store; data is lost on restart")
		return &storage{
			wallets:     mem.Wallets(),
			txns:        mem.Transactions(),
			orders:      mem.PaymentOrders(),
			withdrawals: mem.Withdrawals(),
			purchases:   mem.Purchases(),
			catalog:     mem.Catalog(),
			transactor:  mem,
			health:      mem,
			close:       func() {},
		}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, cfg.Database.DSN(), "up"); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info().Msg("Database schema is up to date")
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return &storage{
		wallets:     pgStorage.NewWalletRepo(pool),
		txns:        pgStorage.NewTransactionRepo(pool),
		orders:      pgStorage.NewPaymentOrderRepo(pool),
		withdrawals: pgStorage.NewWithdrawalRepo(pool),
		purchases:   pgStorage.NewPurchaseRepo(pool),
		catalog:     pgStorage.NewCatalogRepo(pool),
		transactor:  pgStorage.NewTransactor(pool),
		health:      pgStorage.NewHealthCheck(pool),
		close:       pool.Close,
	}, nil
}
