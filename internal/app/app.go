// Package app assembles the ledger from configuration: storage driver,
// optional Redis, services and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/metrics"
	"wallet-ledger/internal/adapter/storage/memory"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// App is a fully wired ledger server.
type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	router  *gin.Engine
	tokens  ports.TokenService
	closers []func()
}

// storage is the repository set of one database driver.
type storage struct {
	wallets      ports.WalletRepository
	transactions ports.TransactionRepository
	certificates ports.CertificateRepository
	audit        ports.AuditRepository
	transactor   ports.DBTransactor
	health       ports.HealthChecker
}

// New connects to the configured backends and builds the router. Close must
// be called to release connections.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret must be set")
	}

	a := &App{cfg: cfg, log: log}

	store, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		idempCache     ports.IdempotencyCache
		publisher      ports.EventPublisher
		rateLimitStore *redisStorage.RateLimitStore
		checkers       = []ports.HealthChecker{store.health}
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		idempCache = redisStorage.NewIdempotencyCache(rdb)
		publisher = redisStorage.NewEventPublisher(rdb, cfg.Redis.EventsChannel)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: no replay cache, events or rate limiting")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	ledger := service.NewLedgerService(
		store.wallets,
		store.transactions,
		store.transactor,
		idempCache,
		publisher,
		recorder,
		service.LedgerOptions{
			Unit: service.UnitPolicy{
				MaxRetries: cfg.Database.MaxRetries,
				Backoff:    cfg.Database.RetryBackoff,
				Timeout:    cfg.Database.TxTimeout,
			},
			IdempotencyTTL: cfg.Ledger.IdempotencyTTL,
		},
		logger.Component(log, "ledger"),
	)
	wallets := service.NewWalletService(store.wallets, ledger, cfg.Ledger.Currency, logger.Component(log, "wallets"))
	redemptions := service.NewRedemptionService(store.certificates, wallets, ledger, recorder, logger.Component(log, "redemption"))
	certificates := service.NewCertificateService(store.certificates, ledger, logger.Component(log, "certificates"))
	a.tokens = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	gin.SetMode(cfg.Server.Mode)
	a.router = httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      wallets,
		LedgerSvc:      ledger,
		RedemptionSvc:  redemptions,
		CertificateSvc: certificates,
		ReportingSvc:   service.NewReportingService(store.transactions, store.wallets),
		TokenSvc:       a.tokens,
		RateLimitStore: rateLimitStore,
		HealthCheckers: checkers,
		AuditSvc:       service.NewAuditService(store.audit, logger.Component(log, "audit")),
		Registry:       registry,
		Logger:         logger.Component(log, "http"),
	})

	return a, nil
}

func (a *App) openStorage(ctx context.Context) (*storage, error) {
	switch a.cfg.Database.Driver {
	case "memory":
		a.log.Warn().Msg("Using in-memory storage: data is lost on exit")
		s := memory.New(a.cfg.Database.LockTimeout)
		return &storage{
			wallets:      memory.NewWalletRepo(s),
			transactions: memory.NewTransactionRepo(s),
			certificates: memory.NewCertificateRepo(s),
			audit:        memory.NewAuditRepo(s),
			transactor:   s,
			health:       memory.HealthCheck{},
		}, nil
	default:
		pool, err := OpenPostgres(ctx, a.cfg.Database, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		return &storage{
			wallets:      pgStorage.NewWalletRepo(pool),
			transactions: pgStorage.NewTransactionRepo(pool),
			certificates: pgStorage.NewCertificateRepo(pool),
			audit:        pgStorage.NewAuditRepo(pool),
			transactor:   pgStorage.NewTransactor(pool, a.cfg.Database.LockTimeout),
			health:       pgStorage.NewHealthCheck(pool),
		}, nil
	}
}

// OpenPostgres opens the connection pool for cfg.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgStorage.NewPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pool, nil
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Tokens returns the token service used to verify bearer tokens.
func (a *App) Tokens() ports.TokenService {
	return a.tokens
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// for at most server.shutdown_timeout.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	a.log.Info().Msg("Server exited")
	return nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
