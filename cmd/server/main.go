package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/iyilikvakfi/donation-service/internal/adapters/postgres"
	"github.com/iyilikvakfi/donation-service/internal/adapters/vpos"
	"github.com/iyilikvakfi/donation-service/internal/config"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	cartHandler "github.com/iyilikvakfi/donation-service/internal/handlers/cart"
	cronHandler "github.com/iyilikvakfi/donation-service/internal/handlers/cron"
	ledgerHandler "github.com/iyilikvakfi/donation-service/internal/handlers/ledger"
	recurringHandler "github.com/iyilikvakfi/donation-service/internal/handlers/recurring"
	"github.com/iyilikvakfi/donation-service/internal/middleware"
	"github.com/iyilikvakfi/donation-service/internal/services/binlookup"
	cartService "github.com/iyilikvakfi/donation-service/internal/services/cart"
	checkoutService "github.com/iyilikvakfi/donation-service/internal/services/checkout"
	ledgerService "github.com/iyilikvakfi/donation-service/internal/services/ledger"
	recurringService "github.com/iyilikvakfi/donation-service/internal/services/recurring"
	"github.com/iyilikvakfi/donation-service/internal/services/vposrouter"
	"github.com/iyilikvakfi/donation-service/pkg/logger"
	"github.com/iyilikvakfi/donation-service/pkg/observability"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		// Logger is not up yet
		panic(err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	zlog := log.Zap()
	zlog.Info("starting donation service", zap.String("addr", cfg.Server.Addr()))

	ctx := context.Background()
	pool, err := initDatabase(ctx, cfg)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	zlog.Info("database connection established")

	router := buildRouter(cfg, pool, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	}()

	zlog.Info("donation service listening", zap.String("addr", cfg.Server.Addr()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

func initLogger(cfg *config.Config) (*logger.ZapAdapter, error) {
	if cfg.Logger.Development {
		return logger.NewDevelopment()
	}
	return logger.NewProduction()
}

func initDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func buildRouter(cfg *config.Config, pool *pgxpool.Pool, log *logger.ZapAdapter) *gin.Engine {
	db := postgres.NewDBExecutor(pool)

	cartRepo := postgres.NewCartRepository(db)
	donationRepo := postgres.NewDonationRepository(db)
	txnRepo := postgres.NewTransactionRepository(db)
	recurringRepo := postgres.NewRecurringRepository(db)
	binRepo := postgres.NewBinRepository(db)
	campaigns := postgres.NewCampaignTotals(db)

	gateways := []ports.PaymentGateway{
		vpos.NewTurkiyeFinansGateway(&vpos.Config{
			BaseURL:    cfg.Gateways.TurkiyeFinans.BaseURL,
			MerchantID: cfg.Gateways.TurkiyeFinans.MerchantID,
			APIKey:     cfg.Gateways.TurkiyeFinans.APIKey,
			SecretKey:  cfg.Gateways.TurkiyeFinans.SecretKey,
			Timeout:    cfg.Gateways.TurkiyeFinans.Timeout,
		}, log),
		vpos.NewAlbarakaGateway(&vpos.Config{
			BaseURL:    cfg.Gateways.Albaraka.BaseURL,
			MerchantID: cfg.Gateways.Albaraka.MerchantID,
			APIKey:     cfg.Gateways.Albaraka.APIKey,
			SecretKey:  cfg.Gateways.Albaraka.SecretKey,
			Timeout:    cfg.Gateways.Albaraka.Timeout,
		}, log),
	}

	bins := binlookup.NewService(binRepo, log, cfg.Gateways.BinCacheTTL)
	router := vposrouter.NewService(bins, log)

	carts := cartService.NewService(cartRepo, log)
	recurring := recurringService.NewService(db, recurringRepo, donationRepo, txnRepo, campaigns, log)
	charger := recurringService.NewCharger(recurring, router, gateways, log)
	ledger := ledgerService.NewService(db, txnRepo, donationRepo, recurring, campaigns, carts, log)
	checkout := checkoutService.NewService(db, carts, donationRepo, txnRepo, nil, cfg.Gateways.Primary, log)

	metrics := observability.NewMetrics()

	if !cfg.Logger.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(log.Zap()))
	engine.Use(metrics.Middleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Format(time.RFC3339)})
	})
	engine.GET("/metrics", metrics.Handler())

	api := engine.Group("/api/v1")
	api.Use(middleware.Session())

	cartHandler.NewHandler(carts, checkout, log).RegisterRoutes(api.Group("/cart"))
	ledgerHandler.NewHandler(ledger, log).RegisterRoutes(api.Group("/payment-transactions"))
	recurringHandler.NewHandler(recurring, log).RegisterRoutes(api.Group("/recurring-donations"))

	cronHandler.NewHandler(
		carts, charger, ledger, metrics, log,
		cfg.Cron.Secret, cfg.Cron.ChargeBatchSize, cfg.Cron.StalePendingAge,
	).RegisterRoutes(engine.Group("/cron"))

	return engine
}
