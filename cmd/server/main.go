package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "mealcard/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mealcard/internal/auth"
	"mealcard/internal/cache"
	"mealcard/internal/config"
	"mealcard/internal/db"
	"mealcard/internal/handler"
	"mealcard/internal/logger"
	"mealcard/internal/repository"
	"mealcard/internal/router"
	"mealcard/internal/seed"
	"mealcard/internal/service"
)

const shutdownTimeout = 10 * time.Second

// @title Meal Card Ledger API
// @version 1.0
// @description Stored-value meal cards: item selection, purchases, top-up approvals and ledger history.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, gormDB, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("database init", zap.Error(err))
	}
	if gormDB != nil {
		defer func() { _ = db.Close(gormDB) }()
	}

	cacheClient := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() { _ = cacheClient.Close() }()
	if err := cacheClient.Ping(ctx); err != nil {
		log.Warn("redis unavailable, card cache disabled until it recovers", zap.Error(err))
	}
	cardCache := service.NewCardCache(cacheClient, 0)

	// Initialize services
	unitOpts := service.UnitOptions{
		Timeout:    cfg.Ledger.UnitTimeout,
		MaxRetries: cfg.Ledger.UnitMaxRetries,
		BaseDelay:  cfg.Ledger.RetryBaseDelay,
	}
	cardService := service.NewCardService(store, service.NewCatalog(store.Items()), unitOpts, cardCache, log)
	transactionService := service.NewTransactionService(store, unitOpts, cardCache, log)
	topUpService := service.NewTopUpService(store, transactionService, unitOpts,
		service.TopUpOptions{AutoApprove: cfg.Ledger.AutoApproveTopUps}, log)
	historyService := service.NewHistoryService(store)

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			log.Fatal("seed", zap.Error(err))
		}
		res, err := seed.Apply(ctx, store, cardService, transactionService, f, log)
		if err != nil {
			log.Fatal("seed", zap.Error(err))
		}
		log.Info("seed applied", zap.Int("items", res.Items), zap.Int("cards_created", res.CardsCreated))
	}

	// Initialize handlers
	e := echo.New()
	e.HideBanner = true
	router.Register(e, auth.NewJWTService(cfg.JWTSecret), router.Handlers{
		Cards:        handler.NewCardHandler(cardService),
		Transactions: handler.NewTransactionHandler(transactionService, historyService, cardService),
		TopUps:       handler.NewTopUpHandler(topUpService),
	}, log)

	log.Info("swagger documentation available", zap.String("url", swaggerURL(cfg)))

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server starting", zap.String("addr", addr), zap.String("db_driver", cfg.Database.Driver))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal("server start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
}

// openStore returns the ledger store for the configured driver. The gorm
// handle is nil for the memory driver.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, *gorm.DB, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil, nil
	}

	gormDB, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(gormDB, cfg.Database.Reset, log); err != nil {
		_ = db.Close(gormDB)
		return nil, nil, err
	}
	return repository.NewStore(gormDB), gormDB, nil
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	// SwaggerHost may already include scheme (http:// or https://)
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
