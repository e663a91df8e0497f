package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mealcard/internal/auth"
	"mealcard/internal/config"
	"mealcard/internal/db"
	"mealcard/internal/logger"
	"mealcard/internal/repository"
	"mealcard/internal/seed"
	"mealcard/internal/service"
)

func main() {
	file := flag.String("file", "seed.json", "seed file with items and cards")
	tokens := flag.Bool("tokens", false, "print development bearer tokens for the seeded holders and one user per staff role")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver == "memory" {
		log.Fatal("seed needs a database driver; set SEED_FILE on the server for the memory driver")
	}

	f, err := seed.Load(*file)
	if err != nil {
		log.Fatal("load seed file", zap.Error(err))
	}

	ctx := context.Background()
	gormDB, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close(gormDB) }()

	// Run migrations to ensure schema is up to date
	if err := db.Migrate(gormDB, cfg.Database.Reset, log); err != nil {
		log.Fatal("run migrations", zap.Error(err))
	}

	store := repository.NewStore(gormDB)
	unitOpts := service.UnitOptions{
		Timeout:    cfg.Ledger.UnitTimeout,
		MaxRetries: cfg.Ledger.UnitMaxRetries,
		BaseDelay:  cfg.Ledger.RetryBaseDelay,
	}
	cards := service.NewCardService(store, service.NewCatalog(store.Items()), unitOpts, nil, log)
	transactions := service.NewTransactionService(store, unitOpts, nil, log)

	res, err := seed.Apply(ctx, store, cards, transactions, f, log)
	if err != nil {
		log.Fatal("seed", zap.Error(err))
	}
	log.Info("seed completed",
		zap.Int("items", res.Items),
		zap.Int("cards_created", res.CardsCreated),
		zap.Int("cards_skipped", res.CardsSkipped))

	if *tokens {
		if err := printTokens(auth.NewJWTService(cfg.JWTSecret), res, *ttl); err != nil {
			log.Fatal("issue tokens", zap.Error(err))
		}
	}
}

// printTokens writes one bearer token per seeded holder and staff role.
func printTokens(jwtService *auth.JWTService, res *seed.Result, ttl time.Duration) error {
	identities := make([]auth.Identity, 0, len(res.Cards)+3)
	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleManager, auth.RoleCashier} {
		identities = append(identities, auth.Identity{AccountID: uuid.New(), Role: role})
	}
	for _, card := range res.Cards {
		identities = append(identities, auth.Identity{AccountID: card.HolderID, Role: auth.RoleHolder, HolderRef: card.HolderRef})
	}

	for _, id := range identities {
		token, err := jwtService.Issue(id, ttl)
		if err != nil {
			return err
		}
		label := string(id.Role)
		if id.HolderRef != "" {
			label += " " + id.HolderRef
		}
		fmt.Printf("%-24s %s\n", label, token)
	}
	return nil
}
