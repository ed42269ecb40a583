package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"restaurant-pos/internal/config"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/database/migrations"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/utils"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

const usage = `usage: migrate <command>

commands:
  up      apply SQL migrations (postgres) or create the schema (sqlite)
  down    roll back SQL migrations (postgres) or drop the schema (sqlite)
  create  create tables from the models, skipping existing ones
  drop    drop every table
  seed    insert sample tables and menu items
  reset   drop, create and seed`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.NewLogger()
	defer log.Close()

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := run(ctx, flag.Arg(0), cfg, bunDB, log); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("%s done", flag.Arg(0)))
}

func run(ctx context.Context, command string, cfg *config.Config, bunDB *bun.DB, log *logger.Logger) error {
	sqlite := cfg.Database.Driver == "sqlite"
	switch command {
	case "up":
		if sqlite {
			return database.CreateSchema(ctx, bunDB)
		}
		return migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Database.MigrationsDir}, log).Up()
	case "down":
		if sqlite {
			return database.DropSchema(ctx, bunDB)
		}
		return migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Database.MigrationsDir}, log).Down()
	case "create":
		return database.CreateSchema(ctx, bunDB)
	case "drop":
		return database.DropSchema(ctx, bunDB)
	case "seed":
		return seed(ctx, bunDB, cfg.Tables.QRBaseURL)
	case "reset":
		if err := database.DropSchema(ctx, bunDB); err != nil {
			return err
		}
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			return err
		}
		return seed(ctx, bunDB, cfg.Tables.QRBaseURL)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func seed(ctx context.Context, bunDB *bun.DB, qrBaseURL string) error {
	now := time.Now().UTC()
	tables := make([]models.Table, 0, 6)
	for n := 1; n <= 6; n++ {
		tables = append(tables, models.Table{
			TableNumber: n,
			Capacity:    2 + 2*(n%3),
			IsAvailable: true,
			QrCode:      utils.TableQRContent(qrBaseURL, n),
			CreatedAt:   now,
		})
	}

	menu := []models.MenuItem{
		{Name: "Tomato Soup", Description: "Roasted tomatoes and basil", Price: 6.5, Category: "Starters", IsAvailable: true},
		{Name: "Garlic Bread", Description: "Sourdough with garlic butter", Price: 4.0, Category: "Starters", IsAvailable: true},
		{Name: "Grilled Salmon", Description: "With lemon and greens", Price: 18.0, Category: "Mains", IsAvailable: true},
		{Name: "Mushroom Risotto", Description: "Arborio rice, parmesan", Price: 14.5, Category: "Mains", IsAvailable: true},
		{Name: "Cheesecake", Description: "Baked vanilla cheesecake", Price: 7.0, Category: "Desserts", IsAvailable: true},
		{Name: "Lemonade", Description: "Freshly squeezed", Price: 3.5, Category: "Drinks", IsAvailable: true},
	}

	return database.RunInTx(ctx, bunDB, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&tables).Exec(ctx); err != nil {
			return fmt.Errorf("seed tables: %w", err)
		}
		if _, err := tx.NewInsert().Model(&menu).Exec(ctx); err != nil {
			return fmt.Errorf("seed menu items: %w", err)
		}
		return nil
	})
}
