package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant-pos/internal/config"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Models in dependency order: parents first.
var Models = []interface{}{
	(*models.Table)(nil),
	(*models.MenuItem)(nil),
	(*models.Order)(nil),
	(*models.OrderItem)(nil),
	(*models.Payment)(nil),
	(*models.PaymentOrder)(nil),
}

// Open connects to the configured driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info("DATABASE", fmt.Sprintf("Opening SQLite database %s", cfg.SQLiteDSN))
		return OpenSQLite(cfg.SQLiteDSN)
	case "postgres", "":
		return OpenPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// OpenPostgres retries the initial ping a few times so the service survives a database
// that is still starting.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// OpenSQLite opens a SQLite database through sqliteshim. A single connection is used so
// that shared in-memory databases see one consistent state and writers never hit SQLITE_BUSY.
// Foreign keys are off by default in SQLite and are switched on for that connection.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	if _, err := sqldb.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// foreignKeys mirrors the REFERENCES clauses of the SQL migrations.
var foreignKeys = map[interface{}][]string{
	(*models.OrderItem)(nil): {
		"(order_id) REFERENCES orders (order_id) ON DELETE CASCADE",
		"(menu_item_id) REFERENCES menu_items (menu_item_id) ON DELETE RESTRICT",
	},
	(*models.PaymentOrder)(nil): {
		"(payment_id) REFERENCES payments (payment_id) ON DELETE RESTRICT",
		"(order_id) REFERENCES orders (order_id) ON DELETE RESTRICT",
	},
}

// CreateSchema creates all tables, their foreign keys and secondary indexes if they are
// missing. Postgres deployments use the SQL migrations instead; this is for SQLite and tests.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, m := range Models {
		q := db.NewCreateTable().Model(m).IfNotExists()
		for _, fk := range foreignKeys[m] {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}

	indexes := []struct {
		model  interface{}
		name   string
		column string
	}{
		{(*models.Order)(nil), "idx_orders_table_number", "table_number"},
		{(*models.Order)(nil), "idx_orders_status", "order_status"},
		{(*models.OrderItem)(nil), "idx_order_items_order_id", "order_id"},
		{(*models.OrderItem)(nil), "idx_order_items_menu_item_id", "menu_item_id"},
		{(*models.MenuItem)(nil), "idx_menu_items_category", "category"},
		{(*models.PaymentOrder)(nil), "idx_payment_orders_order_id", "order_id"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropSchema drops every table, children first.
func DropSchema(ctx context.Context, db *bun.DB) error {
	for i := len(Models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(Models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", Models[i], err)
		}
	}
	return nil
}

// RunInTx runs fn in one transaction: every write made through tx commits together or
// not at all. The tx handle must not escape fn.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, fn)
}

// IsUniqueViolation reports whether err is a unique-constraint failure on either driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err is a foreign-key failure on either driver.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// IsNoRows reports whether err means the queried row does not exist.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
