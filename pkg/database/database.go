package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/feichai0017/document-intake/config"
	"github.com/feichai0017/document-intake/pkg/logger"
)

const driverName = "pgx"

var openDB = sql.Open

// Connect opens the shared connection pool and verifies connectivity. The pool
// is sized from cfg and has no overflow beyond MaxOpenConns.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*sqlx.DB, error) {
	dsn := cfg.DSN()
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	sqlDB, err := openDB(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(min(cfg.MaxIdleConns, cfg.MaxOpenConns))
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stats := sqlDB.Stats()
	log.Info("Database connected",
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Name),
		logger.Int("maxOpen", stats.MaxOpenConnections),
	)

	return sqlx.NewDb(sqlDB, driverName), nil
}
