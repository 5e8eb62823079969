// Package database opens the MySQL pool the reservation store runs
// on.  Pool sizing matters more here than in a plain CRUD service:
// WithVehicle pins a connection for the advisory lock plus the
// transaction, so an exhausted pool shows up as vehicle-lock stalls
// rather than query errors.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/drivoro/vehicle-rental/internal/config"
)

// Open connects to MySQL with the pool tuned from configuration and
// verifies connectivity before returning.
func Open(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn(cfg))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// dsn builds the driver connection string.  parseTime turns DATETIME
// columns into time.Time and loc=UTC keeps every scanned timestamp in
// the zone the engine and the interval math assume.
func dsn(cfg config.Config) string {
	auth := cfg.DBUser
	if cfg.DBPass != "" {
		auth = cfg.DBUser + ":" + cfg.DBPass
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, cfg.DBHost, cfg.DBPort, cfg.DBName)
}
