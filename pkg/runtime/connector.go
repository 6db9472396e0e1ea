package runtime

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/khavishbhundoo/mysql-pdo-class/pkg/config"
)

// Connect opens a single-connection handle for cfg and verifies it with a
// ping. Session state such as LAST_INSERT_ID and open transactions lives on
// one server connection, so the pool never grows past one.
func Connect(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// Open builds the driver connector for cfg without touching the network.
func Open(cfg config.Config) (*sql.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case config.DriverMySQL:
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		connector, err := mysql.NewConnector(mc)
		if err != nil {
			return nil, fmt.Errorf("mysql connector: %w", err)
		}
		return sql.OpenDB(connector), nil
	case config.DriverPostgres:
		connector, err := pq.NewConnector(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres connector: %w", err)
		}
		return sql.OpenDB(connector), nil
	case config.DriverSQLite:
		db, err := sql.Open(config.DriverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil
	}
	return nil, fmt.Errorf("%q: %w", cfg.Driver, config.ErrUnknownDriver)
}
