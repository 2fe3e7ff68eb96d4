// Package db opens the control-plane and warehouse database handles and owns
// the control-plane schema migrations.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
)

// OpenControl opens the SQLite control-plane store (watermarks, run ledger,
// guard records, trading calendar) and runs pending migrations. WAL mode and
// a busy timeout keep concurrent chunk workers from tripping over each other
// on upserts.
func OpenControl(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=60000&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open control store: %w", err)
	}
	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(4)
	conn.SetConnMaxLifetime(10 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping control store: %w", err)
	}
	if err := RunMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// OpenWarehouse opens the DuckDB warehouse holding the layered tables
// (ods → dwd → dws → feature). Layer DDL lives with the transforms, not
// here — the warehouse is data plane, the control store is control plane.
func OpenWarehouse(path string) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return conn, nil
}
