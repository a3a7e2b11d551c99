// Package store is the Postgres persistence layer for transfer detection.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	"go.opentelemetry.io/otel"
)

const tracerName = "TransferStore"

var (
	// ErrAlreadyLinked means a guarded link write found the transaction linked.
	ErrAlreadyLinked = errors.New("transaction is already linked")

	// ErrPendingTransferClosed means the pending transfer was matched concurrently.
	ErrPendingTransferClosed = errors.New("pending transfer is already matched")

	// ErrBatchNotFound means no reanalysis batch has the given id.
	ErrBatchNotFound = errors.New("reanalysis batch not found")
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Config configures the database connection pool.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DefaultConfig returns pool defaults without a DSN.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Datasource runs the detection queries against Postgres.
type Datasource struct {
	Conn *sql.DB
}

// New wraps an open connection pool.
func New(conn *sql.DB) *Datasource {
	return &Datasource{Conn: conn}
}

// ConnectDB opens and pings a Postgres connection pool.
func ConnectDB(ctx context.Context, config Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Ping checks the connection is alive.
func (d *Datasource) Ping(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Pinging database")
	defer span.End()

	return d.Conn.PingContext(ctx)
}

// Close releases the connection pool.
func (d *Datasource) Close() error {
	return d.Conn.Close()
}

// Migrate applies (or rolls back) the embedded schema migrations.
func Migrate(db *sql.DB, direction migrate.MigrationDirection) (int, error) {
	source := migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}
	return migrate.Exec(db, "postgres", source, direction)
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
