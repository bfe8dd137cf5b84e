// Package bunx opens bun databases for the DSNs pauthd accepts.
package bunx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/terraconstructs/pluggableauth/internal/telemetry"
)

const tracerName = "pauth/db"

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypePostgreSQL DatabaseType = "postgres"
	DatabaseTypeSQLite     DatabaseType = "sqlite"
)

// DetectDatabaseType determines the database type from a DSN string
func DetectDatabaseType(dsn string) DatabaseType {
	for _, scheme := range []string{"postgres://", "postgresql://", "unix://"} {
		if strings.HasPrefix(dsn, scheme) {
			return DatabaseTypePostgreSQL
		}
	}
	// file:, :memory: or a plain path
	return DatabaseTypeSQLite
}

type options struct {
	maxOpenConns int
	log          logr.Logger
	trace        bool
}

// Option configures NewDB.
type Option func(*options)

// WithMaxOpenConns bounds the PostgreSQL pool. SQLite always uses a single
// connection.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithLogger logs every query at V(2).
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTracing records a span per query.
func WithTracing() Option {
	return func(o *options) { o.trace = true }
}

// NewDB creates a new Bun database instance for PostgreSQL or SQLite based on DSN
func NewDB(dsn string, opts ...Option) (*bun.DB, error) {
	o := options{maxOpenConns: 25, log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		db  *bun.DB
		err error
	)
	switch dbType := DetectDatabaseType(dsn); dbType {
	case DatabaseTypePostgreSQL:
		db, err = newPostgreSQLDB(dsn, o.maxOpenConns)
	case DatabaseTypeSQLite:
		db, err = newSQLiteDB(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
	if err != nil {
		return nil, err
	}
	if o.trace || o.log.GetSink() != nil {
		db.AddQueryHook(&queryHook{log: o.log, trace: o.trace, system: string(DetectDatabaseType(dsn))})
	}
	return db, nil
}

func newPostgreSQLDB(dsn string, maxOpenConns int) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(maxOpenConns)
	sqldb.SetMaxIdleConns(maxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(context.Background()); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func newSQLiteDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Single writer; directory transactions would otherwise hit SQLITE_BUSY.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("failed to run %q: %w", pragma, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

type queryHook struct {
	log    logr.Logger
	trace  bool
	system string
}

var _ bun.QueryHook = (*queryHook)(nil)

func (h *queryHook) BeforeQuery(ctx context.Context, ev *bun.QueryEvent) context.Context {
	if !h.trace {
		return ctx
	}
	ctx, _ = telemetry.StartSpan(ctx, tracerName, "db."+strings.ToLower(ev.Operation()),
		attribute.String("db.system", h.system),
		attribute.String("db.operation", ev.Operation()),
	)
	return ctx
}

func (h *queryHook) AfterQuery(ctx context.Context, ev *bun.QueryEvent) {
	elapsed := time.Since(ev.StartTime)
	err := ev.Err
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}

	if h.trace {
		span := trace.SpanFromContext(ctx)
		telemetry.RecordError(span, err)
		span.End()
	}
	h.log.V(2).Info("query", "operation", ev.Operation(), "duration", elapsed, "query", ev.Query, "error", err)
}
