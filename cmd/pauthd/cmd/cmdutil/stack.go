package cmdutil

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/pluggableauth/internal/config"
	"github.com/terraconstructs/pluggableauth/internal/db/bunx"
	"github.com/terraconstructs/pluggableauth/internal/logging"
	"github.com/terraconstructs/pluggableauth/internal/setup"
)

// NewLogger builds the process logger from the configuration.
func NewLogger(cfg *config.Config) (logr.Logger, func(), error) {
	return logging.New(logging.Options{Debug: cfg.Debug, Encoding: cfg.LogFormat})
}

// StackBundle bundles the authentication stack with its database connection
// and logger so commands can release them together.
type StackBundle struct {
	Stack *setup.Stack
	DB    *bun.DB
	Log   logr.Logger

	flush func()
}

// Close releases the database connection and flushes the logger.
func (b *StackBundle) Close() {
	if b == nil {
		return
	}
	if b.DB != nil {
		_ = bunx.Close(b.DB)
	}
	if b.flush != nil {
		b.flush()
	}
}

// NewStackBundle centralizes stack construction for CLI commands. It opens the
// configured database and loads the persisted folders.
func NewStackBundle(ctx context.Context, cfg *config.Config) (*StackBundle, error) {
	log, flush, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxOpenConns(cfg.MaxDBConnections))
	if err != nil {
		flush()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	stack, err := setup.Build(ctx, cfg, setup.Options{DB: db, Logger: log})
	if err != nil {
		_ = bunx.Close(db)
		flush()
		return nil, fmt.Errorf("failed to build authentication stack: %w", err)
	}
	return &StackBundle{Stack: stack, DB: db, Log: log, flush: flush}, nil
}

// ReadPassword reads one line from r, prompting on w.
func ReadPassword(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprint(w, "Enter password: ")
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return "", fmt.Errorf("no password on stdin")
}
