package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/KirkDiggler/vipsync/internal/common/logging"
	"github.com/KirkDiggler/vipsync/internal/models"
)

const (
	// DefaultPollInterval is how often a sqlite watcher looks for new revisions
	DefaultPollInterval = 2 * time.Second

	timeFormat = time.RFC3339Nano
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	previous   TEXT NOT NULL DEFAULT '',
	origin     TEXT NOT NULL DEFAULT '',
	revision   INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_kv_entries_revision ON kv_entries (revision)`,
}

// SQLiteConfig holds configuration for the SQLite store
type SQLiteConfig struct {
	// Path to the database file
	Path string

	// PollInterval for Watch; defaults to DefaultPollInterval
	PollInterval time.Duration

	// Logger is optional
	Logger *zap.Logger
}

// sqliteStore implements the Store interface on a single SQLite file. Every
// write stamps the row with a store-wide revision; watchers poll for
// revisions newer than the last one they saw.
type sqliteStore struct {
	sqlDB        *sql.DB
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewSQLite opens (and if needed creates) a SQLite store at cfg.Path
func NewSQLite(cfg *SQLiteConfig) (*sqliteStore, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}

	cleanPath := filepath.Clean(cfg.Path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("create sqlite schema: %w", err)
		}
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &sqliteStore{
		sqlDB:        sqlDB,
		pollInterval: pollInterval,
		logger:       logging.OrNop(cfg.Logger),
	}, nil
}

// Get retrieves a raw value
func (s *sqliteStore) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.Key == "" {
		return nil, errors.New("input and key cannot be empty")
	}

	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, input.Key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", input.Key, err)
	}

	return &GetOutput{
		Value: value,
	}, nil
}

// Set upserts a raw value with the next revision
func (s *sqliteStore) Set(ctx context.Context, input *SetInput) (*SetOutput, error) {
	if input == nil || input.Key == "" {
		return nil, errors.New("input and key cannot be empty")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	output := &SetOutput{}
	err = tx.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, input.Key).Scan(&output.Previous)
	switch {
	case err == nil:
		output.Existed = true
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to read previous value of %s: %w", input.Key, err)
	}

	var revision int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(revision), 0) + 1 FROM kv_entries`).Scan(&revision); err != nil {
		return nil, fmt.Errorf("failed to allocate revision: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO kv_entries (key, value, previous, origin, revision, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
	value = excluded.value,
	previous = excluded.previous,
	origin = excluded.origin,
	revision = excluded.revision,
	updated_at = excluded.updated_at`,
		input.Key, input.Value, output.Previous, input.Origin, revision, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to set %s: %w", input.Key, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", input.Key, err)
	}

	return output, nil
}

// Watch polls for rows written after the call. Several writes to one key
// between polls are delivered as a single change carrying the latest value.
func (s *sqliteStore) Watch(ctx context.Context, input *WatchInput) (*WatchOutput, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}

	var lastRevision int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COALESCE(MAX(revision), 0) FROM kv_entries`).Scan(&lastRevision); err != nil {
		return nil, fmt.Errorf("failed to read current revision: %w", err)
	}

	changes := make(chan *models.Change)
	go func() {
		defer close(changes)

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			pending, revision, err := s.changesSince(ctx, lastRevision)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("failed to poll for changes", zap.Error(err))
				continue
			}
			lastRevision = revision

			for _, change := range pending {
				if input.Origin != "" && change.Origin == input.Origin {
					continue
				}
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return &WatchOutput{
		Changes: changes,
	}, nil
}

// Close closes the underlying database
func (s *sqliteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *sqliteStore) changesSince(ctx context.Context, since int64) ([]*models.Change, int64, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT key, value, previous, origin, revision
FROM kv_entries
WHERE revision > ?
ORDER BY revision`, since)
	if err != nil {
		return nil, since, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	latest := since
	var changes []*models.Change
	for rows.Next() {
		var (
			change   models.Change
			revision int64
		)
		if err := rows.Scan(&change.Key, &change.NewValue, &change.OldValue, &change.Origin, &revision); err != nil {
			return nil, since, fmt.Errorf("failed to scan change: %w", err)
		}
		changes = append(changes, &change)
		latest = revision
	}
	if err := rows.Err(); err != nil {
		return nil, since, fmt.Errorf("failed to read changes: %w", err)
	}

	return changes, latest, nil
}
