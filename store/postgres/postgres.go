// Package postgres implements modulebox.Store using PostgreSQL.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool; Connect builds one
// from a Config.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/modulebox"
)

// Config describes how Connect builds a pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration

	// ConnectAttempts is how often Connect dials before giving up
	// (default 1). Failed attempts back off exponentially from
	// RetryBaseDelay (default 1s).
	ConnectAttempts int
	RetryBaseDelay  time.Duration
	Logger          *slog.Logger
}

// Connect parses cfg.DSN, applies the pool limits and dials the database.
// Zero values keep pgxpool's defaults.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "modulebox"

	r := retrier{attempts: cfg.ConnectAttempts, base: cfg.RetryBaseDelay, logger: cfg.Logger}
	return retryCall(ctx, r, func() (*pgxpool.Pool, error) {
		return dial(ctx, pc, cfg.DialTimeout)
	})
}

func dial(ctx context.Context, pc *pgxpool.Config, timeout time.Duration) (*pgxpool.Pool, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Option configures a PostgreSQL Store.
type Option func(*Store)

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements modulebox.Store backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ modulebox.Store = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates all required tables and indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		// JSON rather than JSONB: JSONB reorders object keys, and row
		// records must keep their column order.
		`CREATE TABLE IF NOT EXISTS modules (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			file_path TEXT NOT NULL,
			extracted_data JSON NOT NULL,
			published_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS modules_published_idx ON modules(published_at DESC)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id BIGSERIAL PRIMARY KEY,
			module_id BIGINT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS comments_module_idx ON comments(module_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	s.logger.Debug("postgres: init ok")
	return nil
}

// CreateModule validates and inserts m, returning it with its assigned id.
func (s *Store) CreateModule(ctx context.Context, m modulebox.Module) (modulebox.Module, error) {
	data, err := json.Marshal(m.Data)
	if err != nil {
		return modulebox.Module{}, fmt.Errorf("postgres: marshal extracted data: %w", err)
	}
	if err := modulebox.ValidateResult(data); err != nil {
		return modulebox.Module{}, err
	}
	if m.PublishedAt == 0 {
		m.PublishedAt = modulebox.NowUnix()
	}

	// Pass the JSON as text so the server stores it byte for byte.
	err = s.pool.QueryRow(ctx,
		`INSERT INTO modules (title, file_path, extracted_data, published_at)
		 VALUES ($1, $2, $3::json, $4) RETURNING id`,
		m.Title, m.FilePath, string(data), m.PublishedAt,
	).Scan(&m.ID)
	if err != nil {
		s.logger.Error("postgres: insert module failed", "title", m.Title, "error", err)
		return modulebox.Module{}, fmt.Errorf("postgres: insert module: %w", err)
	}
	m.Comments = nil
	s.logger.Debug("postgres: create module ok", "id", m.ID, "records", len(m.Data))
	return m, nil
}

// GetModule returns a module with its comments, oldest first.
func (s *Store) GetModule(ctx context.Context, id int64) (modulebox.Module, error) {
	var (
		m    modulebox.Module
		data string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, file_path, extracted_data::text, published_at FROM modules WHERE id = $1`, id,
	).Scan(&m.ID, &m.Title, &m.FilePath, &data, &m.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return modulebox.Module{}, fmt.Errorf("postgres: get module %d: %w", id, modulebox.ErrNotFound)
	}
	if err != nil {
		return modulebox.Module{}, fmt.Errorf("postgres: get module: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &m.Data); err != nil {
		return modulebox.Module{}, fmt.Errorf("postgres: decode extracted data: %w", err)
	}
	if m.Comments, err = s.ListComments(ctx, id); err != nil {
		return modulebox.Module{}, err
	}
	return m, nil
}

// ListModules returns modules newest first, without comments or extracted
// data. A limit <= 0 returns every module.
func (s *Store) ListModules(ctx context.Context, limit int) ([]modulebox.Module, error) {
	query := `SELECT id, title, file_path, published_at FROM modules ORDER BY published_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list modules: %w", err)
	}
	defer rows.Close()

	var mods []modulebox.Module
	for rows.Next() {
		var m modulebox.Module
		if err := rows.Scan(&m.ID, &m.Title, &m.FilePath, &m.PublishedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan module: %w", err)
		}
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

// DeleteModule removes a module; its comments go with it.
func (s *Store) DeleteModule(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete module %d: %w", id, modulebox.ErrNotFound)
	}
	s.logger.Debug("postgres: delete module ok", "id", id)
	return nil
}

// AddComment attaches text to an existing module.
func (s *Store) AddComment(ctx context.Context, moduleID int64, text string) (modulebox.Comment, error) {
	c := modulebox.Comment{ModuleID: moduleID, Text: text, CreatedAt: modulebox.NowUnix()}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO comments (module_id, text, created_at)
		 SELECT id, $2, $3 FROM modules WHERE id = $1
		 RETURNING id`,
		c.ModuleID, c.Text, c.CreatedAt,
	).Scan(&c.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return modulebox.Comment{}, fmt.Errorf("postgres: add comment to module %d: %w", moduleID, modulebox.ErrNotFound)
	}
	if err != nil {
		return modulebox.Comment{}, fmt.Errorf("postgres: insert comment: %w", err)
	}
	return c, nil
}

// ListComments returns the comments of a module, oldest first.
func (s *Store) ListComments(ctx context.Context, moduleID int64) ([]modulebox.Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, module_id, text, created_at FROM comments WHERE module_id = $1 ORDER BY created_at, id`,
		moduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list comments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (modulebox.Comment, error) {
		var c modulebox.Comment
		err := row.Scan(&c.ID, &c.ModuleID, &c.Text, &c.CreatedAt)
		return c, err
	})
}

// Close is a no-op. The caller owns the pool.
func (s *Store) Close() error {
	return nil
}
