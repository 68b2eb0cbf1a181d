// Package sqlite implements modulebox.Store using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nevindra/modulebox"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements modulebox.Store backed by a local SQLite file.
// Extracted data is stored as JSON text exactly as it was serialised.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ modulebox.Store = (*Store)(nil)

var nopLogger = slog.New(slog.DiscardHandler)

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// dsn appends the connection pragmas every connection needs.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS modules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			file_path TEXT NOT NULL,
			extracted_data TEXT NOT NULL,
			published_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			module_id INTEGER NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_modules_published ON modules(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_module ON comments(module_id)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.Error("sqlite: init failed", "error", err)
			return fmt.Errorf("create schema: %w", err)
		}
	}
	s.logger.Debug("sqlite: init ok", "duration", time.Since(start))
	return nil
}

// --- Modules ---

// CreateModule validates and inserts m, returning it with its assigned id.
// A zero PublishedAt is set to the current time.
func (s *Store) CreateModule(ctx context.Context, m modulebox.Module) (modulebox.Module, error) {
	start := time.Now()
	s.logger.Debug("sqlite: create module", "title", m.Title, "records", len(m.Data))

	data, err := json.Marshal(m.Data)
	if err != nil {
		return modulebox.Module{}, fmt.Errorf("marshal extracted data: %w", err)
	}
	if err := modulebox.ValidateResult(data); err != nil {
		return modulebox.Module{}, err
	}
	if m.PublishedAt == 0 {
		m.PublishedAt = modulebox.NowUnix()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO modules (title, file_path, extracted_data, published_at) VALUES (?, ?, ?, ?)`,
		m.Title, m.FilePath, string(data), m.PublishedAt,
	)
	if err != nil {
		s.logger.Error("sqlite: insert module failed", "title", m.Title, "error", err)
		return modulebox.Module{}, fmt.Errorf("insert module: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return modulebox.Module{}, fmt.Errorf("module id: %w", err)
	}
	m.Comments = nil
	s.logger.Debug("sqlite: create module ok", "id", m.ID, "duration", time.Since(start))
	return m, nil
}

// GetModule returns a module with its comments, oldest first.
func (s *Store) GetModule(ctx context.Context, id int64) (modulebox.Module, error) {
	start := time.Now()
	s.logger.Debug("sqlite: get module", "id", id)

	var (
		m    modulebox.Module
		data string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, file_path, extracted_data, published_at FROM modules WHERE id = ?`, id,
	).Scan(&m.ID, &m.Title, &m.FilePath, &data, &m.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return modulebox.Module{}, fmt.Errorf("get module %d: %w", id, modulebox.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("sqlite: get module failed", "id", id, "error", err)
		return modulebox.Module{}, fmt.Errorf("get module: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &m.Data); err != nil {
		return modulebox.Module{}, fmt.Errorf("decode extracted data: %w", err)
	}

	if m.Comments, err = s.ListComments(ctx, id); err != nil {
		return modulebox.Module{}, err
	}
	s.logger.Debug("sqlite: get module ok", "id", id, "comments", len(m.Comments), "duration", time.Since(start))
	return m, nil
}

// ListModules returns modules newest first, without comments or extracted
// data. A limit <= 0 returns every module.
func (s *Store) ListModules(ctx context.Context, limit int) ([]modulebox.Module, error) {
	start := time.Now()
	s.logger.Debug("sqlite: list modules", "limit", limit)

	query := `SELECT id, title, file_path, published_at FROM modules ORDER BY published_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("sqlite: list modules failed", "error", err)
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var mods []modulebox.Module
	for rows.Next() {
		var m modulebox.Module
		if err := rows.Scan(&m.ID, &m.Title, &m.FilePath, &m.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		mods = append(mods, m)
	}
	s.logger.Debug("sqlite: list modules ok", "count", len(mods), "duration", time.Since(start))
	return mods, rows.Err()
}

// DeleteModule removes a module and its comments.
func (s *Store) DeleteModule(ctx context.Context, id int64) error {
	start := time.Now()
	s.logger.Debug("sqlite: delete module", "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE module_id = ?`, id); err != nil {
		return fmt.Errorf("delete module comments: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM modules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete module: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete module %d: %w", id, modulebox.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: delete module commit failed", "id", id, "error", err)
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: delete module ok", "id", id, "duration", time.Since(start))
	return nil
}

// --- Comments ---

// AddComment attaches text to an existing module.
func (s *Store) AddComment(ctx context.Context, moduleID int64, text string) (modulebox.Comment, error) {
	start := time.Now()
	s.logger.Debug("sqlite: add comment", "module_id", moduleID, "len", len(text))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return modulebox.Comment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM modules WHERE id = ?`, moduleID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return modulebox.Comment{}, fmt.Errorf("add comment to module %d: %w", moduleID, modulebox.ErrNotFound)
	}
	if err != nil {
		return modulebox.Comment{}, fmt.Errorf("lookup module: %w", err)
	}

	c := modulebox.Comment{ModuleID: moduleID, Text: text, CreatedAt: modulebox.NowUnix()}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO comments (module_id, text, created_at) VALUES (?, ?, ?)`,
		c.ModuleID, c.Text, c.CreatedAt,
	)
	if err != nil {
		s.logger.Error("sqlite: insert comment failed", "module_id", moduleID, "error", err)
		return modulebox.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return modulebox.Comment{}, fmt.Errorf("comment id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return modulebox.Comment{}, fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: add comment ok", "id", c.ID, "module_id", moduleID, "duration", time.Since(start))
	return c, nil
}

// ListComments returns the comments of a module, oldest first.
func (s *Store) ListComments(ctx context.Context, moduleID int64) ([]modulebox.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, module_id, text, created_at FROM comments WHERE module_id = ? ORDER BY created_at, id`,
		moduleID,
	)
	if err != nil {
		s.logger.Error("sqlite: list comments failed", "module_id", moduleID, "error", err)
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []modulebox.Comment
	for rows.Next() {
		var c modulebox.Comment
		if err := rows.Scan(&c.ID, &c.ModuleID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.logger.Debug("sqlite: closing store")
	err := s.db.Close()
	if err != nil {
		s.logger.Error("sqlite: close failed", "error", err)
	}
	return err
}
