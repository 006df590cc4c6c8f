// Package history keeps a local record of past scans in SQLite so score
// trends can be listed per source.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	consts "github.com/khanhnv2901/seca-markup/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Entry is one recorded scan. Only aggregate numbers are stored, never the
// scanned markup.
type Entry struct {
	ID          int64              `json:"id"`
	ScannedAt   time.Time          `json:"scanned_at"`
	Source      string             `json:"source"`
	InputSHA256 string             `json:"input_sha256"`
	InputBytes  int                `json:"input_bytes"`
	Score       int                `json:"score"`
	RiskLevel   analyzer.RiskLevel `json:"risk_level"`
	Errors      int                `json:"errors"`
	Warnings    int                `json:"warnings"`
	Suggestions int                `json:"suggestions"`
	Total       int                `json:"total"`
}

// EntryFromReport builds the history row for one scan of text.
func EntryFromReport(source, text string, r *analyzer.Report, now time.Time) Entry {
	sum := sha256.Sum256([]byte(text))
	return Entry{
		ScannedAt:   now.UTC(),
		Source:      source,
		InputSHA256: hex.EncodeToString(sum[:]),
		InputBytes:  len(text),
		Score:       r.Score,
		RiskLevel:   r.RiskLevel,
		Errors:      r.Counts.Errors,
		Warnings:    r.Counts.Warnings,
		Suggestions: r.Counts.Suggestions,
		Total:       r.Counts.TotalIssues,
	}
}

// Store persists scan entries in a SQLite database with WAL mode.
type Store struct {
	db            *sql.DB
	logger        *zap.Logger
	retention     time.Duration
	pruneInterval time.Duration
	stopPrune     chan struct{}
	pruneWg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithRetention enables background pruning of entries older than d.
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// WithPruneInterval sets how often background pruning runs.
func WithPruneInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pruneInterval = d
		}
	}
}

// WithLogger sets the logger used by background pruning.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

const createScansTable = `CREATE TABLE IF NOT EXISTS scans (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	scanned_at   DATETIME NOT NULL,
	source       TEXT NOT NULL,
	input_sha256 TEXT NOT NULL,
	input_bytes  INTEGER NOT NULL,
	score        INTEGER NOT NULL,
	risk_level   TEXT NOT NULL,
	errors       INTEGER NOT NULL,
	warnings     INTEGER NOT NULL,
	suggestions  INTEGER NOT NULL,
	total        INTEGER NOT NULL
)`

// Open opens (or creates) the history database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), consts.DefaultDirPerm); err != nil {
			return nil, fmt.Errorf("%w: create directory: %v", sharedErrors.ErrHistoryUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite: %v", sharedErrors.ErrHistoryUnavailable, err)
	}

	// SQLite uses file-level locking; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		createScansTable,
		"CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans(scanned_at)",
		"CREATE INDEX IF NOT EXISTS idx_scans_source ON scans(source)",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrHistoryUnavailable, err)
		}
	}

	s := &Store{
		db:            db,
		logger:        zap.NewNop(),
		pruneInterval: consts.HistoryPruneInterval,
		stopPrune:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.retention > 0 {
		s.pruneWg.Add(1)
		go s.pruneLoop()
	}
	return s, nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return sharedErrors.ErrHistoryClosed
	}
	return nil
}

// Record inserts e and returns its row ID.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	if e.ScannedAt.IsZero() {
		e.ScannedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO scans
		(scanned_at, source, input_sha256, input_bytes, score, risk_level,
		 errors, warnings, suggestions, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ScannedAt.UTC(), e.Source, e.InputSHA256, e.InputBytes, e.Score, string(e.RiskLevel),
		e.Errors, e.Warnings, e.Suggestions, e.Total,
	)
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}
	return res.LastInsertId()
}

const selectScans = "SELECT id, scanned_at, source, input_sha256, input_bytes, score, risk_level, " +
	"errors, warnings, suggestions, total FROM scans"

// Recent returns the latest entries, most recent first. If limit > 0, at
// most limit entries are returned.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, selectScans, limit)
}

// BySource returns the latest entries for one source, most recent first.
func (s *Store) BySource(ctx context.Context, source string, limit int) ([]Entry, error) {
	return s.query(ctx, selectScans+" WHERE source = ?", limit, source)
}

func (s *Store) query(ctx context.Context, query string, limit int, args ...any) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query += " ORDER BY scanned_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var level string
		if err := rows.Scan(
			&e.ID, &e.ScannedAt, &e.Source, &e.InputSHA256, &e.InputBytes,
			&e.Score, &level, &e.Errors, &e.Warnings, &e.Suggestions, &e.Total,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.RiskLevel = analyzer.RiskLevel(level)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ping reports whether the database is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Prune deletes entries older than olderThan.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, "DELETE FROM scans WHERE scanned_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return res.RowsAffected()
}

// pruneLoop runs periodic retention cleanup until stopped.
func (s *Store) pruneLoop() {
	defer s.pruneWg.Done()

	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := s.Prune(context.Background(), s.retention)
			if errors.Is(err, sharedErrors.ErrHistoryClosed) {
				return
			}
			if err != nil {
				s.logger.Error("history prune failed", zap.Error(err))
			} else if deleted > 0 {
				s.logger.Info("history pruned expired scans", zap.Int64("deleted", deleted))
			}
		case <-s.stopPrune:
			return
		}
	}
}

// Close stops background pruning and closes the database. Calling Close
// more than once is safe.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopPrune)
	s.mu.Unlock()

	s.pruneWg.Wait()
	return s.db.Close()
}
