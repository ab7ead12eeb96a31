package scores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/scores/migrations"
	"github.com/wricardo/mcp-training/memorygame/internal/sqlitemigrate"
	"k8s.io/klog/v2"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var ErrRejected = errors.New("best score rejected by storage")

// SQLiteStore persists best scores in the best_scores table.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens a SQLite database at path and applies embedded migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	applied, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, "")
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if len(applied) > 0 {
		klog.InfoS("Applied score migrations", "path", path, "migrations", applied)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, d engine.Difficulty) (int, bool, error) {
	if s == nil || s.sqlDB == nil {
		return 0, false, fmt.Errorf("storage is not configured")
	}
	var moves int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT moves FROM best_scores WHERE difficulty = ?`, string(d),
	).Scan(&moves)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get best score: %w", err)
	}
	return moves, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, d engine.Difficulty, moves int) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := checkMoves(d, moves); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO best_scores (difficulty, moves, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(difficulty) DO UPDATE SET moves = excluded.moves, updated_at = excluded.updated_at`,
		string(d), moves, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return fmt.Errorf("set best score: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetIfLower(ctx context.Context, d engine.Difficulty, moves int) (bool, error) {
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if err := checkMoves(d, moves); err != nil {
		return false, err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO best_scores (difficulty, moves, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(difficulty) DO UPDATE SET moves = excluded.moves, updated_at = excluded.updated_at
		 WHERE excluded.moves < best_scores.moves`,
		string(d), moves, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return false, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return false, fmt.Errorf("record best score: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record best score: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) All(ctx context.Context) (map[engine.Difficulty]int, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT difficulty, moves FROM best_scores`)
	if err != nil {
		return nil, fmt.Errorf("list best scores: %w", err)
	}
	defer rows.Close()

	out := make(map[engine.Difficulty]int)
	for rows.Next() {
		var d string
		var moves int
		if err := rows.Scan(&d, &moves); err != nil {
			return nil, fmt.Errorf("scan best score: %w", err)
		}
		out[engine.Difficulty(d)] = moves
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate best scores: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Reset(ctx context.Context, d engine.Difficulty) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM best_scores WHERE difficulty = ?`, string(d)); err != nil {
		return fmt.Errorf("reset best score: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_CHECK, sqlite3lib.SQLITE_CONSTRAINT_NOTNULL, sqlite3lib.SQLITE_CONSTRAINT:
		return true
	}
	return false
}
