// Package store persists a build's provenance graph (paths, actions, their
// file accesses, slots, packages and file groups) in a local SQLite database.
//
// Entities that refactoring operations create (packages, folders, file groups,
// slots, sub-packages) are allocated in the trashed state and become visible
// only when revived, so that creating them is an ordinary undoable step.
// Every method honours a transaction carried on the context by InTx.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var (
	// ErrNotFound is returned when an ID or name does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTrashed is returned when mutating an entity that is already trashed.
	ErrTrashed = errors.New("already trashed")

	// ErrNotTrashed is returned when reviving or deleting an entity that is live.
	ErrNotTrashed = errors.New("not trashed")

	// ErrNotEmpty is returned when trashing a directory or package that still
	// has live contents.
	ErrNotEmpty = errors.New("not empty")

	// ErrBadPath is returned for path strings that are not absolute.
	ErrBadPath = errors.New("path must be absolute")
)

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS paths (
    id        INTEGER PRIMARY KEY,
    parent_id INTEGER NOT NULL,
    name      TEXT NOT NULL,
    type      INTEGER NOT NULL,
    trashed   INTEGER NOT NULL DEFAULT 0,
    UNIQUE(parent_id, name)
);

CREATE TABLE IF NOT EXISTS actions (
    id        INTEGER PRIMARY KEY,
    parent_id INTEGER NOT NULL,
    dir_id    INTEGER NOT NULL,
    command   TEXT NOT NULL DEFAULT '',
    trashed   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_actions_parent ON actions(parent_id);

CREATE TABLE IF NOT EXISTS file_access (
    seq       INTEGER PRIMARY KEY AUTOINCREMENT,
    action_id INTEGER NOT NULL,
    path_id   INTEGER NOT NULL,
    op        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_access_action ON file_access(action_id);
CREATE INDEX IF NOT EXISTS idx_file_access_path ON file_access(path_id);

CREATE TABLE IF NOT EXISTS slots (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_pkg   INTEGER NOT NULL DEFAULT 0,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    type        INTEGER NOT NULL,
    pos         INTEGER NOT NULL,
    cardinality INTEGER NOT NULL,
    default_val TEXT NOT NULL DEFAULT '',
    trashed     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS slot_values (
    owner_id INTEGER NOT NULL,
    slot_id  INTEGER NOT NULL,
    value    TEXT NOT NULL,
    PRIMARY KEY(owner_id, slot_id)
);

CREATE TABLE IF NOT EXISTS packages (
    id        INTEGER PRIMARY KEY,
    parent_id INTEGER NOT NULL,
    name      TEXT NOT NULL,
    is_folder INTEGER NOT NULL DEFAULT 0,
    src_root  INTEGER NOT NULL DEFAULT 0,
    gen_root  INTEGER NOT NULL DEFAULT 0,
    trashed   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS members (
    type   INTEGER NOT NULL,
    id     INTEGER NOT NULL,
    pkg_id INTEGER NOT NULL,
    scope  INTEGER NOT NULL DEFAULT 0,
    x      INTEGER NOT NULL DEFAULT -1,
    y      INTEGER NOT NULL DEFAULT -1,
    PRIMARY KEY(type, id)
);
CREATE INDEX IF NOT EXISTS idx_members_pkg ON members(pkg_id);

CREATE TABLE IF NOT EXISTS file_groups (
    id          INTEGER PRIMARY KEY,
    kind        INTEGER NOT NULL,
    predecessor INTEGER NOT NULL DEFAULT -1,
    trashed     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS file_group_paths (
    group_id INTEGER NOT NULL,
    pos      INTEGER NOT NULL,
    path_id  INTEGER NOT NULL,
    PRIMARY KEY(group_id, pos)
);

CREATE TABLE IF NOT EXISTS file_group_subgroups (
    group_id INTEGER NOT NULL,
    pos      INTEGER NOT NULL,
    sub_id   INTEGER NOT NULL,
    PRIMARY KEY(group_id, pos)
);

CREATE TABLE IF NOT EXISTS file_group_patterns (
    group_id INTEGER NOT NULL,
    pos      INTEGER NOT NULL,
    pattern  TEXT NOT NULL,
    PRIMARY KEY(group_id, pos)
);

CREATE TABLE IF NOT EXISTS sub_packages (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    pkg_type INTEGER NOT NULL,
    trashed  INTEGER NOT NULL DEFAULT 1
);

INSERT OR IGNORE INTO paths (id, parent_id, name, type) VALUES (0, 0, '', 2);
INSERT OR IGNORE INTO actions (id, parent_id, dir_id, command) VALUES (0, 0, 0, '<root>');
INSERT OR IGNORE INTO packages (id, parent_id, name, is_folder) VALUES (0, 0, 'Root', 1);
INSERT OR IGNORE INTO packages (id, parent_id, name, is_folder) VALUES (1, 0, '<import>', 0);
INSERT OR IGNORE INTO slots (id, name, description, type, pos, cardinality)
    VALUES (1, 'Input', 'Files read by the action', 1, 0, 1);
INSERT OR IGNORE INTO slots (id, name, description, type, pos, cardinality)
    VALUES (2, 'Output', 'Files written by the action', 1, 1, 1);
`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// Store is the SQLite-backed build store.
type Store struct {
	db     *sql.DB
	names  *lru.Cache[int, string]
	logger *zap.Logger
}

// Options configures Open.
type Options struct {
	// NameCacheSize bounds the path-name cache. Zero selects 4096.
	NameCacheSize int
	// Logger receives store diagnostics. Nil discards them.
	Logger *zap.Logger
}

// Open opens (or creates) a SQLite database at dbPath, enables WAL mode and
// busy timeout, and creates the schema tables if they do not exist.
func Open(ctx context.Context, dbPath string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps a context-carried
	// transaction and plain queries from contending with each other.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	size := opts.NameCacheSize
	if size <= 0 {
		size = 4096
	}
	names, err := lru.New[int, string](size)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: name cache: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("store opened", zap.String("path", dbPath))
	return &Store{db: db, names: names, logger: logger}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// q returns the transaction carried on ctx, or the database.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// InTx runs fn with a context carrying one transaction, committing if fn
// succeeds and rolling back otherwise. A nested call joins the outer
// transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		// Names cached inside the failed transaction may belong to rows that
		// no longer exist.
		s.names.Purge()
		return err
	}
	if err := tx.Commit(); err != nil {
		s.names.Purge()
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// exec runs a statement that must touch exactly one row, mapping zero rows
// to ErrNotFound.
func (s *Store) exec(ctx context.Context, what string, id int, query string, args ...any) error {
	res, err := s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: %s %d: %w", what, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s %d rows affected: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

// queryInts runs a query returning one integer column.
func (s *Store) queryInts(ctx context.Context, what string, query string, args ...any) ([]int, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", what, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", what, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate %s: %w", what, err)
	}
	return ids, nil
}

// queryParents runs a query returning (id, parent) pairs.
func (s *Store) queryParents(ctx context.Context, what string, query string) (map[int]int, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", what, err)
	}
	defer rows.Close()

	parents := make(map[int]int)
	for rows.Next() {
		var id, parent int
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", what, err)
		}
		parents[id] = parent
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate %s: %w", what, err)
	}
	return parents, nil
}

// setTrashed flips the trashed flag on table row id, enforcing the expected
// prior state.
func (s *Store) setTrashed(ctx context.Context, table string, id int, trashed bool) error {
	var cur bool
	err := s.q(ctx).QueryRowContext(ctx, "SELECT trashed FROM "+table+" WHERE id = ?", id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: %s %d: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: %s %d trashed state: %w", table, id, err)
	}
	if cur == trashed {
		if trashed {
			return fmt.Errorf("store: trash %s %d: %w", table, id, ErrTrashed)
		}
		return fmt.Errorf("store: revive %s %d: %w", table, id, ErrNotTrashed)
	}
	return s.exec(ctx, "set trashed on "+table, id,
		"UPDATE "+table+" SET trashed = ? WHERE id = ?", trashed, id)
}
