package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// AddAction registers a live action under parent, running in directory dir.
// New actions belong to the import package.
func (s *Store) AddAction(ctx context.Context, parent, dir int, command string) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		"INSERT INTO actions (parent_id, dir_id, command) VALUES (?, ?, ?)", parent, dir, command)
	if err != nil {
		return 0, fmt.Errorf("store: insert action: %w", err)
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: action id: %w", err)
	}
	id := int(id64)
	if _, err := s.q(ctx).ExecContext(ctx,
		"INSERT INTO members (type, id, pkg_id) VALUES (?, ?, ?)", MemberAction, id, ImportPackage); err != nil {
		return 0, fmt.Errorf("store: action %d membership: %w", id, err)
	}
	return id, nil
}

// Action returns the row for id, trashed or not.
func (s *Store) Action(ctx context.Context, id int) (ActionInfo, error) {
	a := ActionInfo{ID: id}
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT parent_id, dir_id, command, trashed FROM actions WHERE id = ?", id).
		Scan(&a.Parent, &a.Dir, &a.Command, &a.Trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return ActionInfo{}, fmt.Errorf("store: action %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return ActionInfo{}, fmt.Errorf("store: action %d: %w", id, err)
	}
	return a, nil
}

// ActionChildren returns the live children of id in ascending order.
func (s *Store) ActionChildren(ctx context.Context, id int) ([]int, error) {
	return s.queryInts(ctx, "action children",
		"SELECT id FROM actions WHERE parent_id = ? AND id != ? AND trashed = 0 ORDER BY id", id, id)
}

// ActionParents returns id -> parent for every live action, root included.
func (s *Store) ActionParents(ctx context.Context) (map[int]int, error) {
	return s.queryParents(ctx, "action parents", "SELECT id, parent_id FROM actions WHERE trashed = 0")
}

// ActionsInDirectory returns the live actions whose working directory is dir.
func (s *Store) ActionsInDirectory(ctx context.Context, dir int) ([]int, error) {
	return s.queryInts(ctx, "actions in directory",
		"SELECT id FROM actions WHERE dir_id = ? AND id != 0 AND trashed = 0 ORDER BY id", dir)
}

// SetActionParent re-parents id.
func (s *Store) SetActionParent(ctx context.Context, id, parent int) error {
	return s.exec(ctx, "set action parent", id,
		"UPDATE actions SET parent_id = ? WHERE id = ?", parent, id)
}

// SetActionCommand replaces the command string of id.
func (s *Store) SetActionCommand(ctx context.Context, id int, command string) error {
	return s.exec(ctx, "set action command", id,
		"UPDATE actions SET command = ? WHERE id = ?", command, id)
}

// TrashAction marks id as trashed.
func (s *Store) TrashAction(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "actions", id, true)
}

// ReviveAction clears the trashed flag on id.
func (s *Store) ReviveAction(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "actions", id, false)
}

// AddFileAccess records that action touched path with op. A zero seq
// allocates the next sequence number; a non-zero seq restores a record
// removed earlier. The record's sequence number is returned.
func (s *Store) AddFileAccess(ctx context.Context, action, path int, op OpType, seq int) (int, error) {
	var (
		res sql.Result
		err error
	)
	if seq == 0 {
		res, err = s.q(ctx).ExecContext(ctx,
			"INSERT INTO file_access (action_id, path_id, op) VALUES (?, ?, ?)", action, path, op)
	} else {
		res, err = s.q(ctx).ExecContext(ctx,
			"INSERT INTO file_access (seq, action_id, path_id, op) VALUES (?, ?, ?, ?)", seq, action, path, op)
	}
	if err != nil {
		return 0, fmt.Errorf("store: add access %d/%d: %w", action, path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: access seq: %w", err)
	}
	return int(id), nil
}

// RemoveFileAccess deletes the access record seq.
func (s *Store) RemoveFileAccess(ctx context.Context, seq int) error {
	return s.exec(ctx, "remove access", seq, "DELETE FROM file_access WHERE seq = ?", seq)
}

// FileAccesses returns every access record of action in sequence order.
func (s *Store) FileAccesses(ctx context.Context, action int) ([]FileAccess, error) {
	return s.accesses(ctx, "SELECT seq, action_id, path_id, op FROM file_access WHERE action_id = ? ORDER BY seq", action)
}

// PathAccesses returns every access record naming path in sequence order,
// including those of trashed actions.
func (s *Store) PathAccesses(ctx context.Context, path int) ([]FileAccess, error) {
	return s.accesses(ctx, "SELECT seq, action_id, path_id, op FROM file_access WHERE path_id = ? ORDER BY seq", path)
}

func (s *Store) accesses(ctx context.Context, query string, id int) ([]FileAccess, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("store: accesses of %d: %w", id, err)
	}
	defer rows.Close()

	var out []FileAccess
	for rows.Next() {
		var fa FileAccess
		if err := rows.Scan(&fa.Seq, &fa.Action, &fa.Path, &fa.Op); err != nil {
			return nil, fmt.Errorf("store: scan access: %w", err)
		}
		out = append(out, fa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate accesses: %w", err)
	}
	return out, nil
}

// opFilter renders ops as an SQL IN list; no ops matches everything.
func opFilter(ops []OpType) (string, []any) {
	if len(ops) == 0 {
		return "", nil
	}
	marks := make([]string, len(ops))
	args := make([]any, len(ops))
	for i, op := range ops {
		marks[i] = "?"
		args[i] = op
	}
	return " AND fa.op IN (" + strings.Join(marks, ",") + ")", args
}

// ActionsThatAccess returns the distinct live actions that touched path with
// one of ops (any op when none are given).
func (s *Store) ActionsThatAccess(ctx context.Context, path int, ops ...OpType) ([]int, error) {
	filter, args := opFilter(ops)
	return s.queryInts(ctx, "actions accessing path",
		`SELECT DISTINCT fa.action_id FROM file_access fa
		 JOIN actions a ON a.id = fa.action_id
		 WHERE fa.path_id = ? AND a.trashed = 0`+filter+` ORDER BY fa.action_id`,
		append([]any{path}, args...)...)
}

// FilesAccessed returns the distinct paths action touched with one of ops.
func (s *Store) FilesAccessed(ctx context.Context, action int, ops ...OpType) ([]int, error) {
	filter, args := opFilter(ops)
	return s.queryInts(ctx, "files accessed",
		`SELECT DISTINCT fa.path_id FROM file_access fa
		 WHERE fa.action_id = ?`+filter+` ORDER BY fa.path_id`,
		append([]any{action}, args...)...)
}

// ActionCommands returns id -> command for every live action except the root.
func (s *Store) ActionCommands(ctx context.Context) (map[int]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx, "SELECT id, command FROM actions WHERE id != 0 AND trashed = 0")
	if err != nil {
		return nil, fmt.Errorf("store: action commands: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var id int
		var cmd string
		if err := rows.Scan(&id, &cmd); err != nil {
			return nil, fmt.Errorf("store: scan action command: %w", err)
		}
		out[id] = cmd
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate action commands: %w", err)
	}
	return out, nil
}
