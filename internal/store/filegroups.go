package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrBadPattern is returned for filter patterns without an ia: or ea: prefix.
var ErrBadPattern = errors.New("filter pattern must start with ia: or ea:")

// NextFileGroupID returns the ID the next inserted file group receives.
// IDs freed by DeleteFileGroup at the top of the range are handed out again.
func (s *Store) NextFileGroupID(ctx context.Context) (int, error) {
	var id int
	if err := s.q(ctx).QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id), 0) + 1 FROM file_groups").Scan(&id); err != nil {
		return 0, fmt.Errorf("store: next file group id: %w", err)
	}
	return id, nil
}

// InsertFileGroup allocates a trashed file group with an explicit id.
func (s *Store) InsertFileGroup(ctx context.Context, id int, kind GroupKind, pkg int) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).ExecContext(ctx,
			"INSERT INTO file_groups (id, kind) VALUES (?, ?)", id, kind); err != nil {
			return fmt.Errorf("store: insert file group %d: %w", id, err)
		}
		if _, err := s.q(ctx).ExecContext(ctx,
			"INSERT INTO members (type, id, pkg_id) VALUES (?, ?, ?)", MemberFileGroup, id, pkg); err != nil {
			return fmt.Errorf("store: file group %d membership: %w", id, err)
		}
		return nil
	})
}

// DeleteFileGroup removes a trashed file group along with its membership
// rows. Live groups are refused with ErrNotTrashed.
func (s *Store) DeleteFileGroup(ctx context.Context, id int) error {
	g, err := s.FileGroup(ctx, id)
	if err != nil {
		return err
	}
	if !g.Trashed {
		return fmt.Errorf("store: delete file group %d: %w", id, ErrNotTrashed)
	}
	return s.InTx(ctx, func(ctx context.Context) error {
		for _, table := range []string{"file_group_paths", "file_group_subgroups", "file_group_patterns"} {
			if _, err := s.q(ctx).ExecContext(ctx, "DELETE FROM "+table+" WHERE group_id = ?", id); err != nil {
				return fmt.Errorf("store: delete file group %d from %s: %w", id, table, err)
			}
		}
		if _, err := s.q(ctx).ExecContext(ctx,
			"DELETE FROM members WHERE type = ? AND id = ?", MemberFileGroup, id); err != nil {
			return fmt.Errorf("store: delete file group %d membership: %w", id, err)
		}
		return s.exec(ctx, "delete file group", id, "DELETE FROM file_groups WHERE id = ?", id)
	})
}

// FileGroup returns the row for id, trashed or not.
func (s *Store) FileGroup(ctx context.Context, id int) (GroupInfo, error) {
	g := GroupInfo{ID: id}
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT kind, predecessor, trashed FROM file_groups WHERE id = ?", id).
		Scan(&g.Kind, &g.Predecessor, &g.Trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return GroupInfo{}, fmt.Errorf("store: file group %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return GroupInfo{}, fmt.Errorf("store: file group %d: %w", id, err)
	}
	return g, nil
}

// TrashFileGroup marks id as trashed.
func (s *Store) TrashFileGroup(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "file_groups", id, true)
}

// ReviveFileGroup clears the trashed flag on id.
func (s *Store) ReviveFileGroup(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "file_groups", id, false)
}

// FileGroupPaths returns the ordered path list of a source group.
func (s *Store) FileGroupPaths(ctx context.Context, id int) ([]int, error) {
	return s.queryInts(ctx, "file group paths",
		"SELECT path_id FROM file_group_paths WHERE group_id = ? ORDER BY pos", id)
}

// SetFileGroupPaths replaces the path list of a source group.
func (s *Store) SetFileGroupPaths(ctx context.Context, id int, paths []int) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).ExecContext(ctx, "DELETE FROM file_group_paths WHERE group_id = ?", id); err != nil {
			return fmt.Errorf("store: clear file group %d paths: %w", id, err)
		}
		for i, p := range paths {
			if _, err := s.q(ctx).ExecContext(ctx,
				"INSERT INTO file_group_paths (group_id, pos, path_id) VALUES (?, ?, ?)", id, i, p); err != nil {
				return fmt.Errorf("store: file group %d path %d: %w", id, p, err)
			}
		}
		return nil
	})
}

// FileGroupSubGroups returns the ordered sub-group list of a merge group.
func (s *Store) FileGroupSubGroups(ctx context.Context, id int) ([]int, error) {
	return s.queryInts(ctx, "file group sub-groups",
		"SELECT sub_id FROM file_group_subgroups WHERE group_id = ? ORDER BY pos", id)
}

// SetFileGroupSubGroups replaces the sub-group list of a merge group.
func (s *Store) SetFileGroupSubGroups(ctx context.Context, id int, subs []int) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).ExecContext(ctx, "DELETE FROM file_group_subgroups WHERE group_id = ?", id); err != nil {
			return fmt.Errorf("store: clear file group %d sub-groups: %w", id, err)
		}
		for i, sub := range subs {
			if _, err := s.q(ctx).ExecContext(ctx,
				"INSERT INTO file_group_subgroups (group_id, pos, sub_id) VALUES (?, ?, ?)", id, i, sub); err != nil {
				return fmt.Errorf("store: file group %d sub-group %d: %w", id, sub, err)
			}
		}
		return nil
	})
}

// FileGroupPatterns returns the ordered pattern list of a filter group.
func (s *Store) FileGroupPatterns(ctx context.Context, id int) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		"SELECT pattern FROM file_group_patterns WHERE group_id = ? ORDER BY pos", id)
	if err != nil {
		return nil, fmt.Errorf("store: file group %d patterns: %w", id, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store: scan pattern: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate patterns: %w", err)
	}
	return out, nil
}

// SetFileGroupFilter makes a filter group select from predecessor using
// patterns.
func (s *Store) SetFileGroupFilter(ctx context.Context, id, predecessor int, patterns []string) error {
	for _, p := range patterns {
		if !strings.HasPrefix(p, "ia:") && !strings.HasPrefix(p, "ea:") {
			return fmt.Errorf("store: file group %d pattern %q: %w", id, p, ErrBadPattern)
		}
	}
	return s.InTx(ctx, func(ctx context.Context) error {
		if err := s.exec(ctx, "set filter predecessor", id,
			"UPDATE file_groups SET predecessor = ? WHERE id = ?", predecessor, id); err != nil {
			return err
		}
		if _, err := s.q(ctx).ExecContext(ctx, "DELETE FROM file_group_patterns WHERE group_id = ?", id); err != nil {
			return fmt.Errorf("store: clear file group %d patterns: %w", id, err)
		}
		for i, p := range patterns {
			if _, err := s.q(ctx).ExecContext(ctx,
				"INSERT INTO file_group_patterns (group_id, pos, pattern) VALUES (?, ?, ?)", id, i, p); err != nil {
				return fmt.Errorf("store: file group %d pattern %q: %w", id, p, err)
			}
		}
		return nil
	})
}

// ExpandFileGroup returns the path IDs a group stands for: a source group's
// list, the concatenation of a merge group's sub-groups, or the subset of a
// filter group's predecessor its patterns select.
func (s *Store) ExpandFileGroup(ctx context.Context, id int) ([]int, error) {
	return s.expand(ctx, id, make(map[int]bool))
}

func (s *Store) expand(ctx context.Context, id int, seen map[int]bool) ([]int, error) {
	if seen[id] {
		return nil, fmt.Errorf("store: file group %d refers to itself", id)
	}
	seen[id] = true
	defer delete(seen, id)

	g, err := s.FileGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	switch g.Kind {
	case GroupSource:
		return s.FileGroupPaths(ctx, id)
	case GroupMerge:
		subs, err := s.FileGroupSubGroups(ctx, id)
		if err != nil {
			return nil, err
		}
		var out []int
		for _, sub := range subs {
			ids, err := s.expand(ctx, sub, seen)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		}
		return out, nil
	case GroupFilter:
		if g.Predecessor == NoGroup {
			return nil, nil
		}
		in, err := s.expand(ctx, g.Predecessor, seen)
		if err != nil {
			return nil, err
		}
		patterns, err := s.FileGroupPatterns(ctx, id)
		if err != nil {
			return nil, err
		}
		return s.filterPaths(ctx, in, patterns)
	default:
		return nil, fmt.Errorf("store: file group %d has unknown kind %d", id, g.Kind)
	}
}

// filterPaths keeps the paths matching any ia: pattern (all paths when there
// are none), then drops those matching any ea: pattern.
func (s *Store) filterPaths(ctx context.Context, in []int, patterns []string) ([]int, error) {
	var include, exclude []string
	for _, p := range patterns {
		if g, ok := strings.CutPrefix(p, "ia:"); ok {
			include = append(include, g)
		} else if g, ok := strings.CutPrefix(p, "ea:"); ok {
			exclude = append(exclude, g)
		}
	}

	var out []int
	for _, id := range in {
		name, err := s.PathName(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(include) > 0 && !matchAny(include, name) {
			continue
		}
		if matchAny(exclude, name) {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func matchAny(globs []string, name string) bool {
	for _, g := range globs {
		if g == name {
			return true
		}
		if ok, err := path.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}
