package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// AddFile registers the file at fullPath, creating missing parent
// directories. An existing path is returned as-is; a trashed one is revived.
func (s *Store) AddFile(ctx context.Context, fullPath string) (int, error) {
	return s.addPath(ctx, fullPath, PathFile)
}

// AddDirectory registers the directory at fullPath.
func (s *Store) AddDirectory(ctx context.Context, fullPath string) (int, error) {
	return s.addPath(ctx, fullPath, PathDirectory)
}

// AddSymlink registers the symlink at fullPath.
func (s *Store) AddSymlink(ctx context.Context, fullPath string) (int, error) {
	return s.addPath(ctx, fullPath, PathSymlink)
}

func splitPath(fullPath string) ([]string, error) {
	if !strings.HasPrefix(fullPath, "/") {
		return nil, fmt.Errorf("store: %q: %w", fullPath, ErrBadPath)
	}
	var parts []string
	for _, p := range strings.Split(fullPath, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts, nil
}

func (s *Store) addPath(ctx context.Context, fullPath string, typ PathType) (int, error) {
	parts, err := splitPath(fullPath)
	if err != nil {
		return 0, err
	}
	cur := RootPath
	for i, name := range parts {
		want := PathDirectory
		if i == len(parts)-1 {
			want = typ
		}
		cur, err = s.childOrCreate(ctx, cur, name, want)
		if err != nil {
			return 0, err
		}
	}
	s.logger.Debug("path registered", zap.String("path", fullPath), zap.Int("id", cur))
	return cur, nil
}

func (s *Store) childOrCreate(ctx context.Context, parent int, name string, typ PathType) (int, error) {
	var id int
	var trashed bool
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT id, trashed FROM paths WHERE parent_id = ? AND name = ?", parent, name).Scan(&id, &trashed)
	switch {
	case err == nil:
		if trashed {
			if _, err := s.q(ctx).ExecContext(ctx, "UPDATE paths SET trashed = 0 WHERE id = ?", id); err != nil {
				return 0, fmt.Errorf("store: revive path %q: %w", name, err)
			}
		}
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return 0, fmt.Errorf("store: lookup path %q: %w", name, err)
	}

	res, err := s.q(ctx).ExecContext(ctx,
		"INSERT INTO paths (parent_id, name, type) VALUES (?, ?, ?)", parent, name, typ)
	if err != nil {
		return 0, fmt.Errorf("store: insert path %q: %w", name, err)
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: path id for %q: %w", name, err)
	}
	id = int(id64)
	if _, err := s.q(ctx).ExecContext(ctx,
		"INSERT INTO members (type, id, pkg_id) VALUES (?, ?, ?)", MemberFile, id, ImportPackage); err != nil {
		return 0, fmt.Errorf("store: path %d membership: %w", id, err)
	}
	return id, nil
}

// LookupPath returns the ID of the live path at fullPath.
func (s *Store) LookupPath(ctx context.Context, fullPath string) (int, error) {
	parts, err := splitPath(fullPath)
	if err != nil {
		return 0, err
	}
	cur := RootPath
	for _, name := range parts {
		err := s.q(ctx).QueryRowContext(ctx,
			"SELECT id FROM paths WHERE parent_id = ? AND name = ? AND trashed = 0", cur, name).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("store: lookup %q: %w", fullPath, ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("store: lookup %q: %w", fullPath, err)
		}
	}
	return cur, nil
}

// Path returns the row for id, trashed or not.
func (s *Store) Path(ctx context.Context, id int) (PathInfo, error) {
	p := PathInfo{ID: id}
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT parent_id, name, type, trashed FROM paths WHERE id = ?", id).
		Scan(&p.Parent, &p.Name, &p.Type, &p.Trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return PathInfo{}, fmt.Errorf("store: path %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return PathInfo{}, fmt.Errorf("store: path %d: %w", id, err)
	}
	return p, nil
}

// PathName returns the absolute name of id. Names never change once a path
// is registered, so results are cached.
func (s *Store) PathName(ctx context.Context, id int) (string, error) {
	if name, ok := s.names.Get(id); ok {
		return name, nil
	}
	if id == RootPath {
		return "/", nil
	}
	var parts []string
	cur := id
	for cur != RootPath {
		p, err := s.Path(ctx, cur)
		if err != nil {
			return "", err
		}
		parts = append(parts, p.Name)
		cur = p.Parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	name := "/" + strings.Join(parts, "/")
	s.names.Add(id, name)
	return name, nil
}

// PathChildren returns the live children of id in ascending order.
func (s *Store) PathChildren(ctx context.Context, id int) ([]int, error) {
	return s.queryInts(ctx, "path children",
		"SELECT id FROM paths WHERE parent_id = ? AND id != ? AND trashed = 0 ORDER BY id", id, id)
}

// PathsNamed returns every live path whose base name is name.
func (s *Store) PathsNamed(ctx context.Context, name string) ([]int, error) {
	return s.queryInts(ctx, "paths named",
		"SELECT id FROM paths WHERE name = ? AND id != 0 AND trashed = 0 ORDER BY id", name)
}

// PathParents returns id -> parent for every live path, root included.
func (s *Store) PathParents(ctx context.Context) (map[int]int, error) {
	return s.queryParents(ctx, "path parents", "SELECT id, parent_id FROM paths WHERE trashed = 0")
}

// TrashPath marks id as trashed. Directories with live children are
// rejected with ErrNotEmpty.
func (s *Store) TrashPath(ctx context.Context, id int) error {
	kids, err := s.PathChildren(ctx, id)
	if err != nil {
		return err
	}
	if len(kids) > 0 {
		return fmt.Errorf("store: trash path %d: %w", id, ErrNotEmpty)
	}
	return s.setTrashed(ctx, "paths", id, true)
}

// RevivePath clears the trashed flag on id.
func (s *Store) RevivePath(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "paths", id, false)
}

// IsAncestorPath reports whether ancestor is id or one of its ancestors.
func (s *Store) IsAncestorPath(ctx context.Context, ancestor, id int) (bool, error) {
	cur := id
	for {
		if cur == ancestor {
			return true, nil
		}
		if cur == RootPath {
			return false, nil
		}
		p, err := s.Path(ctx, cur)
		if err != nil {
			return false, err
		}
		cur = p.Parent
	}
}
