package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NewPackage allocates a trashed package called name inside folder parent.
func (s *Store) NewPackage(ctx context.Context, name string, parent int) (int, error) {
	return s.newPackage(ctx, name, parent, false)
}

// NewFolder allocates a trashed folder called name inside folder parent.
func (s *Store) NewFolder(ctx context.Context, name string, parent int) (int, error) {
	return s.newPackage(ctx, name, parent, true)
}

func (s *Store) newPackage(ctx context.Context, name string, parent int, folder bool) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		"INSERT INTO packages (parent_id, name, is_folder, trashed) VALUES (?, ?, ?, 1)", parent, name, folder)
	if err != nil {
		return 0, fmt.Errorf("store: insert package %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: package id: %w", err)
	}
	return int(id), nil
}

// Package returns the row for id, trashed or not.
func (s *Store) Package(ctx context.Context, id int) (PackageInfo, error) {
	p := PackageInfo{ID: id}
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT parent_id, name, is_folder, src_root, gen_root, trashed FROM packages WHERE id = ?", id).
		Scan(&p.Parent, &p.Name, &p.Folder, &p.SrcRoot, &p.GenRoot, &p.Trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return PackageInfo{}, fmt.Errorf("store: package %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return PackageInfo{}, fmt.Errorf("store: package %d: %w", id, err)
	}
	return p, nil
}

// LookupPackage returns the live package or folder called name.
func (s *Store) LookupPackage(ctx context.Context, name string) (int, error) {
	var id int
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT id FROM packages WHERE name = ? AND trashed = 0 ORDER BY id LIMIT 1", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("store: package %q: %w", name, err)
	}
	return id, nil
}

// SetPackageName renames id.
func (s *Store) SetPackageName(ctx context.Context, id int, name string) error {
	return s.exec(ctx, "rename package", id, "UPDATE packages SET name = ? WHERE id = ?", name, id)
}

// SetPackageParent moves id into folder parent.
func (s *Store) SetPackageParent(ctx context.Context, id, parent int) error {
	return s.exec(ctx, "move package", id, "UPDATE packages SET parent_id = ? WHERE id = ?", parent, id)
}

// SetPackageRoots sets the source and generated root directories of id.
func (s *Store) SetPackageRoots(ctx context.Context, id, srcRoot, genRoot int) error {
	return s.exec(ctx, "set package roots", id,
		"UPDATE packages SET src_root = ?, gen_root = ? WHERE id = ?", srcRoot, genRoot, id)
}

// TrashPackage marks id as trashed. Packages with live members and folders
// with live children are rejected with ErrNotEmpty.
func (s *Store) TrashPackage(ctx context.Context, id int) error {
	empty, err := s.IsPackageEmpty(ctx, id)
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("store: trash package %d: %w", id, ErrNotEmpty)
	}
	return s.setTrashed(ctx, "packages", id, true)
}

// RevivePackage clears the trashed flag on id.
func (s *Store) RevivePackage(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "packages", id, false)
}

// IsPackageEmpty reports whether id has no live members and no live child
// packages.
func (s *Store) IsPackageEmpty(ctx context.Context, id int) (bool, error) {
	members, err := s.MembersOfPackage(ctx, id)
	if err != nil {
		return false, err
	}
	if len(members) > 0 {
		return false, nil
	}
	kids, err := s.queryInts(ctx, "package children",
		"SELECT id FROM packages WHERE parent_id = ? AND id != ? AND trashed = 0", id, id)
	if err != nil {
		return false, err
	}
	return len(kids) == 0, nil
}

// PackageParents returns id -> parent for every live package and folder.
func (s *Store) PackageParents(ctx context.Context) (map[int]int, error) {
	return s.queryParents(ctx, "package parents", "SELECT id, parent_id FROM packages WHERE trashed = 0")
}

// Packages returns every live package and folder ordered by ID.
func (s *Store) Packages(ctx context.Context) ([]PackageInfo, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, parent_id, name, is_folder, src_root, gen_root, trashed
		 FROM packages WHERE trashed = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list packages: %w", err)
	}
	defer rows.Close()

	var out []PackageInfo
	for rows.Next() {
		var p PackageInfo
		if err := rows.Scan(&p.ID, &p.Parent, &p.Name, &p.Folder, &p.SrcRoot, &p.GenRoot, &p.Trashed); err != nil {
			return nil, fmt.Errorf("store: scan package: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate packages: %w", err)
	}
	return out, nil
}

// MemberPackage returns the package and scope of a member.
func (s *Store) MemberPackage(ctx context.Context, t MemberType, id int) (Home, error) {
	var h Home
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT pkg_id, scope FROM members WHERE type = ? AND id = ?", t, id).Scan(&h.Pkg, &h.Scope)
	if errors.Is(err, sql.ErrNoRows) {
		return Home{}, fmt.Errorf("store: %s %d membership: %w", t, id, ErrNotFound)
	}
	if err != nil {
		return Home{}, fmt.Errorf("store: %s %d membership: %w", t, id, err)
	}
	return h, nil
}

// SetMemberPackage moves a member into pkg with the given scope.
func (s *Store) SetMemberPackage(ctx context.Context, t MemberType, id, pkg int, scope Scope) error {
	return s.exec(ctx, "set package of "+t.String(), id,
		"UPDATE members SET pkg_id = ?, scope = ? WHERE type = ? AND id = ?", pkg, scope, t, id)
}

// MemberLocation returns a member's diagram position.
func (s *Store) MemberLocation(ctx context.Context, t MemberType, id int) (Location, error) {
	var loc Location
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT x, y FROM members WHERE type = ? AND id = ?", t, id).Scan(&loc.X, &loc.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return Location{}, fmt.Errorf("store: %s %d location: %w", t, id, ErrNotFound)
	}
	if err != nil {
		return Location{}, fmt.Errorf("store: %s %d location: %w", t, id, err)
	}
	return loc, nil
}

// SetMemberLocation places a member on the diagram.
func (s *Store) SetMemberLocation(ctx context.Context, t MemberType, id int, loc Location) error {
	return s.exec(ctx, "set location of "+t.String(), id,
		"UPDATE members SET x = ?, y = ? WHERE type = ? AND id = ?", loc.X, loc.Y, t, id)
}

// liveMembers restricts a members query to rows whose entity is not trashed.
const liveMembers = `(
    (m.type = 1 AND EXISTS (SELECT 1 FROM paths e WHERE e.id = m.id AND e.trashed = 0 AND e.id != 0)) OR
    (m.type = 2 AND EXISTS (SELECT 1 FROM file_groups e WHERE e.id = m.id AND e.trashed = 0)) OR
    (m.type = 3 AND EXISTS (SELECT 1 FROM actions e WHERE e.id = m.id AND e.trashed = 0 AND e.id != 0)) OR
    (m.type = 4 AND EXISTS (SELECT 1 FROM sub_packages e WHERE e.id = m.id AND e.trashed = 0))
)`

// MembersOfPackage returns the live members of pkg ordered by type then ID.
func (s *Store) MembersOfPackage(ctx context.Context, pkg int) ([]Member, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		"SELECT m.type, m.id FROM members m WHERE m.pkg_id = ? AND "+liveMembers+" ORDER BY m.type, m.id", pkg)
	if err != nil {
		return nil, fmt.Errorf("store: members of %d: %w", pkg, err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.Type, &m.ID); err != nil {
			return nil, fmt.Errorf("store: scan member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate members: %w", err)
	}
	return out, nil
}

// MembersOfType returns id -> home for every live member of type t.
func (s *Store) MembersOfType(ctx context.Context, t MemberType) (map[int]Home, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		"SELECT m.id, m.pkg_id, m.scope FROM members m WHERE m.type = ? AND "+liveMembers, t)
	if err != nil {
		return nil, fmt.Errorf("store: members of type %s: %w", t, err)
	}
	defer rows.Close()

	out := make(map[int]Home)
	for rows.Next() {
		var id int
		var h Home
		if err := rows.Scan(&id, &h.Pkg, &h.Scope); err != nil {
			return nil, fmt.Errorf("store: scan member: %w", err)
		}
		out[id] = h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate members: %w", err)
	}
	return out, nil
}
