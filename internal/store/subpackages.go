package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NewSubPackage allocates a trashed instance of package pkgType, placed as a
// member of pkg.
func (s *Store) NewSubPackage(ctx context.Context, pkgType, pkg int) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx, "INSERT INTO sub_packages (pkg_type) VALUES (?)", pkgType)
	if err != nil {
		return 0, fmt.Errorf("store: insert sub-package: %w", err)
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: sub-package id: %w", err)
	}
	id := int(id64)
	if _, err := s.q(ctx).ExecContext(ctx,
		"INSERT INTO members (type, id, pkg_id) VALUES (?, ?, ?)", MemberSubPackage, id, pkg); err != nil {
		return 0, fmt.Errorf("store: sub-package %d membership: %w", id, err)
	}
	return id, nil
}

// SubPackage returns the row for id, trashed or not.
func (s *Store) SubPackage(ctx context.Context, id int) (SubPackageInfo, error) {
	sp := SubPackageInfo{ID: id}
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT pkg_type, trashed FROM sub_packages WHERE id = ?", id).Scan(&sp.Type, &sp.Trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return SubPackageInfo{}, fmt.Errorf("store: sub-package %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return SubPackageInfo{}, fmt.Errorf("store: sub-package %d: %w", id, err)
	}
	return sp, nil
}

// TrashSubPackage marks id as trashed.
func (s *Store) TrashSubPackage(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "sub_packages", id, true)
}

// ReviveSubPackage clears the trashed flag on id.
func (s *Store) ReviveSubPackage(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "sub_packages", id, false)
}
