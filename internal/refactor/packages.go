package refactor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/papapumpkin/buildgraph/internal/store"
	"github.com/papapumpkin/buildgraph/internal/undo"
)

// NewPackage creates a package called name inside folder.
func (r *Refactorer) NewPackage(ctx context.Context, name string, folder int) (int, error) {
	return r.create(ctx, name, folder, false)
}

// NewFolder creates a folder called name inside folder.
func (r *Refactorer) NewFolder(ctx context.Context, name string, folder int) (int, error) {
	return r.create(ctx, name, folder, true)
}

func (r *Refactorer) create(ctx context.Context, name string, folder int, isFolder bool) (int, error) {
	if err := r.checkName(ctx, name, -1); err != nil {
		return 0, r.refused("create package", err)
	}
	if err := r.checkFolder(ctx, folder); err != nil {
		return 0, r.refused("create package", err)
	}

	newFn := r.store.NewPackage
	if isFolder {
		newFn = r.store.NewFolder
	}
	id, err := newFn(ctx, name, folder)
	if err != nil {
		return 0, err
	}
	op := undo.NewPackageOp(r.store, id)
	op.RecordCreate()
	if _, err := r.apply(ctx, fmt.Sprintf("create %q", name), undo.NewMulti(op)); err != nil {
		return 0, err
	}
	r.logger.Debug("package created", zap.Int("package", id), zap.Bool("folder", isFolder))
	return id, nil
}

// RenamePackage renames a package or folder.
func (r *Refactorer) RenamePackage(ctx context.Context, id int, name string) (*undo.Multi, error) {
	p, err := r.editablePackage(ctx, id)
	if err != nil {
		return nil, r.refused("rename package", err)
	}
	if err := r.checkName(ctx, name, id); err != nil {
		return nil, r.refused("rename package", err)
	}
	op := undo.NewPackageOp(r.store, id)
	op.RecordNameChange(p.Name, name)
	return r.apply(ctx, fmt.Sprintf("rename package %d", id), undo.NewMulti(op))
}

// MovePackage moves a package or folder into folder. A folder cannot be
// moved inside itself.
func (r *Refactorer) MovePackage(ctx context.Context, id, folder int) (*undo.Multi, error) {
	p, err := r.editablePackage(ctx, id)
	if err != nil {
		return nil, r.refused("move package", err)
	}
	if err := r.checkFolder(ctx, folder); err != nil {
		return nil, r.refused("move package", err)
	}
	for cur := folder; ; {
		if cur == id {
			return nil, r.refused("move package", packageErr(CauseInvalidPackage, id, folder))
		}
		if cur == store.RootFolder {
			break
		}
		f, err := r.store.Package(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur = f.Parent
	}
	op := undo.NewPackageOp(r.store, id)
	op.RecordParentChange(p.Parent, folder)
	return r.apply(ctx, fmt.Sprintf("move package %d", id), undo.NewMulti(op))
}

// SetPackageRoots changes the source and generated root directories of a
// package. Files already in the package must stay under one of them.
func (r *Refactorer) SetPackageRoots(ctx context.Context, id, srcRoot, genRoot int) (*undo.Multi, error) {
	p, err := r.editablePackage(ctx, id)
	if err != nil {
		return nil, r.refused("set package roots", err)
	}
	if p.Folder {
		return nil, r.refused("set package roots", packageErr(CauseInvalidPackage, id))
	}

	var bad []int
	for _, root := range []int{srcRoot, genRoot} {
		if root == store.RootPath {
			continue
		}
		info, ok, err := r.livePath(ctx, root)
		if err != nil {
			return nil, err
		}
		if !ok || info.Type != store.PathDirectory {
			bad = append(bad, root)
		}
	}
	if len(bad) > 0 {
		return nil, r.refused("set package roots", pathErr(CauseInvalidPath, bad...))
	}

	members, err := r.store.MembersOfPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, m := range members {
		if m.Type != store.MemberFile {
			continue
		}
		ok, err := r.inRange(ctx, m.ID, srcRoot, genRoot)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, m.ID)
		}
	}
	if len(out) > 0 {
		return nil, r.refused("set package roots",
			&Error{Cause: CausePathOutOfRange, PathIDs: out, PackageIDs: []int{id}})
	}

	op := undo.NewPackageOp(r.store, id)
	op.RecordRootsChange(undo.Roots{Src: p.SrcRoot, Gen: p.GenRoot}, undo.Roots{Src: srcRoot, Gen: genRoot})
	return r.apply(ctx, fmt.Sprintf("set roots of package %d", id), undo.NewMulti(op))
}

// RemovePackage trashes an empty package or folder.
func (r *Refactorer) RemovePackage(ctx context.Context, id int) (*undo.Multi, error) {
	if _, err := r.editablePackage(ctx, id); err != nil {
		return nil, r.refused("remove package", err)
	}
	empty, err := r.store.IsPackageEmpty(ctx, id)
	if err != nil {
		return nil, err
	}
	if !empty {
		return nil, r.refused("remove package", packageErr(CausePackageNotEmpty, id))
	}
	op := undo.NewPackageOp(r.store, id)
	op.RecordRemove()
	return r.apply(ctx, fmt.Sprintf("remove package %d", id), undo.NewMulti(op))
}

// editablePackage returns id's row when it is a live package or folder
// other than the root folder and the import package.
func (r *Refactorer) editablePackage(ctx context.Context, id int) (store.PackageInfo, error) {
	if id == store.RootFolder || id == store.ImportPackage {
		return store.PackageInfo{}, packageErr(CauseInvalidPackage, id)
	}
	p, err := r.store.Package(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && p.Trashed) {
		return store.PackageInfo{}, packageErr(CauseInvalidPackage, id)
	}
	return p, err
}

// checkFolder requires folder to be a live folder.
func (r *Refactorer) checkFolder(ctx context.Context, folder int) error {
	f, err := r.store.Package(ctx, folder)
	if errors.Is(err, store.ErrNotFound) || (err == nil && (f.Trashed || !f.Folder)) {
		return packageErr(CauseInvalidPackage, folder)
	}
	return err
}

// checkName requires name to be non-blank and unused by any live package
// other than self.
func (r *Refactorer) checkName(ctx context.Context, name string, self int) error {
	if strings.TrimSpace(name) == "" {
		return &Error{Cause: CauseInvalidPackage}
	}
	other, err := r.store.LookupPackage(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other != self {
		return packageErr(CausePackageNameInUse, other)
	}
	return nil
}
