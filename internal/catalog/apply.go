package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papapumpkin/buildgraph/internal/refactor"
	"github.com/papapumpkin/buildgraph/internal/store"
)

// Paths resolves root directory names. *store.Store satisfies it.
type Paths interface {
	LookupPath(ctx context.Context, fullPath string) (int, error)
	PathName(ctx context.Context, id int) (string, error)
}

// Result lists the names Apply created and the ones it changed.
type Result struct {
	Created []string
	Updated []string
}

// Changed reports whether Apply touched anything.
func (r Result) Changed() bool { return len(r.Created)+len(r.Updated) > 0 }

// Apply creates the folders and packages c declares that the store lacks,
// and moves or re-roots the ones that differ. Each change is its own
// undoable step. Packages the catalog does not mention are left alone.
func Apply(ctx context.Context, r *refactor.Refactorer, paths Paths, c *Catalog, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &applier{r: r, s: r.Store(), paths: paths, logger: logger}
	for _, f := range c.Folders {
		if err := a.folder(ctx, f); err != nil {
			return a.res, err
		}
	}
	for _, p := range c.Packages {
		if err := a.pkg(ctx, p); err != nil {
			return a.res, err
		}
	}
	logger.Info("catalog applied", zap.Int("created", len(a.res.Created)), zap.Int("updated", len(a.res.Updated)))
	return a.res, nil
}

type applier struct {
	r      *refactor.Refactorer
	s      refactor.Store
	paths  Paths
	logger *zap.Logger
	res    Result
}

// existing returns the live package called name, if any.
func (a *applier) existing(ctx context.Context, name string) (store.PackageInfo, bool, error) {
	id, err := a.s.LookupPackage(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return store.PackageInfo{}, false, nil
	}
	if err != nil {
		return store.PackageInfo{}, false, err
	}
	p, err := a.s.Package(ctx, id)
	return p, err == nil, err
}

func (a *applier) folderID(ctx context.Context, name string) (int, error) {
	if name == "" {
		return store.RootFolder, nil
	}
	p, ok, err := a.existing(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok || !p.Folder {
		return 0, fmt.Errorf("catalog: %q is not a folder: %w", name, ErrInvalid)
	}
	return p.ID, nil
}

func (a *applier) rootID(ctx context.Context, name string) (int, error) {
	if name == "" {
		return store.RootPath, nil
	}
	id, err := a.paths.LookupPath(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("catalog: root %s: %w", name, err)
	}
	return id, nil
}

func (a *applier) folder(ctx context.Context, f Folder) error {
	parent, err := a.folderID(ctx, f.Parent)
	if err != nil {
		return err
	}
	p, ok, err := a.existing(ctx, f.Name)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := a.r.NewFolder(ctx, f.Name, parent); err != nil {
			return fmt.Errorf("catalog: folder %q: %w", f.Name, err)
		}
		a.res.Created = append(a.res.Created, f.Name)
		return nil
	}
	if !p.Folder {
		return fmt.Errorf("catalog: %q exists as a package: %w", f.Name, ErrInvalid)
	}
	if p.Parent != parent {
		if _, err := a.r.MovePackage(ctx, p.ID, parent); err != nil {
			return fmt.Errorf("catalog: folder %q: %w", f.Name, err)
		}
		a.res.Updated = append(a.res.Updated, f.Name)
	}
	return nil
}

func (a *applier) pkg(ctx context.Context, decl Package) error {
	parent, err := a.folderID(ctx, decl.Folder)
	if err != nil {
		return err
	}
	src, err := a.rootID(ctx, decl.SourceRoot)
	if err != nil {
		return err
	}
	gen, err := a.rootID(ctx, decl.GeneratedRoot)
	if err != nil {
		return err
	}

	p, ok, err := a.existing(ctx, decl.Name)
	if err != nil {
		return err
	}
	changed := false
	if !ok {
		id, err := a.r.NewPackage(ctx, decl.Name, parent)
		if err != nil {
			return fmt.Errorf("catalog: package %q: %w", decl.Name, err)
		}
		p = store.PackageInfo{ID: id, Parent: parent}
		a.res.Created = append(a.res.Created, decl.Name)
	} else if p.Folder {
		return fmt.Errorf("catalog: %q exists as a folder: %w", decl.Name, ErrInvalid)
	} else if p.Parent != parent {
		if _, err := a.r.MovePackage(ctx, p.ID, parent); err != nil {
			return fmt.Errorf("catalog: package %q: %w", decl.Name, err)
		}
		changed = true
	}

	if p.SrcRoot != src || p.GenRoot != gen {
		if _, err := a.r.SetPackageRoots(ctx, p.ID, src, gen); err != nil {
			return fmt.Errorf("catalog: package %q: %w", decl.Name, err)
		}
		changed = changed || ok
	}
	if changed {
		a.res.Updated = append(a.res.Updated, decl.Name)
	}
	a.logger.Debug("catalog package", zap.String("name", decl.Name), zap.Int("id", p.ID))
	return nil
}

// Lister enumerates packages for Export. *store.Store satisfies it.
type Lister interface {
	Packages(ctx context.Context) ([]store.PackageInfo, error)
	PathName(ctx context.Context, id int) (string, error)
}

// Export builds a catalog describing every live folder and package other
// than the root folder and the import package.
func Export(ctx context.Context, l Lister) (*Catalog, error) {
	all, err := l.Packages(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(all))
	for _, p := range all {
		names[p.ID] = p.Name
	}
	parentName := func(id int) string {
		if id == store.RootFolder {
			return ""
		}
		return names[id]
	}
	rootName := func(id int) (string, error) {
		if id == store.RootPath {
			return "", nil
		}
		return l.PathName(ctx, id)
	}

	c := &Catalog{}
	for _, p := range all {
		if p.ID == store.RootFolder || p.ID == store.ImportPackage {
			continue
		}
		if p.Folder {
			c.Folders = append(c.Folders, Folder{Name: p.Name, Parent: parentName(p.Parent)})
			continue
		}
		src, err := rootName(p.SrcRoot)
		if err != nil {
			return nil, err
		}
		gen, err := rootName(p.GenRoot)
		if err != nil {
			return nil, err
		}
		c.Packages = append(c.Packages, Package{
			Name:          p.Name,
			Folder:        parentName(p.Parent),
			SourceRoot:    src,
			GeneratedRoot: gen,
		})
	}
	return c, nil
}
