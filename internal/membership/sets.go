package membership

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/papapumpkin/buildgraph/internal/intset"
	"github.com/papapumpkin/buildgraph/internal/store"
)

// Source is the part of the build store the sets read. *store.Store
// satisfies it.
type Source interface {
	PathParents(ctx context.Context) (map[int]int, error)
	ActionParents(ctx context.Context) (map[int]int, error)
	PackageParents(ctx context.Context) (map[int]int, error)
	PathName(ctx context.Context, id int) (string, error)
	LookupPath(ctx context.Context, fullPath string) (int, error)
	PathsNamed(ctx context.Context, name string) ([]int, error)
	LookupPackage(ctx context.Context, name string) (int, error)
	MembersOfType(ctx context.Context, t store.MemberType) (map[int]store.Home, error)
	ActionCommands(ctx context.Context) (map[int]string, error)
	Packages(ctx context.Context) ([]store.PackageInfo, error)
}

// FileSet is a set of path IDs over a snapshot of the path tree.
type FileSet struct {
	*intset.Set
	tree *intset.Tree
	src  Source
}

// NewFileSet returns an empty set over the store's current live paths.
func NewFileSet(ctx context.Context, src Source) (*FileSet, error) {
	parents, err := src.PathParents(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership: file tree: %w", err)
	}
	tree := intset.NewTree(store.RootPath, parents)
	return &FileSet{Set: intset.New(tree), tree: tree, src: src}, nil
}

// Clone returns a deep copy sharing the same path snapshot.
func (fs *FileSet) Clone() *FileSet {
	return &FileSet{Set: fs.Set.Clone(), tree: fs.tree, src: fs.src}
}

// PopulateWithPaths applies specs in order. Besides the common forms, an
// absolute path adds that path and everything below it, and a bare name adds
// every path with that base name.
func (fs *FileSet) PopulateWithPaths(ctx context.Context, specs []string) error {
	return populate(ctx, fs.src, fs.Set, fs, specs, fs.pathSpec)
}

func (fs *FileSet) pathSpec(ctx context.Context, spec string) (bool, error) {
	if strings.HasPrefix(spec, "/") {
		id, err := fs.src.LookupPath(ctx, path.Clean(spec))
		if err != nil {
			return true, badValue(spec, "no such path")
		}
		if err := fs.AddSubTree(id); err != nil {
			return true, badValue(spec, "%v", err)
		}
		return true, nil
	}
	if spec == "" || strings.Contains(spec, "/") {
		return false, nil
	}
	ids, err := fs.src.PathsNamed(ctx, spec)
	if err != nil {
		return true, fmt.Errorf("membership: %q: %w", spec, err)
	}
	for _, id := range ids {
		if fs.Hierarchy().Valid(id) {
			_ = fs.Add(id)
		}
	}
	return true, nil
}

func (fs *FileSet) inPackage(ctx context.Context, pkg int, scope *store.Scope, inside bool) ([]int, error) {
	homes, err := fs.src.MembersOfType(ctx, store.MemberFile)
	if err != nil {
		return nil, err
	}
	return membersIn(homes, pkg, scope, inside), nil
}

// matching compares patterns starting with / against full path names and
// the rest against base names.
func (fs *FileSet) matching(ctx context.Context, res []*regexp.Regexp, raw []string) ([]int, error) {
	var full, base []*regexp.Regexp
	for i, r := range raw {
		if strings.HasPrefix(r, "/") {
			full = append(full, res[i])
		} else {
			base = append(base, res[i])
		}
	}

	var ids []int
	for _, id := range fs.tree.IDs() {
		if id == store.RootPath {
			continue
		}
		name, err := fs.src.PathName(ctx, id)
		if err != nil {
			return nil, err
		}
		if matchAny(full, name) || matchAny(base, path.Base(name)) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ActionSet is a set of action IDs over a snapshot of the action tree.
type ActionSet struct {
	*intset.Set
	src Source
}

// NewActionSet returns an empty set over the store's current live actions.
func NewActionSet(ctx context.Context, src Source) (*ActionSet, error) {
	parents, err := src.ActionParents(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership: action tree: %w", err)
	}
	return &ActionSet{Set: intset.New(intset.NewTree(store.RootAction, parents)), src: src}, nil
}

// Clone returns a deep copy sharing the same action snapshot.
func (as *ActionSet) Clone() *ActionSet {
	return &ActionSet{Set: as.Set.Clone(), src: as.src}
}

// PopulateWithActions applies specs in order. %match compares against
// command strings.
func (as *ActionSet) PopulateWithActions(ctx context.Context, specs []string) error {
	return populate(ctx, as.src, as.Set, as, specs, nil)
}

func (as *ActionSet) inPackage(ctx context.Context, pkg int, scope *store.Scope, inside bool) ([]int, error) {
	homes, err := as.src.MembersOfType(ctx, store.MemberAction)
	if err != nil {
		return nil, err
	}
	return membersIn(homes, pkg, scope, inside), nil
}

func (as *ActionSet) matching(ctx context.Context, res []*regexp.Regexp, _ []string) ([]int, error) {
	cmds, err := as.src.ActionCommands(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int
	for id, cmd := range cmds {
		if matchAny(res, cmd) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
