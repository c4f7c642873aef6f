package membership

import (
	"context"
	"fmt"
	"regexp"

	"github.com/papapumpkin/buildgraph/internal/intset"
	"github.com/papapumpkin/buildgraph/internal/store"
)

// ScopeMask is a set of member scopes.
type ScopeMask uint8

// Scope bits.
const (
	MaskPrivate ScopeMask = 1 << iota
	MaskPublic
	MaskAll = MaskPrivate | MaskPublic
)

func maskOf(s *store.Scope) ScopeMask {
	if s == nil {
		return MaskAll
	}
	switch *s {
	case store.ScopePrivate:
		return MaskPrivate
	case store.ScopePublic:
		return MaskPublic
	default:
		return 0
	}
}

// PackageSet is a set of package and folder IDs over the package tree, with
// the scopes selected for each package.
type PackageSet struct {
	*intset.Set
	src    Source
	scopes map[int]ScopeMask
}

// NewPackageSet returns an empty set over the store's live packages.
func NewPackageSet(ctx context.Context, src Source) (*PackageSet, error) {
	parents, err := src.PackageParents(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership: package tree: %w", err)
	}
	return &PackageSet{
		Set:    intset.New(intset.NewTree(store.RootFolder, parents)),
		src:    src,
		scopes: make(map[int]ScopeMask),
	}, nil
}

// Clone returns a deep copy sharing the same package snapshot.
func (ps *PackageSet) Clone() *PackageSet {
	c := &PackageSet{Set: ps.Set.Clone(), src: ps.src, scopes: make(map[int]ScopeMask, len(ps.scopes))}
	for id, m := range ps.scopes {
		c.scopes[id] = m
	}
	return c
}

// Scopes returns the scopes selected for id. Members added without a scope
// select every scope.
func (ps *PackageSet) Scopes(id int) ScopeMask {
	if !ps.IsMember(id) {
		return 0
	}
	if m, ok := ps.scopes[id]; ok {
		return m
	}
	return MaskAll
}

// SetScopes replaces the scopes selected for id.
func (ps *PackageSet) SetScopes(id int, m ScopeMask) {
	ps.scopes[id] = m
}

// PopulateWithPackages applies specs in order. %pkg/NAME/SCOPE adds the
// package itself with that scope; %match compares against package names.
func (ps *PackageSet) PopulateWithPackages(ctx context.Context, specs []string) error {
	return populate(ctx, ps.src, ps.Set, ps, specs, nil)
}

func (ps *PackageSet) inPackage(ctx context.Context, pkg int, scope *store.Scope, inside bool) ([]int, error) {
	if inside {
		ps.scopes[pkg] |= maskOf(scope)
		return []int{pkg}, nil
	}
	all, err := ps.src.Packages(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, p := range all {
		if p.ID != pkg {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (ps *PackageSet) matching(ctx context.Context, res []*regexp.Regexp, _ []string) ([]int, error) {
	all, err := ps.src.Packages(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, p := range all {
		if matchAny(res, p.Name) {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}
