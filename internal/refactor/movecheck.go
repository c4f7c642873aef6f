package refactor

import (
	"context"
	"errors"
	"slices"

	"github.com/papapumpkin/buildgraph/internal/store"
)

// selection is a validated MoveMembersToPackage request.
type selection struct {
	dest    store.PackageInfo
	files   []int
	actions []int
	groups  []int
	subs    []int
	reads   map[int][]int
	writes  map[int][]int
	loose   []int
}

func (r *Refactorer) validateMove(ctx context.Context, destPkg int, members []store.Member) (*selection, error) {
	if members == nil {
		return nil, &Error{Cause: CauseInvalidMember}
	}
	var badTypes []store.MemberType
	for _, m := range members {
		if !m.Type.Valid() && !slices.Contains(badTypes, m.Type) {
			badTypes = append(badTypes, m.Type)
		}
	}
	if len(badTypes) > 0 {
		return nil, &Error{Cause: CauseInvalidMember, MemberTypes: badTypes}
	}

	dest, err := r.store.Package(ctx, destPkg)
	if errors.Is(err, store.ErrNotFound) || (err == nil && (dest.Trashed || dest.Folder)) {
		return nil, packageErr(CauseInvalidPackage, destPkg)
	}
	if err != nil {
		return nil, err
	}

	sel := &selection{dest: dest, reads: make(map[int][]int), writes: make(map[int][]int)}
	seen := make(map[store.Member]bool)
	for _, m := range members {
		if seen[m] {
			continue
		}
		seen[m] = true
		switch m.Type {
		case store.MemberFile:
			sel.files = append(sel.files, m.ID)
		case store.MemberAction:
			sel.actions = append(sel.actions, m.ID)
		case store.MemberFileGroup:
			sel.groups = append(sel.groups, m.ID)
		case store.MemberSubPackage:
			sel.subs = append(sel.subs, m.ID)
		}
	}
	if destPkg == store.ImportPackage && (len(sel.actions) > 0 || len(sel.groups) > 0 || len(sel.subs) > 0) {
		return nil, packageErr(CauseInvalidPackage, destPkg)
	}
	if err := r.validateMemberIDs(ctx, sel); err != nil {
		return nil, err
	}
	if err := r.validateRanges(ctx, sel); err != nil {
		return nil, err
	}
	return sel, nil
}

// validateMemberIDs reports every dead ID of the first kind that has any.
func (r *Refactorer) validateMemberIDs(ctx context.Context, sel *selection) error {
	var bad []int
	for _, id := range sel.files {
		if _, ok, err := r.livePath(ctx, id); err != nil {
			return err
		} else if !ok {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return pathErr(CauseInvalidPath, bad...)
	}
	for _, id := range sel.actions {
		a, ok, err := r.knownAction(ctx, id)
		if err != nil {
			return err
		}
		if !ok || a.Trashed {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return actionErr(CauseInvalidAction, bad...)
	}
	for _, id := range sel.groups {
		g, err := r.store.FileGroup(ctx, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err != nil || g.Trashed {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return &Error{Cause: CauseInvalidFileGroup, GroupIDs: bad}
	}
	for _, id := range sel.subs {
		sp, err := r.store.SubPackage(ctx, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err != nil || sp.Trashed {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return &Error{Cause: CauseInvalidMember, PackageIDs: bad}
	}
	return nil
}

// validateRanges checks loose files against both package roots, then each
// action's atomicity and outputs against the generated root.
func (r *Refactorer) validateRanges(ctx context.Context, sel *selection) error {
	connected := make(map[int]bool)
	for _, a := range sel.actions {
		reads, err := r.store.FilesAccessed(ctx, a, store.ReadOps...)
		if err != nil {
			return err
		}
		writes, err := r.store.FilesAccessed(ctx, a, store.WriteOps...)
		if err != nil {
			return err
		}
		sel.reads[a], sel.writes[a] = reads, writes
		for _, p := range append(reads, writes...) {
			connected[p] = true
		}
	}

	var out []int
	for _, f := range sel.files {
		if connected[f] {
			continue
		}
		sel.loose = append(sel.loose, f)
		ok, err := r.inRange(ctx, f, sel.dest.SrcRoot, sel.dest.GenRoot)
		if err != nil {
			return err
		}
		if !ok {
			out = append(out, f)
		}
	}
	if len(out) > 0 {
		return &Error{Cause: CausePathOutOfRange, PathIDs: out, PackageIDs: []int{sel.dest.ID}}
	}

	var compound []int
	for _, a := range sel.actions {
		kids, err := r.store.ActionChildren(ctx, a)
		if err != nil {
			return err
		}
		if len(kids) > 0 {
			compound = append(compound, a)
		}
	}
	if len(compound) > 0 {
		return actionErr(CauseActionNotAtomic, compound...)
	}

	var offenders []int
	for _, a := range sel.actions {
		before := len(out)
		for _, p := range sel.writes[a] {
			ok, err := r.inRange(ctx, p, sel.dest.GenRoot)
			if err != nil {
				return err
			}
			if !ok && !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
		if len(out) > before {
			offenders = append(offenders, a)
		}
	}
	if len(out) > 0 {
		return &Error{Cause: CausePathOutOfRange, PathIDs: out, ActionIDs: offenders, PackageIDs: []int{sel.dest.ID}}
	}
	return nil
}

