package refactor

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/papapumpkin/buildgraph/internal/store"
	"github.com/papapumpkin/buildgraph/internal/undo"
)

// DeletePath trashes one path. A path still read by a live action is
// refused; a path written by a live action is refused unless
// alsoDeleteActions is set, in which case the producing actions are deleted
// with it.
func (r *Refactorer) DeletePath(ctx context.Context, pathID int, alsoDeleteActions bool) (*undo.Multi, error) {
	r.logger.Debug("delete path", zap.Int("path", pathID), zap.Bool("actions", alsoDeleteActions))
	p, ok, err := r.livePath(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, r.refused("delete path", pathErr(CauseInvalidPath, pathID))
	}
	if p.Type == store.PathDirectory {
		kids, err := r.store.PathChildren(ctx, pathID)
		if err != nil {
			return nil, err
		}
		if len(kids) > 0 {
			return nil, r.refused("delete path", pathErr(CauseDirectoryNotEmpty, pathID))
		}
	}
	m, err := r.deletePaths(ctx, []int{pathID}, alsoDeleteActions)
	if err != nil {
		return nil, r.refused("delete path", err)
	}
	return r.apply(ctx, fmt.Sprintf("delete path %d", pathID), m)
}

// DeletePathTree trashes a path and everything below it. Every path in the
// tree is validated before anything changes; one conflict refuses the whole
// tree.
func (r *Refactorer) DeletePathTree(ctx context.Context, pathID int, alsoDeleteActions bool) (*undo.Multi, error) {
	r.logger.Debug("delete path tree", zap.Int("path", pathID), zap.Bool("actions", alsoDeleteActions))
	if _, ok, err := r.livePath(ctx, pathID); err != nil {
		return nil, err
	} else if !ok {
		return nil, r.refused("delete path tree", pathErr(CauseInvalidPath, pathID))
	}
	var order []int
	if err := r.postOrder(ctx, pathID, &order); err != nil {
		return nil, err
	}
	m, err := r.deletePaths(ctx, order, alsoDeleteActions)
	if err != nil {
		return nil, r.refused("delete path tree", err)
	}
	return r.apply(ctx, fmt.Sprintf("delete path tree %d", pathID), m)
}

// postOrder appends the live subtree of id, children before parents.
func (r *Refactorer) postOrder(ctx context.Context, id int, out *[]int) error {
	kids, err := r.store.PathChildren(ctx, id)
	if err != nil {
		return err
	}
	for _, k := range kids {
		if err := r.postOrder(ctx, k, out); err != nil {
			return err
		}
	}
	*out = append(*out, id)
	return nil
}

// deletePaths validates and builds the deletion of paths, which must be in
// post-order.
func (r *Refactorer) deletePaths(ctx context.Context, paths []int, alsoDeleteActions bool) (*undo.Multi, error) {
	doomed := make(map[int]bool, len(paths))
	for _, p := range paths {
		doomed[p] = true
	}

	// Producers are the actions that would go with the paths.
	var producers []int
	producing := make(map[int]bool)
	for _, p := range paths {
		ids, err := r.store.ActionsThatAccess(ctx, p, store.WriteOps...)
		if err != nil {
			return nil, err
		}
		for _, a := range ids {
			if !producing[a] {
				producing[a] = true
				producers = append(producers, a)
			}
		}
	}
	sort.Ints(producers)
	spared := producing
	if !alsoDeleteActions {
		spared = nil
	}

	if err := r.checkReaders(ctx, paths, spared); err != nil {
		return nil, err
	}
	if len(producers) > 0 && !alsoDeleteActions {
		return nil, &Error{Cause: CausePathIsGenerated, PathIDs: r.generatedPaths(ctx, paths), ActionIDs: producers}
	}
	if err := r.checkProducers(ctx, producers, doomed, producing); err != nil {
		return nil, err
	}
	if err := r.checkDirectories(ctx, paths, producing); err != nil {
		return nil, err
	}

	m := undo.NewMulti()
	for _, a := range producers {
		op := undo.NewActionOp(r.store, a)
		if err := r.removeAllAccesses(ctx, op); err != nil {
			return nil, err
		}
		op.RecordTrash()
		m.Add(op)
	}
	if err := r.dropDeleteAccesses(ctx, paths, producing, m); err != nil {
		return nil, err
	}
	for _, p := range paths {
		op := undo.NewPathOp(r.store, p)
		op.RecordRemove()
		m.Add(op)
	}
	return m, nil
}

// checkReaders refuses paths still read by a live action that is not being
// deleted alongside them.
func (r *Refactorer) checkReaders(ctx context.Context, paths []int, spared map[int]bool) error {
	var inUse, readers []int
	seen := make(map[int]bool)
	for _, p := range paths {
		ids, err := r.store.ActionsThatAccess(ctx, p, store.ReadOps...)
		if err != nil {
			return err
		}
		ids = without(ids, spared)
		if len(ids) == 0 {
			continue
		}
		inUse = append(inUse, p)
		for _, a := range ids {
			if !seen[a] {
				seen[a] = true
				readers = append(readers, a)
			}
		}
	}
	if len(inUse) == 0 {
		return nil
	}
	sort.Ints(readers)
	return &Error{Cause: CausePathInUse, PathIDs: inUse, ActionIDs: readers}
}

// checkProducers refuses producers that have children or whose other
// outputs are still read by an action that survives.
func (r *Refactorer) checkProducers(ctx context.Context, producers []int, doomed, producing map[int]bool) error {
	for _, a := range producers {
		kids, err := r.store.ActionChildren(ctx, a)
		if err != nil {
			return err
		}
		if len(kids) > 0 {
			return actionErr(CauseActionNotAtomic, a)
		}
	}
	for _, a := range producers {
		outs, err := r.store.FilesAccessed(ctx, a, store.WriteOps...)
		if err != nil {
			return err
		}
		var needed []int
		for _, out := range without(outs, doomed) {
			readers, err := r.store.ActionsThatAccess(ctx, out, store.ReadOps...)
			if err != nil {
				return err
			}
			if len(without(readers, producing)) > 0 {
				needed = append(needed, out)
			}
		}
		if len(needed) > 0 {
			return &Error{Cause: CauseActionInUse, PathIDs: needed, ActionIDs: []int{a}}
		}
	}
	return nil
}

// checkDirectories refuses directories that are the working directory of a
// surviving action.
func (r *Refactorer) checkDirectories(ctx context.Context, paths []int, producing map[int]bool) error {
	for _, p := range paths {
		info, err := r.store.Path(ctx, p)
		if err != nil {
			return err
		}
		if info.Type != store.PathDirectory {
			continue
		}
		ids, err := r.store.ActionsInDirectory(ctx, p)
		if err != nil {
			return err
		}
		if ids = without(ids, producing); len(ids) > 0 {
			return &Error{Cause: CauseDirectoryContainsActions, PathIDs: []int{p}, ActionIDs: ids}
		}
	}
	return nil
}

// dropDeleteAccesses removes DELETE records that surviving actions hold on
// the doomed paths.
func (r *Refactorer) dropDeleteAccesses(ctx context.Context, paths []int, producing map[int]bool, m *undo.Multi) error {
	ops := make(map[int]*undo.ActionOp)
	var order []int
	for _, p := range paths {
		deleters, err := r.store.ActionsThatAccess(ctx, p, store.OpDelete)
		if err != nil {
			return err
		}
		for _, a := range without(deleters, producing) {
			fas, err := r.store.FileAccesses(ctx, a)
			if err != nil {
				return err
			}
			op, ok := ops[a]
			if !ok {
				op = undo.NewActionOp(r.store, a)
				ops[a] = op
				order = append(order, a)
			}
			for _, fa := range fas {
				if fa.Path == p && fa.Op == store.OpDelete {
					op.RecordRemoveAccess(fa)
				}
			}
		}
	}
	for _, a := range order {
		m.Add(ops[a])
	}
	return nil
}

// generatedPaths returns the paths in paths that some live action writes.
// Lookup errors leave a path out of the report rather than masking the
// refusal.
func (r *Refactorer) generatedPaths(ctx context.Context, paths []int) []int {
	var out []int
	for _, p := range paths {
		ids, err := r.store.ActionsThatAccess(ctx, p, store.WriteOps...)
		if err == nil && len(ids) > 0 {
			out = append(out, p)
		}
	}
	return out
}
