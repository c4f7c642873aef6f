package refactor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/papapumpkin/buildgraph/internal/store"
	"github.com/papapumpkin/buildgraph/internal/undo"
)

// flatAccess is one access in a flattened access list.
type flatAccess struct {
	path int
	op   store.OpType
}

// accessState tracks one path while a group of accesses is flattened.
type accessState struct {
	read      bool // consumed before anything in the group produced it
	produced  bool
	written   bool // produced and not deleted again
	consumed  bool // read after the group produced it
	extDelete bool // deleted without being produced first
}

// flatten collapses the accesses of a group of actions into the accesses a
// single action doing the same work would have. accesses must be sorted by
// sequence number; group names every action in the group.
//
// A read is an input unless the group wrote the path earlier, so a path one
// member reads before another member writes it flattens to MODIFIED. A write
// is an output unless the group also consumed it and no action outside the
// group reads it. Deleting a path the group produced discards it; deleting any
// other path is kept. Unspecified accesses count as reads.
func (r *Refactorer) flatten(ctx context.Context, accesses []store.FileAccess, group map[int]bool) ([]flatAccess, error) {
	states := make(map[int]*accessState)
	var order []int
	for _, fa := range accesses {
		st, ok := states[fa.Path]
		if !ok {
			st = &accessState{}
			states[fa.Path] = st
			order = append(order, fa.Path)
		}
		switch fa.Op {
		case store.OpWrite:
			st.produced, st.written = true, true
		case store.OpModified:
			if st.produced {
				st.consumed = true
			} else {
				st.read = true
			}
			st.produced, st.written = true, true
		case store.OpDelete:
			if st.produced {
				st.written = false
			} else {
				st.extDelete = true
			}
		default:
			if st.produced {
				st.consumed = true
			} else {
				st.read = true
			}
		}
	}

	var out []flatAccess
	for _, p := range order {
		st := states[p]
		written := st.written
		if written && st.consumed {
			readers, err := r.store.ActionsThatAccess(ctx, p, store.ReadOps...)
			if err != nil {
				return nil, err
			}
			written = len(without(readers, group)) > 0
		}
		switch {
		case st.read && written:
			out = append(out, flatAccess{p, store.OpModified})
		case st.read:
			out = append(out, flatAccess{p, store.OpRead})
		case written:
			out = append(out, flatAccess{p, store.OpWrite})
		}
		if st.extDelete {
			out = append(out, flatAccess{p, store.OpDelete})
		}
	}
	return out, nil
}

// gatherAccesses returns every access of actions, sorted by sequence.
func (r *Refactorer) gatherAccesses(ctx context.Context, actions []int) ([]store.FileAccess, error) {
	var all []store.FileAccess
	for _, a := range actions {
		fas, err := r.store.FileAccesses(ctx, a)
		if err != nil {
			return nil, err
		}
		all = append(all, fas...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	return all, nil
}

// descendants appends the live descendants of id, children before parents.
func (r *Refactorer) descendants(ctx context.Context, id int, out *[]int) error {
	kids, err := r.store.ActionChildren(ctx, id)
	if err != nil {
		return err
	}
	for _, k := range kids {
		if err := r.descendants(ctx, k, out); err != nil {
			return err
		}
		*out = append(*out, k)
	}
	return nil
}

// replaceAccesses records on op the swap of the action's current accesses
// for flat.
func (r *Refactorer) replaceAccesses(ctx context.Context, op *undo.ActionOp, flat []flatAccess) error {
	if err := r.removeAllAccesses(ctx, op); err != nil {
		return err
	}
	for _, fa := range flat {
		op.RecordAddAccess(fa.path, fa.op, 0)
	}
	return nil
}

// MakeActionAtomic folds an action's descendants into it: the descendants
// are trashed and the action takes over their net file accesses. An action
// that is already atomic is left alone.
func (r *Refactorer) MakeActionAtomic(ctx context.Context, actionID int) (*undo.Multi, error) {
	r.logger.Debug("make atomic", zap.Int("action", actionID))
	a, ok, err := r.knownAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, r.refused("make atomic", actionErr(CauseInvalidAction, actionID))
	}
	trashed, err := r.trashedInChain(ctx, a)
	if err != nil {
		return nil, err
	}
	if trashed {
		return nil, r.refused("make atomic", actionErr(CauseActionIsTrashed, actionID))
	}

	var desc []int
	if err := r.descendants(ctx, actionID, &desc); err != nil {
		return nil, err
	}
	if len(desc) == 0 {
		return undo.NewMulti(), nil
	}

	group := map[int]bool{actionID: true}
	for _, d := range desc {
		group[d] = true
	}
	all, err := r.gatherAccesses(ctx, append([]int{actionID}, desc...))
	if err != nil {
		return nil, err
	}
	flat, err := r.flatten(ctx, all, group)
	if err != nil {
		return nil, err
	}

	m := undo.NewMulti()
	for _, d := range desc {
		op := undo.NewActionOp(r.store, d)
		op.RecordTrash()
		m.Add(op)
	}
	op := undo.NewActionOp(r.store, actionID)
	if err := r.replaceAccesses(ctx, op, flat); err != nil {
		return nil, err
	}
	m.Add(op)
	return r.apply(ctx, fmt.Sprintf("make action %d atomic", actionID), m)
}

// MergeActions merges atomic actions into the first of them. The first
// action takes the joined commands and the net accesses of the group; the
// rest are trashed.
func (r *Refactorer) MergeActions(ctx context.Context, actionIDs []int) (*undo.Multi, error) {
	r.logger.Debug("merge actions", zap.Ints("actions", actionIDs))
	if len(actionIDs) < 2 {
		return nil, r.refused("merge actions", &Error{Cause: CauseInvalidAction, ActionIDs: actionIDs})
	}

	group := make(map[int]bool, len(actionIDs))
	var invalid, trashed, compound []int
	commands := make([]string, 0, len(actionIDs))
	for _, id := range actionIDs {
		a, ok, err := r.knownAction(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok || group[id] {
			invalid = append(invalid, id)
			continue
		}
		group[id] = true
		if a.Trashed {
			trashed = append(trashed, id)
			continue
		}
		kids, err := r.store.ActionChildren(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(kids) > 0 {
			compound = append(compound, id)
		}
		commands = append(commands, a.Command)
	}
	switch {
	case len(invalid) > 0:
		return nil, r.refused("merge actions", actionErr(CauseInvalidAction, invalid...))
	case len(trashed) > 0:
		return nil, r.refused("merge actions", actionErr(CauseActionIsTrashed, trashed...))
	case len(compound) > 0:
		return nil, r.refused("merge actions", actionErr(CauseActionNotAtomic, compound...))
	}

	all, err := r.gatherAccesses(ctx, actionIDs)
	if err != nil {
		return nil, err
	}
	flat, err := r.flatten(ctx, all, group)
	if err != nil {
		return nil, err
	}

	first := actionIDs[0]
	m := undo.NewMulti()
	op := undo.NewActionOp(r.store, first)
	op.RecordCommandChange(commands[0], strings.Join(commands, "\n"))
	if err := r.replaceAccesses(ctx, op, flat); err != nil {
		return nil, err
	}
	m.Add(op)
	for _, id := range actionIDs[1:] {
		o := undo.NewActionOp(r.store, id)
		o.RecordTrash()
		m.Add(o)
	}
	return r.apply(ctx, fmt.Sprintf("merge actions %v", actionIDs), m)
}

// DeleteAction trashes one action and its file accesses. Its children move
// up to its parent. An action whose outputs are still read elsewhere is
// refused.
func (r *Refactorer) DeleteAction(ctx context.Context, actionID int) (*undo.Multi, error) {
	r.logger.Debug("delete action", zap.Int("action", actionID))
	a, ok, err := r.knownAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, r.refused("delete action", actionErr(CauseInvalidAction, actionID))
	}
	if a.Trashed {
		return nil, r.refused("delete action", actionErr(CauseActionIsTrashed, actionID))
	}

	outs, err := r.store.FilesAccessed(ctx, actionID, store.WriteOps...)
	if err != nil {
		return nil, err
	}
	self := map[int]bool{actionID: true}
	var needed []int
	for _, p := range outs {
		readers, err := r.store.ActionsThatAccess(ctx, p, store.ReadOps...)
		if err != nil {
			return nil, err
		}
		if len(without(readers, self)) > 0 {
			needed = append(needed, p)
		}
	}
	if len(needed) > 0 {
		return nil, r.refused("delete action", &Error{Cause: CauseActionInUse, PathIDs: needed, ActionIDs: []int{actionID}})
	}

	kids, err := r.store.ActionChildren(ctx, actionID)
	if err != nil {
		return nil, err
	}
	m := undo.NewMulti()
	for _, k := range kids {
		op := undo.NewActionOp(r.store, k)
		op.RecordParentChange(actionID, a.Parent)
		m.Add(op)
	}
	op := undo.NewActionOp(r.store, actionID)
	if err := r.removeAllAccesses(ctx, op); err != nil {
		return nil, err
	}
	op.RecordTrash()
	m.Add(op)
	return r.apply(ctx, fmt.Sprintf("delete action %d", actionID), m)
}
