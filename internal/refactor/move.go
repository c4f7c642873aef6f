package refactor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/papapumpkin/buildgraph/internal/graph"
	"github.com/papapumpkin/buildgraph/internal/store"
	"github.com/papapumpkin/buildgraph/internal/undo"
)

// MoveMembersToPackage builds the operations that move members into
// destPkg, without applying them. Selected actions get input and output
// file groups in the destination; an action reading exactly what another
// selected action writes shares that action's output group. Files not
// touched by a selected action are gathered into one source group. The
// caller folds the operations into an undo.Multi and redoes it.
//
// Building writes nothing. New groups take IDs counted up from the store's
// next free file group ID and are inserted when the operations are redone,
// so the operations must be applied before anything else allocates a group.
func (r *Refactorer) MoveMembersToPackage(ctx context.Context, destPkg int, members []store.Member) ([]undo.Operation, error) {
	r.logger.Debug("move members", zap.Int("package", destPkg), zap.Int("members", len(members)))
	sel, err := r.validateMove(ctx, destPkg, members)
	if err != nil {
		return nil, r.refused("move members", err)
	}
	next, err := r.store.NextFileGroupID(ctx)
	if err != nil {
		return nil, err
	}
	b := &moveBuilder{r: r, dest: destPkg, next: next}
	if err := b.build(ctx, sel); err != nil {
		return nil, err
	}
	r.logger.Info("move built", zap.Int("package", destPkg), zap.Int("ops", len(b.ops)))
	return b.ops, nil
}

// Move builds a MoveMembersToPackage and applies it as one step.
func (r *Refactorer) Move(ctx context.Context, destPkg int, members []store.Member) (*undo.Multi, error) {
	ops, err := r.MoveMembersToPackage(ctx, destPkg, members)
	if err != nil {
		return nil, err
	}
	return r.apply(ctx, fmt.Sprintf("move %d members to package %d", len(members), destPkg), undo.NewMulti(ops...))
}

// moveBuilder accumulates the operations of one move.
type moveBuilder struct {
	r    *Refactorer
	dest int
	next int // ID the next new group receives
	ops  []undo.Operation
}

func (b *moveBuilder) newGroup(kind store.GroupKind, to undo.GroupMembers) int {
	id := b.next
	b.next++
	op := undo.NewFileGroupOp(b.r.store, id, kind)
	op.RecordAllocate(b.dest)
	op.RecordCreate()
	op.RecordMembershipChange(undo.GroupMembers{Predecessor: store.NoGroup}, to)
	b.ops = append(b.ops, op)
	return id
}

func (b *moveBuilder) rehome(ctx context.Context, t store.MemberType, id int, rec func(from, to store.Home)) error {
	from, err := b.r.store.MemberPackage(ctx, t, id)
	if err != nil {
		return err
	}
	rec(from, store.Home{Pkg: b.dest, Scope: from.Scope})
	return nil
}

func (b *moveBuilder) build(ctx context.Context, sel *selection) error {
	order, err := b.actionOrder(sel)
	if err != nil {
		return err
	}

	outGroup := make(map[int]int)
	moved := make(map[int]bool)
	var movedFiles []int
	for _, a := range order {
		in, err := b.inputGroup(ctx, a, sel, outGroup)
		if err != nil {
			return err
		}
		out := store.NoGroup
		if w := sel.writes[a]; len(w) > 0 {
			out = b.newGroup(store.GroupSource, undo.GroupMembers{IDs: w, Predecessor: store.NoGroup})
			outGroup[a] = out
			for _, p := range w {
				if !moved[p] {
					moved[p] = true
					movedFiles = append(movedFiles, p)
				}
			}
		}

		op := undo.NewActionOp(b.r.store, a)
		for _, slot := range []struct{ id, group int }{{store.SlotInput, in}, {store.SlotOutput, out}} {
			v, set, err := b.r.store.SlotValue(ctx, a, slot.id)
			if err != nil {
				return err
			}
			to := undo.SlotValue{}
			if slot.group != store.NoGroup {
				to = undo.SlotValue{Value: strconv.Itoa(slot.group), Set: true}
			}
			op.RecordSlotChange(slot.id, undo.SlotValue{Value: v, Set: set}, to)
		}
		if err := b.rehome(ctx, store.MemberAction, a, op.RecordPackageChange); err != nil {
			return err
		}
		b.ops = append(b.ops, op)
	}

	if len(sel.loose) > 0 {
		b.newGroup(store.GroupSource, undo.GroupMembers{IDs: sel.loose, Predecessor: store.NoGroup})
	}
	for _, f := range sel.files {
		if !moved[f] {
			moved[f] = true
			movedFiles = append(movedFiles, f)
		}
	}
	for _, f := range movedFiles {
		op := undo.NewPathOp(b.r.store, f)
		if err := b.rehome(ctx, store.MemberFile, f, op.RecordPackageChange); err != nil {
			return err
		}
		b.ops = append(b.ops, op)
	}
	for _, g := range sel.groups {
		info, err := b.r.store.FileGroup(ctx, g)
		if err != nil {
			return err
		}
		op := undo.NewFileGroupOp(b.r.store, g, info.Kind)
		if err := b.rehome(ctx, store.MemberFileGroup, g, op.RecordPackageChange); err != nil {
			return err
		}
		b.ops = append(b.ops, op)
	}
	for _, sp := range sel.subs {
		op := undo.NewSubPackageOp(b.r.store, sp)
		if err := b.rehome(ctx, store.MemberSubPackage, sp, op.RecordPackageChange); err != nil {
			return err
		}
		b.ops = append(b.ops, op)
	}
	return nil
}

// actionOrder orders the selected actions so producers come before their
// consumers. Edges that would close a cycle are ignored.
func (b *moveBuilder) actionOrder(sel *selection) ([]int, error) {
	producer := producers(sel)
	d := graph.New()
	for _, a := range sel.actions {
		d.AddNode(a)
	}
	for _, a := range sel.actions {
		for _, p := range sel.reads[a] {
			w, ok := producer[p]
			if !ok || w == a {
				continue
			}
			if err := d.AddEdge(a, w); err != nil && !errors.Is(err, graph.ErrCycle) {
				return nil, err
			}
		}
	}
	return d.TopologicalSort()
}

// producers maps each path written by a selected action to the first such
// action.
func producers(sel *selection) map[int]int {
	out := make(map[int]int)
	for _, a := range sel.actions {
		for _, p := range sel.writes[a] {
			if _, ok := out[p]; !ok {
				out[p] = a
			}
		}
	}
	return out
}

// inputGroup builds the group standing for a's reads: the producer's output
// group when a reads all of it, a filter over it for a subset, a source
// group for external inputs, and a merge group when there are several.
func (b *moveBuilder) inputGroup(ctx context.Context, a int, sel *selection, outGroup map[int]int) (int, error) {
	producer := producers(sel)
	byProducer := make(map[int][]int)
	var fromOrder, external []int
	for _, p := range sel.reads[a] {
		w, ok := producer[p]
		if _, built := outGroup[w]; !ok || w == a || !built {
			external = append(external, p)
			continue
		}
		if _, seen := byProducer[w]; !seen {
			fromOrder = append(fromOrder, w)
		}
		byProducer[w] = append(byProducer[w], p)
	}

	var parts []int
	for _, w := range fromOrder {
		if sameMembers(byProducer[w], sel.writes[w]) {
			parts = append(parts, outGroup[w])
			continue
		}
		patterns := make([]string, 0, len(byProducer[w]))
		for _, p := range byProducer[w] {
			name, err := b.r.store.PathName(ctx, p)
			if err != nil {
				return 0, err
			}
			patterns = append(patterns, "ia:"+name)
		}
		parts = append(parts, b.newGroup(store.GroupFilter, undo.GroupMembers{Predecessor: outGroup[w], Patterns: patterns}))
	}
	if len(external) > 0 {
		parts = append(parts, b.newGroup(store.GroupSource, undo.GroupMembers{IDs: external, Predecessor: store.NoGroup}))
	}

	switch len(parts) {
	case 0:
		return store.NoGroup, nil
	case 1:
		return parts[0], nil
	default:
		return b.newGroup(store.GroupMerge, undo.GroupMembers{IDs: parts, Predecessor: store.NoGroup}), nil
	}
}

func sameMembers(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
