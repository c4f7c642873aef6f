package undo

import (
	"context"
	"fmt"

	"github.com/papapumpkin/buildgraph/internal/store"
)

type entity int

const (
	entPath entity = iota
	entAction
	entFileGroup
	entPackage
	entSlot
	entSubPackage
)

func setTrashed(ctx context.Context, s Store, kind entity, id int, trashed bool) error {
	switch kind {
	case entPath:
		if trashed {
			return s.TrashPath(ctx, id)
		}
		return s.RevivePath(ctx, id)
	case entAction:
		if trashed {
			return s.TrashAction(ctx, id)
		}
		return s.ReviveAction(ctx, id)
	case entFileGroup:
		if trashed {
			return s.TrashFileGroup(ctx, id)
		}
		return s.ReviveFileGroup(ctx, id)
	case entPackage:
		if trashed {
			return s.TrashPackage(ctx, id)
		}
		return s.RevivePackage(ctx, id)
	case entSlot:
		if trashed {
			return s.TrashSlot(ctx, id)
		}
		return s.ReviveSlot(ctx, id)
	case entSubPackage:
		if trashed {
			return s.TrashSubPackage(ctx, id)
		}
		return s.ReviveSubPackage(ctx, id)
	default:
		return fmt.Errorf("unknown entity kind %d", kind)
	}
}

// trashChange trashes (or, with trash false, revives) an entity.
type trashChange struct {
	kind  entity
	id    int
	trash bool
}

func (c trashChange) redo(ctx context.Context, s Store) error {
	return setTrashed(ctx, s, c.kind, c.id, c.trash)
}

func (c trashChange) undo(ctx context.Context, s Store) error {
	return setTrashed(ctx, s, c.kind, c.id, !c.trash)
}

type packageChange struct {
	typ      store.MemberType
	id       int
	from, to store.Home
}

func (c packageChange) redo(ctx context.Context, s Store) error {
	return s.SetMemberPackage(ctx, c.typ, c.id, c.to.Pkg, c.to.Scope)
}

func (c packageChange) undo(ctx context.Context, s Store) error {
	return s.SetMemberPackage(ctx, c.typ, c.id, c.from.Pkg, c.from.Scope)
}

type locationChange struct {
	typ      store.MemberType
	id       int
	from, to store.Location
}

func (c locationChange) redo(ctx context.Context, s Store) error {
	return s.SetMemberLocation(ctx, c.typ, c.id, c.to)
}

func (c locationChange) undo(ctx context.Context, s Store) error {
	return s.SetMemberLocation(ctx, c.typ, c.id, c.from)
}

type commandChange struct {
	id       int
	from, to string
}

func (c commandChange) redo(ctx context.Context, s Store) error {
	return s.SetActionCommand(ctx, c.id, c.to)
}

func (c commandChange) undo(ctx context.Context, s Store) error {
	return s.SetActionCommand(ctx, c.id, c.from)
}

type parentChange struct {
	id       int
	from, to int
}

func (c parentChange) redo(ctx context.Context, s Store) error {
	return s.SetActionParent(ctx, c.id, c.to)
}

func (c parentChange) undo(ctx context.Context, s Store) error {
	return s.SetActionParent(ctx, c.id, c.from)
}

// SlotValue is the content of one slot on one action. Set false means the
// slot holds no value.
type SlotValue struct {
	Value string
	Set   bool
}

type slotValueChange struct {
	owner, slot int
	from, to    SlotValue
}

func applySlot(ctx context.Context, s Store, owner, slot int, v SlotValue) error {
	if !v.Set {
		return s.ClearSlotValue(ctx, owner, slot)
	}
	return s.SetSlotValue(ctx, owner, slot, v.Value)
}

func (c slotValueChange) redo(ctx context.Context, s Store) error {
	return applySlot(ctx, s, c.owner, c.slot, c.to)
}

func (c slotValueChange) undo(ctx context.Context, s Store) error {
	return applySlot(ctx, s, c.owner, c.slot, c.from)
}

// accessAdd keeps the sequence number allocated on first redo so later
// redos restore the record in the same position.
type accessAdd struct {
	fa store.FileAccess
}

func (c *accessAdd) redo(ctx context.Context, s Store) error {
	seq, err := s.AddFileAccess(ctx, c.fa.Action, c.fa.Path, c.fa.Op, c.fa.Seq)
	if err != nil {
		return err
	}
	c.fa.Seq = seq
	return nil
}

func (c *accessAdd) undo(ctx context.Context, s Store) error {
	return s.RemoveFileAccess(ctx, c.fa.Seq)
}

type accessRemove struct {
	fa store.FileAccess
}

func (c accessRemove) redo(ctx context.Context, s Store) error {
	return s.RemoveFileAccess(ctx, c.fa.Seq)
}

func (c accessRemove) undo(ctx context.Context, s Store) error {
	_, err := s.AddFileAccess(ctx, c.fa.Action, c.fa.Path, c.fa.Op, c.fa.Seq)
	return err
}

// groupAlloc inserts a file group row with a reserved ID on redo and
// deletes it again on undo.
type groupAlloc struct {
	id   int
	kind store.GroupKind
	pkg  int
}

func (c groupAlloc) redo(ctx context.Context, s Store) error {
	return s.InsertFileGroup(ctx, c.id, c.kind, c.pkg)
}

func (c groupAlloc) undo(ctx context.Context, s Store) error {
	return s.DeleteFileGroup(ctx, c.id)
}

// GroupMembers is the membership of a file group. IDs holds paths for a
// source group and sub-groups for a merge group; Predecessor and Patterns
// describe a filter group.
type GroupMembers struct {
	IDs         []int
	Predecessor int
	Patterns    []string
}

type membersChange struct {
	id       int
	kind     store.GroupKind
	from, to GroupMembers
}

func applyMembers(ctx context.Context, s Store, id int, kind store.GroupKind, m GroupMembers) error {
	switch kind {
	case store.GroupSource:
		return s.SetFileGroupPaths(ctx, id, m.IDs)
	case store.GroupMerge:
		return s.SetFileGroupSubGroups(ctx, id, m.IDs)
	case store.GroupFilter:
		return s.SetFileGroupFilter(ctx, id, m.Predecessor, m.Patterns)
	default:
		return fmt.Errorf("unknown file group kind %d", kind)
	}
}

func (c membersChange) redo(ctx context.Context, s Store) error {
	return applyMembers(ctx, s, c.id, c.kind, c.to)
}

func (c membersChange) undo(ctx context.Context, s Store) error {
	return applyMembers(ctx, s, c.id, c.kind, c.from)
}

type nameChange struct {
	id       int
	from, to string
}

func (c nameChange) redo(ctx context.Context, s Store) error {
	return s.SetPackageName(ctx, c.id, c.to)
}

func (c nameChange) undo(ctx context.Context, s Store) error {
	return s.SetPackageName(ctx, c.id, c.from)
}

type folderChange struct {
	id       int
	from, to int
}

func (c folderChange) redo(ctx context.Context, s Store) error {
	return s.SetPackageParent(ctx, c.id, c.to)
}

func (c folderChange) undo(ctx context.Context, s Store) error {
	return s.SetPackageParent(ctx, c.id, c.from)
}

// Roots is a package's source and generated root directories.
type Roots struct {
	Src int
	Gen int
}

type rootsChange struct {
	id       int
	from, to Roots
}

func (c rootsChange) redo(ctx context.Context, s Store) error {
	return s.SetPackageRoots(ctx, c.id, c.to.Src, c.to.Gen)
}

func (c rootsChange) undo(ctx context.Context, s Store) error {
	return s.SetPackageRoots(ctx, c.id, c.from.Src, c.from.Gen)
}

type slotDetailsChange struct {
	from, to store.SlotDetails
}

func (c slotDetailsChange) redo(ctx context.Context, s Store) error {
	return s.ChangeSlot(ctx, c.to)
}

func (c slotDetailsChange) undo(ctx context.Context, s Store) error {
	return s.ChangeSlot(ctx, c.from)
}
