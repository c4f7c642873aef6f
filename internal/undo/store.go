package undo

import (
	"context"

	"github.com/papapumpkin/buildgraph/internal/store"
)

// Store is the subset of the build store that operations mutate.
// *store.Store satisfies it.
type Store interface {
	TrashPath(ctx context.Context, id int) error
	RevivePath(ctx context.Context, id int) error
	TrashAction(ctx context.Context, id int) error
	ReviveAction(ctx context.Context, id int) error
	TrashFileGroup(ctx context.Context, id int) error
	ReviveFileGroup(ctx context.Context, id int) error
	TrashPackage(ctx context.Context, id int) error
	RevivePackage(ctx context.Context, id int) error
	TrashSlot(ctx context.Context, id int) error
	ReviveSlot(ctx context.Context, id int) error
	TrashSubPackage(ctx context.Context, id int) error
	ReviveSubPackage(ctx context.Context, id int) error

	SetMemberPackage(ctx context.Context, t store.MemberType, id, pkg int, scope store.Scope) error
	SetMemberLocation(ctx context.Context, t store.MemberType, id int, loc store.Location) error

	SetActionCommand(ctx context.Context, id int, command string) error
	SetActionParent(ctx context.Context, id, parent int) error
	SetSlotValue(ctx context.Context, owner, slot int, value string) error
	ClearSlotValue(ctx context.Context, owner, slot int) error
	AddFileAccess(ctx context.Context, action, path int, op store.OpType, seq int) (int, error)
	RemoveFileAccess(ctx context.Context, seq int) error

	InsertFileGroup(ctx context.Context, id int, kind store.GroupKind, pkg int) error
	DeleteFileGroup(ctx context.Context, id int) error
	SetFileGroupPaths(ctx context.Context, id int, paths []int) error
	SetFileGroupSubGroups(ctx context.Context, id int, subs []int) error
	SetFileGroupFilter(ctx context.Context, id, predecessor int, patterns []string) error

	SetPackageName(ctx context.Context, id int, name string) error
	SetPackageParent(ctx context.Context, id, parent int) error
	SetPackageRoots(ctx context.Context, id, srcRoot, genRoot int) error

	ChangeSlot(ctx context.Context, d store.SlotDetails) error
}

// Transactor runs a function inside one store transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
