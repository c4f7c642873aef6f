// Package refactor performs structural edits on a build's provenance graph.
//
// Every intent validates against the store before touching it, refusing
// with an *Error whose Cause says why. A valid intent is expressed as one
// composite undo.Operation, applied through the Recorder so that it can be
// undone and redone later. MoveMembersToPackage is the exception: it returns
// the operations it would apply and leaves applying them to the caller.
package refactor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papapumpkin/buildgraph/internal/store"
	"github.com/papapumpkin/buildgraph/internal/undo"
)

// Store is the build store surface the refactorer reads and, through undo
// operations, mutates. *store.Store satisfies it.
type Store interface {
	undo.Store

	Path(ctx context.Context, id int) (store.PathInfo, error)
	PathName(ctx context.Context, id int) (string, error)
	PathChildren(ctx context.Context, id int) ([]int, error)
	IsAncestorPath(ctx context.Context, ancestor, id int) (bool, error)

	Action(ctx context.Context, id int) (store.ActionInfo, error)
	ActionChildren(ctx context.Context, id int) ([]int, error)
	ActionsInDirectory(ctx context.Context, dir int) ([]int, error)
	FileAccesses(ctx context.Context, action int) ([]store.FileAccess, error)
	ActionsThatAccess(ctx context.Context, path int, ops ...store.OpType) ([]int, error)
	FilesAccessed(ctx context.Context, action int, ops ...store.OpType) ([]int, error)
	SlotValue(ctx context.Context, owner, slot int) (string, bool, error)

	Package(ctx context.Context, id int) (store.PackageInfo, error)
	LookupPackage(ctx context.Context, name string) (int, error)
	NewPackage(ctx context.Context, name string, parent int) (int, error)
	NewFolder(ctx context.Context, name string, parent int) (int, error)
	IsPackageEmpty(ctx context.Context, id int) (bool, error)
	MemberPackage(ctx context.Context, t store.MemberType, id int) (store.Home, error)
	MembersOfPackage(ctx context.Context, pkg int) ([]store.Member, error)

	NextFileGroupID(ctx context.Context) (int, error)
	FileGroup(ctx context.Context, id int) (store.GroupInfo, error)
	SubPackage(ctx context.Context, id int) (store.SubPackageInfo, error)
}

// Recorder applies an operation and keeps it for undo. *undo.History
// satisfies it.
type Recorder interface {
	Apply(ctx context.Context, label string, op undo.Operation) (undo.Entry, error)
}

// Refactorer runs refactoring intents against one store. It is not safe for
// concurrent use; callers serialize intents.
type Refactorer struct {
	store  Store
	rec    Recorder
	logger *zap.Logger
}

// New returns a Refactorer editing s and recording applied edits in rec.
func New(s Store, rec Recorder, logger *zap.Logger) *Refactorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refactorer{store: s, rec: rec, logger: logger}
}

// Store returns the store the refactorer edits.
func (r *Refactorer) Store() Store { return r.store }

// apply records m under label unless it is empty.
func (r *Refactorer) apply(ctx context.Context, label string, m *undo.Multi) (*undo.Multi, error) {
	if m.Len() == 0 {
		r.logger.Debug("nothing to apply", zap.String("intent", label))
		return m, nil
	}
	if _, err := r.rec.Apply(ctx, label, m); err != nil {
		return nil, fmt.Errorf("refactor: %s: %w", label, err)
	}
	r.logger.Info("intent applied", zap.String("intent", label), zap.Int("ops", m.Len()))
	return m, nil
}

// refused logs a validation failure and passes it through.
func (r *Refactorer) refused(intent string, err error) error {
	if c, ok := CauseOf(err); ok {
		r.logger.Debug("intent refused", zap.String("intent", intent), zap.String("cause", string(c)))
	}
	return err
}

// livePath returns the path row for id if it exists and is not trashed.
func (r *Refactorer) livePath(ctx context.Context, id int) (store.PathInfo, bool, error) {
	p, err := r.store.Path(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.PathInfo{}, false, nil
	}
	if err != nil {
		return store.PathInfo{}, false, err
	}
	return p, !p.Trashed && id != store.RootPath, nil
}

// knownAction returns the action row for id, trashed or not. ok is false for
// unknown IDs and the root action; callers check Trashed themselves.
func (r *Refactorer) knownAction(ctx context.Context, id int) (store.ActionInfo, bool, error) {
	if id == store.RootAction {
		return store.ActionInfo{}, false, nil
	}
	a, err := r.store.Action(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.ActionInfo{}, false, nil
	}
	if err != nil {
		return store.ActionInfo{}, false, err
	}
	return a, true, nil
}

// trashedInChain reports whether id or any of its ancestors is trashed.
func (r *Refactorer) trashedInChain(ctx context.Context, a store.ActionInfo) (bool, error) {
	for {
		if a.Trashed {
			return true, nil
		}
		if a.ID == store.RootAction || a.Parent == a.ID {
			return false, nil
		}
		var err error
		if a, err = r.store.Action(ctx, a.Parent); err != nil {
			return false, err
		}
	}
}

// inRange reports whether path lies under one of roots.
func (r *Refactorer) inRange(ctx context.Context, path int, roots ...int) (bool, error) {
	for _, root := range roots {
		ok, err := r.store.IsAncestorPath(ctx, root, path)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// removeAllAccesses records the removal of every access of action on op.
func (r *Refactorer) removeAllAccesses(ctx context.Context, op *undo.ActionOp) error {
	fas, err := r.store.FileAccesses(ctx, op.ID())
	if err != nil {
		return err
	}
	for _, fa := range fas {
		op.RecordRemoveAccess(fa)
	}
	return nil
}

func without(ids []int, drop map[int]bool) []int {
	var out []int
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}
