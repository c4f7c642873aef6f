// Package undo implements reversible edits to a build store.
//
// An Operation is a recorded change that can be redone and undone any number
// of times. Typed operations (ActionOp, PathOp, FileGroupOp, PackageOp,
// SlotOp, SubPackageOp) are built by calling their Record methods before the
// first Redo; each Record call appends one field change, and calls whose old
// and new values are equal are dropped. Multi composes operations into one
// unit, and History keeps the undo and redo stacks.
//
// Redo and Undo assume the store is in the state the operation expects. A
// returned error is an invariant violation, not a user-facing failure.
package undo

import (
	"context"
	"fmt"
)

// Operation is one reversible edit. Both methods report whether anything
// changed.
type Operation interface {
	Redo(ctx context.Context) (bool, error)
	Undo(ctx context.Context) (bool, error)
}

// change is one recorded field mutation. The set of implementations is
// closed: every variant lives in this package.
type change interface {
	redo(ctx context.Context, s Store) error
	undo(ctx context.Context, s Store) error
}

// changeList is the ordered list of field changes shared by the typed
// operations. Redo applies them in order; Undo reverts them in reverse.
type changeList struct {
	store   Store
	what    string
	id      int
	changes []change
}

func (c *changeList) add(ch change) {
	c.changes = append(c.changes, ch)
}

// Redo applies every recorded change.
func (c *changeList) Redo(ctx context.Context) (bool, error) {
	for _, ch := range c.changes {
		if err := ch.redo(ctx, c.store); err != nil {
			return false, fmt.Errorf("undo: redo %s %d: %w", c.what, c.id, err)
		}
	}
	return len(c.changes) > 0, nil
}

// Undo reverts every recorded change, last first.
func (c *changeList) Undo(ctx context.Context) (bool, error) {
	for i := len(c.changes) - 1; i >= 0; i-- {
		if err := c.changes[i].undo(ctx, c.store); err != nil {
			return false, fmt.Errorf("undo: undo %s %d: %w", c.what, c.id, err)
		}
	}
	return len(c.changes) > 0, nil
}

// Len returns the number of recorded changes.
func (c *changeList) Len() int {
	return len(c.changes)
}

// ID returns the ID of the entity the operation edits.
func (c *changeList) ID() int {
	return c.id
}

// Multi is a composite operation. Children are redone in order and undone in
// reverse order.
type Multi struct {
	ops []Operation
}

// NewMulti returns a composite holding ops.
func NewMulti(ops ...Operation) *Multi {
	return &Multi{ops: ops}
}

// Add appends operations to the composite.
func (m *Multi) Add(ops ...Operation) {
	m.ops = append(m.ops, ops...)
}

// Len returns the number of child operations.
func (m *Multi) Len() int {
	return len(m.ops)
}

// Ops returns the child operations in redo order.
func (m *Multi) Ops() []Operation {
	return m.ops
}

// Redo redoes every child. It reports true if any child changed.
func (m *Multi) Redo(ctx context.Context) (bool, error) {
	changed := false
	for _, op := range m.ops {
		c, err := op.Redo(ctx)
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}

// Undo undoes every child, last first. It reports true if any child changed.
func (m *Multi) Undo(ctx context.Context) (bool, error) {
	changed := false
	for i := len(m.ops) - 1; i >= 0; i-- {
		c, err := m.ops[i].Undo(ctx)
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}
