package undo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papapumpkin/buildgraph/internal/journal"
)

var (
	// ErrNothingToUndo is returned by Undo on an empty undo stack.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned by Redo on an empty redo stack.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Sink receives one event per history transition. *journal.Emitter
// satisfies it.
type Sink interface {
	Emit(evt journal.Event) error
}

// Entry is one step on the history stacks.
type Entry struct {
	ID    string
	Label string
	Op    Operation
}

// History keeps the undo and redo stacks of a store session. Every
// transition runs inside one store transaction, so a failed redo or undo
// leaves the store and the stacks as they were.
type History struct {
	tx     Transactor
	sink   Sink
	logger *zap.Logger
	undo   []Entry
	redo   []Entry
}

// NewHistory returns an empty history running operations through tx. sink
// and logger may be nil.
func NewHistory(tx Transactor, sink Sink, logger *zap.Logger) *History {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{tx: tx, sink: sink, logger: logger}
}

// Apply redoes op for the first time and pushes it on the undo stack,
// discarding anything that could have been redone.
func (h *History) Apply(ctx context.Context, label string, op Operation) (Entry, error) {
	e := Entry{ID: uuid.NewString(), Label: label, Op: op}
	changed, err := h.run(ctx, op.Redo)
	if err != nil {
		h.emit(journal.KindFailed, e, false, err)
		return Entry{}, fmt.Errorf("undo: apply %q: %w", label, err)
	}
	h.push(e)
	h.logger.Info("applied", zap.String("entry", e.ID), zap.String("label", label), zap.Bool("changed", changed))
	h.emit(journal.KindApplied, e, changed, nil)
	return e, nil
}

// Push records an operation the caller has already redone.
func (h *History) Push(label string, op Operation) Entry {
	e := Entry{ID: uuid.NewString(), Label: label, Op: op}
	h.push(e)
	h.logger.Debug("pushed", zap.String("entry", e.ID), zap.String("label", label))
	h.emit(journal.KindApplied, e, true, nil)
	return e
}

func (h *History) push(e Entry) {
	h.undo = append(h.undo, e)
	h.redo = nil
}

// Undo reverts the most recent entry and moves it to the redo stack.
func (h *History) Undo(ctx context.Context) (Entry, error) {
	if len(h.undo) == 0 {
		return Entry{}, ErrNothingToUndo
	}
	e := h.undo[len(h.undo)-1]
	changed, err := h.run(ctx, e.Op.Undo)
	if err != nil {
		h.emit(journal.KindFailed, e, false, err)
		return Entry{}, fmt.Errorf("undo: undo %q: %w", e.Label, err)
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, e)
	h.logger.Info("undone", zap.String("entry", e.ID), zap.String("label", e.Label))
	h.emit(journal.KindUndone, e, changed, nil)
	return e, nil
}

// Redo reapplies the most recently undone entry.
func (h *History) Redo(ctx context.Context) (Entry, error) {
	if len(h.redo) == 0 {
		return Entry{}, ErrNothingToRedo
	}
	e := h.redo[len(h.redo)-1]
	changed, err := h.run(ctx, e.Op.Redo)
	if err != nil {
		h.emit(journal.KindFailed, e, false, err)
		return Entry{}, fmt.Errorf("undo: redo %q: %w", e.Label, err)
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, e)
	h.logger.Info("redone", zap.String("entry", e.ID), zap.String("label", e.Label))
	h.emit(journal.KindRedone, e, changed, nil)
	return e, nil
}

// CanUndo reports whether Undo has an entry to revert.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo has an entry to reapply.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

func (h *History) run(ctx context.Context, step func(context.Context) (bool, error)) (bool, error) {
	var changed bool
	err := h.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		changed, err = step(ctx)
		return err
	})
	return changed, err
}

func (h *History) emit(kind string, e Entry, changed bool, cause error) {
	if h.sink == nil {
		return
	}
	evt := journal.Event{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		EntryID:   e.ID,
		Label:     e.Label,
		Changed:   changed,
	}
	if cause != nil {
		evt.Error = cause.Error()
	}
	if err := h.sink.Emit(evt); err != nil {
		h.logger.Warn("journal write failed", zap.Error(err))
	}
}
