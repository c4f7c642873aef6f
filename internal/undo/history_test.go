package undo

import (
	"context"
	"errors"
	"testing"

	"github.com/papapumpkin/buildgraph/internal/journal"
	"github.com/papapumpkin/buildgraph/internal/logging"
	"github.com/papapumpkin/buildgraph/internal/store"
)

type sliceSink struct {
	events []journal.Event
}

func (s *sliceSink) Emit(evt journal.Event) error {
	s.events = append(s.events, evt)
	return nil
}

func (s *sliceSink) kinds() []string {
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

// failingOp mutates the store and then fails, to exercise rollback.
type failingOp struct {
	s *store.Store
}

func (o failingOp) Redo(ctx context.Context) (bool, error) {
	if _, err := o.s.AddFile(ctx, "/partial"); err != nil {
		return false, err
	}
	return false, errors.New("boom")
}

func (o failingOp) Undo(context.Context) (bool, error) { return false, nil }

func TestHistory_ApplyUndoRedo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)
	sink := &sliceSink{}
	h := NewHistory(s, sink, logging.Nop())
	f, _ := s.AddFile(ctx, "/f")

	if h.CanUndo() || h.CanRedo() {
		t.Fatal("fresh history can undo or redo")
	}
	op := NewPathOp(s, f)
	op.RecordRemove()
	e, err := h.Apply(ctx, "remove /f", op)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if e.ID == "" {
		t.Error("entry has no ID")
	}
	if p, _ := s.Path(ctx, f); !p.Trashed {
		t.Error("path live after Apply")
	}

	if _, err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if p, _ := s.Path(ctx, f); p.Trashed {
		t.Error("path trashed after Undo")
	}
	if !h.CanRedo() || h.CanUndo() {
		t.Errorf("CanUndo=%v CanRedo=%v after Undo", h.CanUndo(), h.CanRedo())
	}
	redone, err := h.Redo(ctx)
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if redone.ID != e.ID {
		t.Errorf("Redo entry = %s; want %s", redone.ID, e.ID)
	}
	if p, _ := s.Path(ctx, f); !p.Trashed {
		t.Error("path live after Redo")
	}

	want := []string{journal.KindApplied, journal.KindUndone, journal.KindRedone}
	if got := sink.kinds(); len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("journal kinds = %v; want %v", got, want)
	}
}

func TestHistory_EmptyStacks(t *testing.T) {
	t.Parallel()
	h := NewHistory(testStore(t), nil, nil)
	if _, err := h.Undo(context.Background()); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("Undo = %v; want ErrNothingToUndo", err)
	}
	if _, err := h.Redo(context.Background()); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("Redo = %v; want ErrNothingToRedo", err)
	}
}

func TestHistory_FailedApplyRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)
	sink := &sliceSink{}
	h := NewHistory(s, sink, nil)

	if _, err := h.Apply(ctx, "broken", failingOp{s}); err == nil {
		t.Fatal("Apply succeeded")
	}
	if _, err := s.LookupPath(ctx, "/partial"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("partial mutation survived: %v", err)
	}
	if h.CanUndo() {
		t.Error("failed entry pushed on undo stack")
	}
	if len(sink.events) != 1 || sink.events[0].Kind != journal.KindFailed || sink.events[0].Error == "" {
		t.Errorf("journal = %+v; want one failed event", sink.events)
	}
}

func TestHistory_ApplyClearsRedo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)
	h := NewHistory(s, nil, nil)
	a, _ := s.AddAction(ctx, store.RootAction, store.RootPath, "cc")

	first := NewActionOp(s, a)
	first.RecordCommandChange("cc", "gcc")
	if _, err := h.Apply(ctx, "rename", first); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	second := NewActionOp(s, a)
	second.RecordCommandChange("cc", "clang")
	h.Push("rename again", second)
	if h.CanRedo() {
		t.Error("redo stack survived a new entry")
	}
}
