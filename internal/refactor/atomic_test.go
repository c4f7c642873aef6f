package refactor

import (
	"context"
	"reflect"
	"testing"

	"github.com/papapumpkin/buildgraph/internal/store"
)

// opsOf reduces accesses to path -> op.
func opsOf(fas []store.FileAccess) map[int]store.OpType {
	out := make(map[int]store.OpType, len(fas))
	for _, fa := range fas {
		out[fa.Path] = fa.Op
	}
	return out
}

func TestFlatten(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	group := map[int]bool{1: true}
	tests := []struct {
		name string
		in   []store.FileAccess
		want []flatAccess
	}{
		{"read stays read", []store.FileAccess{{Seq: 1, Path: 10, Op: store.OpRead}}, []flatAccess{{10, store.OpRead}}},
		{"unspecified is a read", []store.FileAccess{{Seq: 1, Path: 10}}, []flatAccess{{10, store.OpRead}}},
		{
			"read then write is modified",
			[]store.FileAccess{{Seq: 1, Path: 10, Op: store.OpRead}, {Seq: 2, Path: 10, Op: store.OpWrite}},
			[]flatAccess{{10, store.OpModified}},
		},
		{
			"produced then deleted vanishes",
			[]store.FileAccess{{Seq: 1, Path: 12, Op: store.OpWrite}, {Seq: 2, Path: 12, Op: store.OpDelete}},
			nil,
		},
		{"external delete kept", []store.FileAccess{{Seq: 1, Path: 11, Op: store.OpDelete}}, []flatAccess{{11, store.OpDelete}}},
		{
			"read before a sibling writes is modified",
			[]store.FileAccess{{Seq: 1, Action: 2, Path: 14, Op: store.OpRead}, {Seq: 2, Action: 3, Path: 14, Op: store.OpWrite}},
			[]flatAccess{{14, store.OpModified}},
		},
		{
			"read after own write is not an input",
			[]store.FileAccess{{Seq: 1, Path: 13, Op: store.OpWrite}, {Seq: 2, Path: 13, Op: store.OpRead}},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.r.flatten(context.Background(), tt.in, group)
			if err != nil {
				t.Fatalf("flatten: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("flatten = %v, want %v", got, tt.want)
			}
		})
	}
}

// compound builds parent P with children c1 (X -> T) and c2 (T -> Y).
func compound(t *testing.T, f *fixture) (p, c1, c2, x, tmp, y int) {
	t.Helper()
	x = f.file(t, "/src/x")
	tmp = f.file(t, "/tmp/t")
	y = f.file(t, "/out/y")
	p = f.action(t, store.RootAction, "sh build.sh")
	c1 = f.action(t, p, "gen x")
	c2 = f.action(t, p, "cc t")
	f.access(t, c1, x, store.OpRead)
	f.access(t, c1, tmp, store.OpWrite)
	f.access(t, c2, tmp, store.OpRead)
	f.access(t, c2, y, store.OpWrite)
	return
}

func TestMakeActionAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	p, c1, c2, x, _, y := compound(t, f)

	if _, err := f.r.MakeActionAtomic(ctx, p); err != nil {
		t.Fatalf("MakeActionAtomic: %v", err)
	}
	want := map[int]store.OpType{x: store.OpRead, y: store.OpWrite}
	if got := opsOf(f.accesses(t, p)); !reflect.DeepEqual(got, want) {
		t.Errorf("accesses = %v, want %v", got, want)
	}
	if !f.actionTrashed(t, c1) || !f.actionTrashed(t, c2) {
		t.Error("children not trashed")
	}
	after := f.accesses(t, p)

	f.undo(t)
	if f.actionTrashed(t, c1) || f.actionTrashed(t, c2) {
		t.Error("undo left children trashed")
	}
	if got := f.accesses(t, p); len(got) != 0 {
		t.Errorf("accesses after undo = %v, want none", got)
	}

	f.redo(t)
	if got := f.accesses(t, p); !reflect.DeepEqual(got, after) {
		t.Errorf("accesses after redo = %v, want %v", got, after)
	}
}

func TestMakeActionAtomic_IntermediateReadOutside(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	p, _, _, x, tmp, y := compound(t, f)
	outside := f.action(t, store.RootAction, "cat t")
	f.access(t, outside, tmp, store.OpRead)

	if _, err := f.r.MakeActionAtomic(ctx, p); err != nil {
		t.Fatalf("MakeActionAtomic: %v", err)
	}
	want := map[int]store.OpType{x: store.OpRead, tmp: store.OpWrite, y: store.OpWrite}
	if got := opsOf(f.accesses(t, p)); !reflect.DeepEqual(got, want) {
		t.Errorf("accesses = %v, want %v", got, want)
	}
}

func TestMakeActionAtomic_Refusals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	p, c1, _, _, _, _ := compound(t, f)
	leaf := f.action(t, store.RootAction, "true")

	m, err := f.r.MakeActionAtomic(ctx, leaf)
	if err != nil {
		t.Fatalf("MakeActionAtomic(atomic): %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("atomic action: ops = %d, want 0", m.Len())
	}
	if f.h.CanUndo() {
		t.Error("no-op was recorded in history")
	}

	wantCause(t, mustFail(f.r.MakeActionAtomic(ctx, store.RootAction)), CauseInvalidAction)
	wantCause(t, mustFail(f.r.MakeActionAtomic(ctx, 999)), CauseInvalidAction)

	if err := f.s.TrashAction(ctx, p); err != nil {
		t.Fatalf("TrashAction: %v", err)
	}
	wantCause(t, mustFail(f.r.MakeActionAtomic(ctx, c1)), CauseActionIsTrashed)
}

func TestMergeActions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	a := f.file(t, "/src/a.c")
	obj := f.file(t, "/out/a.o")
	bin := f.file(t, "/out/a")
	cc := f.action(t, store.RootAction, "cc a.c")
	ld := f.action(t, store.RootAction, "ld a.o")
	f.access(t, cc, a, store.OpRead)
	f.access(t, cc, obj, store.OpWrite)
	f.access(t, ld, obj, store.OpRead)
	f.access(t, ld, bin, store.OpWrite)

	if _, err := f.r.MergeActions(ctx, []int{cc, ld}); err != nil {
		t.Fatalf("MergeActions: %v", err)
	}
	info, err := f.s.Action(ctx, cc)
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if info.Command != "cc a.c\nld a.o" {
		t.Errorf("command = %q", info.Command)
	}
	want := map[int]store.OpType{a: store.OpRead, bin: store.OpWrite}
	if got := opsOf(f.accesses(t, cc)); !reflect.DeepEqual(got, want) {
		t.Errorf("accesses = %v, want %v", got, want)
	}
	if !f.actionTrashed(t, ld) {
		t.Error("second action not trashed")
	}

	f.undo(t)
	info, _ = f.s.Action(ctx, cc)
	if info.Command != "cc a.c" || f.actionTrashed(t, ld) {
		t.Errorf("undo: command %q, ld trashed %v", info.Command, f.actionTrashed(t, ld))
	}
	if got := opsOf(f.accesses(t, cc)); !reflect.DeepEqual(got, map[int]store.OpType{a: store.OpRead, obj: store.OpWrite}) {
		t.Errorf("accesses after undo = %v", got)
	}
}

func TestMergeActions_Refusals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	p, c1, _, _, _, _ := compound(t, f)
	a := f.action(t, store.RootAction, "a")
	gone := f.action(t, store.RootAction, "gone")
	if err := f.s.TrashAction(ctx, gone); err != nil {
		t.Fatalf("TrashAction: %v", err)
	}

	tests := []struct {
		name string
		ids  []int
		want Cause
	}{
		{"single", []int{a}, CauseInvalidAction},
		{"duplicate", []int{a, a}, CauseInvalidAction},
		{"unknown", []int{a, 999}, CauseInvalidAction},
		{"trashed", []int{a, gone}, CauseActionIsTrashed},
		{"compound", []int{a, p}, CauseActionNotAtomic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCause(t, mustFail(f.r.MergeActions(ctx, tt.ids)), tt.want)
		})
	}
	if f.actionTrashed(t, c1) {
		t.Error("refused merge changed the store")
	}
}

func TestDeleteAction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	p, c1, c2, _, _, _ := compound(t, f)

	wantCause(t, mustFail(f.r.DeleteAction(ctx, c1)), CauseActionInUse)

	if _, err := f.r.DeleteAction(ctx, p); err != nil {
		t.Fatalf("DeleteAction: %v", err)
	}
	for _, c := range []int{c1, c2} {
		info, err := f.s.Action(ctx, c)
		if err != nil {
			t.Fatalf("Action(%d): %v", c, err)
		}
		if info.Parent != store.RootAction {
			t.Errorf("child %d parent = %d, want root", c, info.Parent)
		}
	}
	wantCause(t, mustFail(f.r.DeleteAction(ctx, p)), CauseActionIsTrashed)

	f.undo(t)
	if f.actionTrashed(t, p) {
		t.Error("undo left action trashed")
	}
	kids, err := f.s.ActionChildren(ctx, p)
	if err != nil {
		t.Fatalf("ActionChildren: %v", err)
	}
	if !reflect.DeepEqual(kids, []int{c1, c2}) {
		t.Errorf("children after undo = %v, want [%d %d]", kids, c1, c2)
	}
}

func TestKnownAction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	live := f.action(t, store.RootAction, "cc")
	gone := f.action(t, store.RootAction, "ld")
	if err := f.s.TrashAction(ctx, gone); err != nil {
		t.Fatalf("TrashAction: %v", err)
	}

	tests := []struct {
		name        string
		id          int
		wantOK      bool
		wantTrashed bool
	}{
		{"live", live, true, false},
		{"trashed is still known", gone, true, true},
		{"root", store.RootAction, false, false},
		{"unknown", 999, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok, err := f.r.knownAction(ctx, tt.id)
			if err != nil {
				t.Fatalf("knownAction(%d): %v", tt.id, err)
			}
			if ok != tt.wantOK || a.Trashed != tt.wantTrashed {
				t.Errorf("knownAction(%d) = ok %v trashed %v, want ok %v trashed %v",
					tt.id, ok, a.Trashed, tt.wantOK, tt.wantTrashed)
			}
		})
	}
}
