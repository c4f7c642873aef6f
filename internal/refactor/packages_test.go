package refactor

import (
	"context"
	"errors"
	"testing"

	"github.com/papapumpkin/buildgraph/internal/store"
)

func TestNewPackage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	app := f.pkg(t, "app")

	if got, err := f.s.LookupPackage(ctx, "app"); err != nil || got != app {
		t.Fatalf("LookupPackage = %d, %v; want %d", got, err, app)
	}
	_, err := f.r.NewPackage(ctx, "app", store.RootFolder)
	wantCause(t, err, CausePackageNameInUse)
	_, err = f.r.NewPackage(ctx, " ", store.RootFolder)
	wantCause(t, err, CauseInvalidPackage)
	_, err = f.r.NewPackage(ctx, "inner", store.ImportPackage)
	wantCause(t, err, CauseInvalidPackage)

	f.undo(t)
	if _, err := f.s.LookupPackage(ctx, "app"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("after undo LookupPackage err = %v, want ErrNotFound", err)
	}
}

func TestRenameAndMovePackage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	outer, err := f.r.NewFolder(ctx, "outer", store.RootFolder)
	if err != nil {
		t.Fatalf("NewFolder: %v", err)
	}
	inner, err := f.r.NewFolder(ctx, "inner", outer)
	if err != nil {
		t.Fatalf("NewFolder: %v", err)
	}
	app := f.pkg(t, "app")
	f.pkg(t, "taken")

	if _, err := f.r.RenamePackage(ctx, app, "service"); err != nil {
		t.Fatalf("RenamePackage: %v", err)
	}
	if p, _ := f.s.Package(ctx, app); p.Name != "service" {
		t.Errorf("name = %q", p.Name)
	}
	wantCause(t, mustFail(f.r.RenamePackage(ctx, app, "taken")), CausePackageNameInUse)
	wantCause(t, mustFail(f.r.RenamePackage(ctx, store.ImportPackage, "x")), CauseInvalidPackage)

	if _, err := f.r.MovePackage(ctx, app, inner); err != nil {
		t.Fatalf("MovePackage: %v", err)
	}
	if p, _ := f.s.Package(ctx, app); p.Parent != inner {
		t.Errorf("parent = %d, want %d", p.Parent, inner)
	}
	wantCause(t, mustFail(f.r.MovePackage(ctx, outer, inner)), CauseInvalidPackage)
	wantCause(t, mustFail(f.r.MovePackage(ctx, outer, outer)), CauseInvalidPackage)
	wantCause(t, mustFail(f.r.MovePackage(ctx, outer, app)), CauseInvalidPackage)

	f.undo(t)
	if p, _ := f.s.Package(ctx, app); p.Parent != store.RootFolder {
		t.Errorf("undo: parent = %d", p.Parent)
	}
}

func TestSetPackageRoots(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	src := f.dir(t, "/src")
	gen := f.dir(t, "/gen")
	other := f.dir(t, "/other")
	h := f.file(t, "/src/a.h")
	app := f.pkg(t, "app")

	wantCause(t, mustFail(f.r.SetPackageRoots(ctx, app, h, gen)), CauseInvalidPath)
	if _, err := f.r.SetPackageRoots(ctx, app, src, gen); err != nil {
		t.Fatalf("SetPackageRoots: %v", err)
	}
	if _, err := f.r.Move(ctx, app, []store.Member{{Type: store.MemberFile, ID: h}}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	re := wantCause(t, mustFail(f.r.SetPackageRoots(ctx, app, other, gen)), CausePathOutOfRange)
	if len(re.PathIDs) != 1 || re.PathIDs[0] != h {
		t.Errorf("PathIDs = %v, want [%d]", re.PathIDs, h)
	}
	p, _ := f.s.Package(ctx, app)
	if p.SrcRoot != src || p.GenRoot != gen {
		t.Errorf("roots = %d/%d, want %d/%d", p.SrcRoot, p.GenRoot, src, gen)
	}
}

func TestRemovePackage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	x := f.file(t, "/src/x")
	full := f.pkg(t, "full")
	empty := f.pkg(t, "empty")
	if _, err := f.r.Move(ctx, full, []store.Member{{Type: store.MemberFile, ID: x}}); err != nil {
		t.Fatalf("Move: %v", err)
	}

	wantCause(t, mustFail(f.r.RemovePackage(ctx, full)), CausePackageNotEmpty)
	wantCause(t, mustFail(f.r.RemovePackage(ctx, store.ImportPackage)), CauseInvalidPackage)
	wantCause(t, mustFail(f.r.RemovePackage(ctx, store.RootFolder)), CauseInvalidPackage)

	if _, err := f.r.RemovePackage(ctx, empty); err != nil {
		t.Fatalf("RemovePackage: %v", err)
	}
	wantCause(t, mustFail(f.r.RemovePackage(ctx, empty)), CauseInvalidPackage)
	f.undo(t)
	if p, _ := f.s.Package(ctx, empty); p.Trashed {
		t.Error("undo left package trashed")
	}
}
