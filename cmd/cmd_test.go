package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/papapumpkin/buildgraph/internal/config"
	"github.com/papapumpkin/buildgraph/internal/journal"
	"github.com/papapumpkin/buildgraph/internal/logging"
	"github.com/papapumpkin/buildgraph/internal/store"
	"github.com/papapumpkin/buildgraph/internal/ui"
	"github.com/papapumpkin/buildgraph/internal/undo"
)

func TestCommands_Registered(t *testing.T) {
	t.Parallel()
	want := []string{
		"rm-path", "make-atomic", "merge-actions", "rm-action", "move",
		"show-files", "show-actions", "report", "catalog", "journal",
	}
	have := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("expected %q subcommand to be registered on rootCmd", name)
		}
	}
}

func TestMutatingCommands_HaveDryRun(t *testing.T) {
	t.Parallel()
	for _, c := range []string{"rm-path", "make-atomic", "merge-actions", "rm-action", "move"} {
		cmd, _, err := rootCmd.Find([]string{c})
		if err != nil {
			t.Fatalf("Find(%q): %v", c, err)
		}
		if cmd.Flags().Lookup("dry-run") == nil {
			t.Errorf("%s has no --dry-run flag", c)
		}
	}
}

func TestParseMember(t *testing.T) {
	t.Parallel()
	tests := []struct {
		arg     string
		want    store.Member
		wantErr bool
	}{
		{"f:12", store.Member{Type: store.MemberFile, ID: 12}, false},
		{"a:7", store.Member{Type: store.MemberAction, ID: 7}, false},
		{"g:3", store.Member{Type: store.MemberFileGroup, ID: 3}, false},
		{"s:2", store.Member{Type: store.MemberSubPackage, ID: 2}, false},
		{"x:1", store.Member{}, true},
		{"12", store.Member{}, true},
		{"f:abc", store.Member{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			t.Parallel()
			got, err := parseMember(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMember(%q) err = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseMember(%q) = %+v, want %+v", tt.arg, got, tt.want)
			}
		})
	}
}

func TestParseIDs(t *testing.T) {
	t.Parallel()
	ids, err := parseIDs([]string{"4", "10"})
	if err != nil || len(ids) != 2 || ids[0] != 4 || ids[1] != 10 {
		t.Errorf("parseIDs = %v, %v", ids, err)
	}
	if _, err := parseIDs([]string{"4", "x"}); err == nil {
		t.Error("parseIDs accepted a non-number")
	}
}

func testSession(t *testing.T) (*session, *bytes.Buffer) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "cmd.bgdb"), store.Options{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	s := newSession(config.Config{}, logging.Nop(), st, nil)
	var out bytes.Buffer
	s.printer = ui.NewPlain(&out, &out)
	t.Cleanup(s.Close)
	return s, &out
}

func TestIntent_DryRunUndoes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, out := testSession(t)
	id, err := s.store.AddFile(ctx, "/src/a.c")
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	err = s.intent(ctx, "rm-path /src/a.c", true, func(ctx context.Context) (*undo.Multi, error) {
		return s.r.DeletePath(ctx, id, false)
	})
	if err != nil {
		t.Fatalf("intent: %v", err)
	}
	p, err := s.store.Path(ctx, id)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if p.Trashed {
		t.Error("dry run left the path trashed")
	}
	if !strings.Contains(out.String(), "dry run") {
		t.Errorf("output = %q", out.String())
	}
	if s.history.CanUndo() {
		t.Error("dry run left an undo entry")
	}
}

func TestIntent_RefusalIsReported(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, out := testSession(t)

	err := s.intent(ctx, "rm-path /", false, func(ctx context.Context) (*undo.Multi, error) {
		return s.r.DeletePath(ctx, store.RootPath, false)
	})
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	if !strings.Contains(out.String(), "INVALID_PATH") || !strings.Contains(out.String(), "path 0  /") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSessionClose_LogsFailures(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "cmd.bgdb"), store.Options{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	em, err := journal.NewEmitter(filepath.Join(dir, "journal.jsonl"))
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	if err := em.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	s := newSession(config.Config{}, zap.New(core), st, em)
	s.Close()

	entries := logs.FilterMessage("closing journal").All()
	if len(entries) != 1 {
		t.Fatalf("got %d journal warnings, want 1 (all: %v)", len(entries), logs.All())
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
	if n := logs.FilterMessage("closing store").Len(); n != 0 {
		t.Errorf("got %d store warnings for a clean close", n)
	}
}
