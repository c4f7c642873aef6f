package journal

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewEmitter_ErrorOnBadPath(t *testing.T) {
	t.Parallel()
	_, err := NewEmitter("/nonexistent/dir/journal.jsonl")
	if err == nil {
		t.Fatal("expected error for bad path, got nil")
	}
	if !strings.Contains(err.Error(), "journal: open") {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}

func TestEmit_RoundTripsThroughReadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	em, err := NewEmitter(path)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: ts, Kind: KindApplied, EntryID: "e1", Label: "delete path 4", Changed: true},
		{Timestamp: ts.Add(time.Minute), Kind: KindUndone, EntryID: "e1", Changed: true},
		{Timestamp: ts.Add(2 * time.Minute), Kind: KindFailed, EntryID: "e2", Error: "boom"},
	}
	for _, evt := range events {
		if err := em.Emit(evt); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if err := em.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i := range got {
		if got[i].Kind != events[i].Kind || got[i].EntryID != events[i].EntryID {
			t.Errorf("event %d = %+v; want %+v", i, got[i], events[i])
		}
	}
	if got[2].Error != "boom" {
		t.Errorf("error field = %q", got[2].Error)
	}
}

func TestEmit_ConcurrentSafety(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "concurrent.jsonl")

	em, err := NewEmitter(path)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func(idx int) {
			defer wg.Done()
			if err := em.Emit(Event{Timestamp: time.Now(), Kind: KindApplied, EntryID: "c"}); err != nil {
				t.Errorf("Emit from goroutine %d: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()
	if err := em.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != n {
		t.Fatalf("expected %d events, got %d", n, len(got))
	}
}

func TestDecode_ReportsBadLine(t *testing.T) {
	t.Parallel()
	in := `{"kind":"applied","entry":"a"}` + "\n\n" + "not json\n"
	got, err := Decode(strings.NewReader(in))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("Decode error = %v; want line 3", err)
	}
	if len(got) != 1 {
		t.Errorf("decoded %d events before failure; want 1", len(got))
	}
}

func TestReadFile_Missing(t *testing.T) {
	t.Parallel()
	got, err := ReadFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil || got != nil {
		t.Errorf("ReadFile(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestNilEmitter_NoOp(t *testing.T) {
	t.Parallel()
	var em *Emitter
	if err := em.Emit(Event{Kind: KindApplied}); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := em.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}
