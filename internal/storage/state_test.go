package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"lpFarm/internal/model"
)

func TestFileStateStore(t *testing.T) {
	ctx := context.Background()
	s := &FileStateStore{Path: filepath.Join(t.TempDir(), "state", "journal.json")}

	if _, ok, err := s.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty state, ok=%v err=%v", ok, err)
	}
	want := model.JournalState{Name: "journal", RunID: "run-1", Scenario: "reference.yaml", LastSeq: 42}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.LastSeq != 42 || got.RunID != "run-1" || got.Scenario != "reference.yaml" {
		t.Fatalf("unexpected state %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be stamped")
	}

	var disabled *FileStateStore
	if err := disabled.Save(ctx, want); err != nil {
		t.Fatalf("nil store save: %v", err)
	}
}

func TestFileStateStoreRejectsRewind(t *testing.T) {
	ctx := context.Background()
	s := &FileStateStore{Path: filepath.Join(t.TempDir(), "journal.json")}

	if err := s.Save(ctx, model.JournalState{RunID: "run-1", LastSeq: 10}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, model.JournalState{RunID: "run-1", LastSeq: 9}); !errors.Is(err, ErrStaleState) {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}
	if err := s.Save(ctx, model.JournalState{RunID: "run-2", LastSeq: 3}); err != nil {
		t.Fatalf("new run should reset the sequence: %v", err)
	}
	got, _, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.RunID != "run-2" || got.LastSeq != 3 {
		t.Fatalf("unexpected state %+v", got)
	}
}
