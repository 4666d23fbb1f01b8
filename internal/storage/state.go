package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lpFarm/internal/model"
)

// ErrStaleState is returned when a save would move a run's journal backwards.
var ErrStaleState = errors.New("journal state behind stored sequence")

// StateStore persists how far a journal has been written.
type StateStore interface {
	Load(ctx context.Context) (model.JournalState, bool, error)
	Save(ctx context.Context, st model.JournalState) error
}

// FileStateStore keeps the journal state in a local JSON file.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (model.JournalState, bool, error) {
	var st model.JournalState
	if s == nil || s.Path == "" {
		return st, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, false, nil
		}
		return st, false, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, false, fmt.Errorf("parse state %s: %w", s.Path, err)
	}
	return st, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, st model.JournalState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	prev, ok, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if ok && prev.RunID == st.RunID && st.LastSeq < prev.LastSeq {
		return fmt.Errorf("%w: run %s at %d, got %d", ErrStaleState, st.RunID, prev.LastSeq, st.LastSeq)
	}

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
