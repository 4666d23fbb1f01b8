package storage

import (
	"context"

	"lpFarm/internal/model"
	"lpFarm/internal/storage/postgres"
)

// DBStateStore keeps the journal state in the journal_state table under Name.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (model.JournalState, bool, error) {
	if s == nil || s.Store == nil {
		return model.JournalState{}, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, st model.JournalState) error {
	if s == nil || s.Store == nil {
		return nil
	}
	st.Name = s.Name
	return s.Store.SaveState(ctx, st)
}
