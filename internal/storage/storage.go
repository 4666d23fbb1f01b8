package storage

import "lpFarm/internal/model"

// Sink receives committed ledger events.
type Sink interface {
	PutEvents(events []model.LedgerEvent) error
}

// MultiSink fans events out to several sinks, stopping at the first error.
type MultiSink []Sink

func (m MultiSink) PutEvents(events []model.LedgerEvent) error {
	for _, s := range m {
		if err := s.PutEvents(events); err != nil {
			return err
		}
	}
	return nil
}
