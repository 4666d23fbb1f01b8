package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"lpFarm/internal/model"
)

func TestJsonlStorageAppendsAndReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "journal.jsonl")
	s := NewJsonlStorage(path)

	first := []model.LedgerEvent{
		{RunID: "r", Seq: 1, Timestamp: 10, Op: "add-route", EventName: model.EventRouteAdded, Data: []byte(`{"path":["0x1"],"active":true}`)},
		{RunID: "r", Seq: 2, Timestamp: 10, Op: "stake", EventName: model.EventStaked, Data: []byte(`{"user":"0x2"}`)},
	}
	second := []model.LedgerEvent{
		{RunID: "r", Seq: 3, Timestamp: 20, Op: "exit", EventName: model.EventReverted, Error: "withdraw locked"},
	}
	if err := s.PutEvents(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := s.PutEvents(nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if err := s.PutEvents(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := append(append([]model.LedgerEvent(nil), first...), second...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("journal mismatch:\n got %+v\nwant %+v", got, want)
	}
}

type failingSink struct{}

func (failingSink) PutEvents([]model.LedgerEvent) error { return errors.New("disk full") }

func TestMultiSinkStopsAtFirstError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	sink := MultiSink{failingSink{}, NewJsonlStorage(path)}
	if err := sink.PutEvents([]model.LedgerEvent{{Seq: 1}}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ReadEvents(path); err == nil {
		t.Fatalf("journal should not exist")
	}
}
