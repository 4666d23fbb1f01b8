package model

import "time"

// JournalState marks how far a named journal has been written and by which run.
type JournalState struct {
	Name      string    `json:"name"`
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario,omitempty"`
	LastSeq   uint64    `json:"last_seq"`
	UpdatedAt time.Time `json:"updated_at"`
}
