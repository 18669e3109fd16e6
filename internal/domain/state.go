package domain

import "time"

// State is the checkpoint persisted between runs.
// Every record before Offset has resolved, successfully or not.
type State struct {
	InputPath string    `json:"input_path"`
	Offset    int64     `json:"offset"`
	Records   int64     `json:"records"`
	Succeeded int64     `json:"succeeded"`
	Failed    int64     `json:"failed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResumeOffset returns where to resume reading path. A checkpoint taken
// for a different input starts over.
func (s State) ResumeOffset(path string) int64 {
	if s.InputPath != path {
		return 0
	}
	return s.Offset
}

// Advance moves the checkpoint to offset after resolving records.
func (s *State) Advance(offset int64, succeeded, failed int64) {
	s.Offset = offset
	s.Succeeded += succeeded
	s.Failed += failed
	s.Records += succeeded + failed
}
