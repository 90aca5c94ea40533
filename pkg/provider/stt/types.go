package stt

import "time"

// Result is the recognition output for one file.
type Result struct {
	// Text is the best hypothesis. Empty when no speech was detected.
	Text string

	// Words holds word-level timing when the backend provides it.
	// May be nil.
	Words []WordDetail

	// Alternatives holds additional hypotheses, best first, excluding Text.
	Alternatives []string
}

// Empty reports whether the result carries no recognized speech.
func (r *Result) Empty() bool {
	return r == nil || (r.Text == "" && len(r.Words) == 0)
}

// WordDetail holds per-word metadata.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}
