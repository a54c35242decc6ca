package resolver

import (
	"sync"

	"github.com/google/uuid"
)

// Trace records how a resolution arrived at its answer. It exists purely
// for operational diagnostics; nothing in the pipeline reads it back, so it
// can never change the returned results.
type Trace struct {
	ID            string            `json:"id"`
	Query         string            `json:"query"`
	ParsedTitle   string            `json:"parsed_title"`
	ParsedArtist  string            `json:"parsed_artist,omitempty"`
	Strategies    map[string]int    `json:"strategies"` // candidates contributed per strategy
	FilterStage   string            `json:"filter_stage"`
	Scores        []TraceScore      `json:"scores,omitempty"`
	MustInclude   []string          `json:"must_include,omitempty"` // protected work keys
	ModeRationale string            `json:"mode_rationale"`
	Validation    map[string]string `json:"validation,omitempty"`

	mu sync.Mutex
}

// TraceScore is one candidate's scoring breakdown.
type TraceScore struct {
	ID    string         `json:"id,omitempty"`
	Title string         `json:"title"`
	Rules map[string]int `json:"rules,omitempty"`
	Total int            `json:"total"`
}

// newTrace creates an empty trace for a query.
func newTrace(query string) *Trace {
	return &Trace{
		ID:         uuid.NewString(),
		Query:      query,
		Strategies: make(map[string]int),
		Validation: make(map[string]string),
	}
}

// AddStrategy records candidates contributed by a discovery strategy.
// Safe for concurrent use; discovery strategies report from goroutines.
func (t *Trace) AddStrategy(name string, count int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Strategies[name] += count
}

// SetValidation records a validation/rerank note.
func (t *Trace) SetValidation(key, value string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Validation[key] = value
}
