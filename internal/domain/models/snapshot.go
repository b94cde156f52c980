package models

import "time"

// SecurityValues is a point-in-time value bundle for one instrument.
type SecurityValues struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SecurityValuesSnapshot is a read-only projection of security values taken
// at a single instant. Once constructed it is never mutated; a new snapshot
// is built per work item.
type SecurityValuesSnapshot struct {
	at     time.Time
	values map[string]SecurityValues
}

// NewSecurityValuesSnapshot copies values into an immutable snapshot.
func NewSecurityValuesSnapshot(at time.Time, values map[string]SecurityValues) *SecurityValuesSnapshot {
	copied := make(map[string]SecurityValues, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &SecurityValuesSnapshot{at: at.UTC(), values: copied}
}

// At returns the instant the snapshot was captured.
func (s *SecurityValuesSnapshot) At() time.Time { return s.at }

// Get returns the values for symbol, if present.
func (s *SecurityValuesSnapshot) Get(symbol string) (SecurityValues, bool) {
	v, ok := s.values[symbol]
	return v, ok
}

// Len returns the number of instruments in the snapshot.
func (s *SecurityValuesSnapshot) Len() int { return len(s.values) }

// Symbols returns the instrument identifiers present in the snapshot.
func (s *SecurityValuesSnapshot) Symbols() []string {
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	return out
}

// WorkItem is the unit of work crossing from the producer to the consumer:
// a frontier timestamp, the market snapshot captured at that instant, and
// zero or more newly generated insights.
type WorkItem struct {
	FrontierTime time.Time
	Snapshot     *SecurityValuesSnapshot
	Insights     *InsightCollection // may be nil for snapshot-only items
}
