package repository

import (
	"sync"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
)

// SecurityValuesStore holds the resident point-in-time state of every
// tracked instrument. The market feed writes into it; the snapshot
// provider projects immutable copies out of it.
type SecurityValuesStore struct {
	mu     sync.RWMutex
	values map[string]models.SecurityValues
}

func NewSecurityValuesStore() *SecurityValuesStore {
	return &SecurityValuesStore{values: make(map[string]models.SecurityValues)}
}

// Update records the latest values for an instrument.
func (s *SecurityValuesStore) Update(v models.SecurityValues) {
	s.mu.Lock()
	s.values[v.Symbol] = v
	s.mu.Unlock()
}

// Symbols returns the identifiers currently resident in the store.
func (s *SecurityValuesStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	return out
}

// Snapshot projects the requested instruments into an immutable snapshot.
// Unknown identifiers are omitted rather than failing the whole snapshot.
// No I/O: purely a copy of already-resident state.
func (s *SecurityValuesStore) Snapshot(symbols []string, at time.Time) *models.SecurityValuesSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	picked := make(map[string]models.SecurityValues, len(symbols))
	for _, sym := range symbols {
		if v, ok := s.values[sym]; ok {
			picked[sym] = v
		}
	}
	return models.NewSecurityValuesSnapshot(at, picked)
}

var _ domrepo.SnapshotProvider = (*SecurityValuesStore)(nil)
