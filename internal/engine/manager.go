package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/domain/service"
	applogger "AlphaPipe/pkg/logger"
)

var (
	// ErrNotInitialized is returned when Step runs before InitializeForRange.
	ErrNotInitialized = errors.New("engine: step before initialize")
	// ErrAlreadyInitialized is returned on a second InitializeForRange call.
	ErrAlreadyInitialized = errors.New("engine: already initialized")
	// ErrExtensionAfterInit is returned when AddExtension runs after
	// InitializeForRange; the extension chain is fixed once the run starts.
	ErrExtensionAfterInit = errors.New("engine: extension registered after initialize")
	// ErrNonMonotonicStep is returned when a step's frontier time precedes
	// a previously seen frontier time.
	ErrNonMonotonicStep = errors.New("engine: non-monotonic frontier time")
)

// InsightManager owns the full insight history, advances the logical
// frontier time, and drives the extension chain on each step. It has
// exactly one writer (the pipeline's background consumer) and needs no
// internal locking.
type InsightManager struct {
	log        *applogger.Logger
	extensions []service.Extension
	history    []*service.InsightContext

	frontier    time.Time
	stepped     bool
	initialized bool
}

func NewInsightManager(log *applogger.Logger) *InsightManager {
	return &InsightManager{log: log.With("engine")}
}

// AddExtension registers a capability invoked on every step. Registration
// order is preserved and significant; registration is only valid before
// InitializeForRange.
func (m *InsightManager) AddExtension(ext service.Extension) error {
	if m.initialized {
		return ErrExtensionAfterInit
	}
	m.extensions = append(m.extensions, ext)
	return nil
}

// InitializeForRange broadcasts one-time setup to all extensions. Must be
// called exactly once per run, before the first step.
func (m *InsightManager) InitializeForRange(start, end, current time.Time) error {
	if m.initialized {
		return ErrAlreadyInitialized
	}
	m.initialized = true
	for _, ext := range m.extensions {
		ext.InitializeForRange(start, end, current)
	}
	m.log.Info("initialized",
		applogger.Time("start", start),
		applogger.Time("end", end),
		applogger.Int("extensions", len(m.extensions)),
	)
	return nil
}

// Step advances analysis state to frontier. New insights are registered in
// history with fresh contexts, then each extension's per-step hook runs in
// registration order. A frontier earlier than a previously seen one is a
// contract violation and is rejected.
func (m *InsightManager) Step(frontier time.Time, snapshot *models.SecurityValuesSnapshot, newInsights *models.InsightCollection) error {
	if !m.initialized {
		return ErrNotInitialized
	}
	if m.stepped && frontier.Before(m.frontier) {
		return fmt.Errorf("%w: step at %s after %s", ErrNonMonotonicStep, frontier, m.frontier)
	}

	if !newInsights.IsEmpty() {
		for _, insight := range newInsights.Insights {
			ictx := &service.InsightContext{Insight: insight}
			ictx.MarkDirty()
			m.history = append(m.history, ictx)
		}
	}

	for _, ext := range m.extensions {
		ext.Step(frontier, snapshot, m.history)
	}

	m.frontier = frontier
	m.stepped = true
	return nil
}

// GetUpdatedContexts returns all contexts marked dirty since the last call,
// then clears their dirty flag. Consume-once: a second call with no
// intervening step returns an empty set.
func (m *InsightManager) GetUpdatedContexts() []*service.InsightContext {
	var updated []*service.InsightContext
	for _, ictx := range m.history {
		if ictx.Dirty() {
			updated = append(updated, ictx)
			ictx.ClearDirty()
		}
	}
	return updated
}

// AllInsights returns the full history ordered by generation time ascending,
// with insertion order breaking ties.
func (m *InsightManager) AllInsights() []*service.InsightContext {
	out := make([]*service.InsightContext, len(m.history))
	copy(out, m.history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Insight.GeneratedAt.Before(out[j].Insight.GeneratedAt)
	})
	return out
}

// AllScored projects the full ordered history into its persistence shape.
func (m *InsightManager) AllScored() []models.ScoredInsight {
	all := m.AllInsights()
	out := make([]models.ScoredInsight, len(all))
	for i, ictx := range all {
		out[i] = ictx.ToScored()
	}
	return out
}

// Frontier returns the logical timestamp up to which the engine has
// processed all available information.
func (m *InsightManager) Frontier() time.Time { return m.frontier }

// InsightCount returns the size of the history.
func (m *InsightManager) InsightCount() int { return len(m.history) }
