package service

import (
	"time"

	"AlphaPipe/internal/domain/models"
)

// InsightContext is per-insight analysis state owned exclusively by the
// engine. Extensions mutate the score fields in place during a step; the
// engine tracks dirtiness and hands updated contexts to the flush logic.
type InsightContext struct {
	Insight        *models.Insight
	DirectionScore float64
	MagnitudeScore float64
	ScoreFinalized bool

	// EntryPrice is the instrument price at generation time, captured on
	// first sight by the scoring extension. Zero until then.
	EntryPrice float64

	dirty bool
}

// MarkDirty flags the context as updated since the last flush read-out.
func (c *InsightContext) MarkDirty() { c.dirty = true }

// Dirty reports whether the context changed since the last read-out.
func (c *InsightContext) Dirty() bool { return c.dirty }

// ClearDirty resets the updated flag. Only the engine's flush read-out
// calls this.
func (c *InsightContext) ClearDirty() { c.dirty = false }

// ToScored projects the context into its wire/persistence shape.
func (c *InsightContext) ToScored() models.ScoredInsight {
	i := c.Insight
	return models.ScoredInsight{
		ID:             i.ID.String(),
		Symbol:         i.Symbol,
		Type:           i.Type,
		Direction:      i.Direction.String(),
		Magnitude:      i.Magnitude,
		Confidence:     i.Confidence,
		Period:         i.Period,
		GeneratedAt:    i.GeneratedAt,
		CloseTime:      i.CloseTime(),
		Source:         i.Source,
		DirectionScore: c.DirectionScore,
		MagnitudeScore: c.MagnitudeScore,
		ScoreFinalized: c.ScoreFinalized,
	}
}

// Extension is a pluggable capability invoked once per engine step to
// score, aggregate, or sample insights. Extensions run sequentially in
// registration order and must not remove insights.
type Extension interface {
	Name() string

	// InitializeForRange is broadcast once before the first step.
	InitializeForRange(start, end, current time.Time)

	// Step advances the extension against the frontier time, the snapshot
	// captured for this work item, and the full history as of now.
	Step(frontier time.Time, snapshot *models.SecurityValuesSnapshot, history []*InsightContext)
}
