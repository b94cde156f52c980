package models

import (
	"time"

	"github.com/google/uuid"
)

// Direction is the predicted direction of an instrument's price.
type Direction int

const (
	DirectionFlat Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "flat"
	}
}

// InsightType classifies what an insight predicts.
type InsightType string

const (
	InsightTypePrice      InsightType = "price"
	InsightTypeVolatility InsightType = "volatility"
)

// Insight is a directional prediction about an instrument, immutable once
// published. Scoring state lives in the engine's InsightContext, not here.
type Insight struct {
	ID          uuid.UUID     `json:"id"`
	Symbol      string        `json:"symbol"`
	Type        InsightType   `json:"type"`
	Direction   Direction     `json:"direction"`
	Magnitude   float64       `json:"magnitude,omitempty"`
	Confidence  float64       `json:"confidence,omitempty"`
	Period      time.Duration `json:"period"`
	GeneratedAt time.Time     `json:"generated_at"`
	Source      string        `json:"source,omitempty"`
}

// NewInsight creates an insight with a fresh identity. generatedAt is
// normalized to UTC.
func NewInsight(symbol string, typ InsightType, dir Direction, period time.Duration, generatedAt time.Time, source string) *Insight {
	return &Insight{
		ID:          uuid.New(),
		Symbol:      symbol,
		Type:        typ,
		Direction:   dir,
		Period:      period,
		GeneratedAt: generatedAt.UTC(),
		Source:      source,
	}
}

// CloseTime is the end of the insight's validity window.
func (i *Insight) CloseTime() time.Time {
	return i.GeneratedAt.Add(i.Period)
}

// IsExpired reports whether the validity window has closed as of t.
func (i *Insight) IsExpired(t time.Time) bool {
	return !t.Before(i.CloseTime())
}

// SameSignal reports semantic equality for de-duplication: same target,
// type, and direction. Identity, timestamps, and magnitudes are ignored.
func (i *Insight) SameSignal(other *Insight) bool {
	if other == nil {
		return false
	}
	return i.Symbol == other.Symbol && i.Type == other.Type && i.Direction == other.Direction
}

// InsightCollection is an ordered batch of insights sharing one generation
// timestamp. Insertion order is preserved for replay determinism.
type InsightCollection struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Insights    []*Insight `json:"insights"`
}

func NewInsightCollection(generatedAt time.Time, insights ...*Insight) *InsightCollection {
	return &InsightCollection{GeneratedAt: generatedAt.UTC(), Insights: insights}
}

// IsEmpty reports whether the collection carries no insights.
func (c *InsightCollection) IsEmpty() bool {
	return c == nil || len(c.Insights) == 0
}
