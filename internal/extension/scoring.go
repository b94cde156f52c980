package extension

import (
	"math"
	"time"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/domain/service"
)

// Scoring grades open insights against the current snapshot on every step.
// The entry price is captured the first time the insight's instrument shows
// up in a snapshot; scores are finalized once the validity window closes.
type Scoring struct{}

func NewScoring() *Scoring { return &Scoring{} }

func (s *Scoring) Name() string { return "scoring" }

func (s *Scoring) InitializeForRange(start, end, current time.Time) {}

func (s *Scoring) Step(frontier time.Time, snapshot *models.SecurityValuesSnapshot, history []*service.InsightContext) {
	for _, ictx := range history {
		if ictx.ScoreFinalized {
			continue
		}
		insight := ictx.Insight

		values, ok := snapshot.Get(insight.Symbol)
		if !ok {
			// instrument absent from this snapshot; try again next step
			continue
		}

		if ictx.EntryPrice == 0 {
			ictx.EntryPrice = values.Price
			ictx.MarkDirty()
			continue
		}

		direction, magnitude := score(insight, ictx.EntryPrice, values.Price)
		if direction != ictx.DirectionScore || magnitude != ictx.MagnitudeScore {
			ictx.DirectionScore = direction
			ictx.MagnitudeScore = magnitude
			ictx.MarkDirty()
		}

		if insight.IsExpired(frontier) {
			ictx.ScoreFinalized = true
			ictx.MarkDirty()
		}
	}
}

// flatBand is the relative move below which price action counts as flat.
const flatBand = 1e-4

func score(insight *models.Insight, entry, current float64) (direction, magnitude float64) {
	if entry == 0 {
		return 0, 0
	}
	change := (current - entry) / entry

	var actual models.Direction
	switch {
	case change > flatBand:
		actual = models.DirectionUp
	case change < -flatBand:
		actual = models.DirectionDown
	default:
		actual = models.DirectionFlat
	}

	if actual == insight.Direction {
		direction = 1
	}

	if insight.Magnitude > 0 {
		magnitude = math.Abs(change) / insight.Magnitude
		if magnitude > 1 {
			magnitude = 1
		}
		if actual != insight.Direction && insight.Direction != models.DirectionFlat {
			magnitude = 0
		}
	}
	return direction, magnitude
}
