package usecase

import (
	"time"

	"AlphaPipe/internal/domain/models"
)

// MomentumGenerator emits a directional price insight when the return over
// its lookback window crosses the configured threshold.
type MomentumGenerator struct {
	lookback  int
	threshold float64
	period    time.Duration

	prices map[string][]float64
}

func NewMomentumGenerator(lookback int, threshold float64, period time.Duration) *MomentumGenerator {
	if lookback < 2 {
		lookback = 2
	}
	return &MomentumGenerator{
		lookback:  lookback,
		threshold: threshold,
		period:    period,
		prices:    make(map[string][]float64),
	}
}

func (g *MomentumGenerator) Name() string { return "momentum" }

func (g *MomentumGenerator) OnValues(now time.Time, v models.SecurityValues) []*models.Insight {
	window := append(g.prices[v.Symbol], v.Price)
	if len(window) > g.lookback {
		window = window[len(window)-g.lookback:]
	}
	g.prices[v.Symbol] = window

	if len(window) < g.lookback {
		return nil
	}
	oldest := window[0]
	if oldest == 0 {
		return nil
	}

	ret := (v.Price - oldest) / oldest
	dir := models.DirectionFlat
	switch {
	case ret >= g.threshold:
		dir = models.DirectionUp
	case ret <= -g.threshold:
		dir = models.DirectionDown
	default:
		return nil
	}

	in := models.NewInsight(v.Symbol, models.InsightTypePrice, dir, g.period, now, g.Name())
	in.Magnitude = abs(ret)
	return []*models.Insight{in}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
