package extension

import (
	"sync"
	"time"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/domain/service"
)

// Charting samples the mean-score series over the run. Backtests sample
// every step; live runs throttle to one sample per interval so the series
// stays bounded by wall time instead of tick rate.
type Charting struct {
	live     bool
	interval time.Duration

	mu         sync.Mutex
	samples    []models.ChartSample
	lastSample time.Time
}

func NewCharting(live bool, interval time.Duration) *Charting {
	if interval <= 0 {
		interval = time.Second
	}
	return &Charting{live: live, interval: interval}
}

func (c *Charting) Name() string { return "charting" }

func (c *Charting) InitializeForRange(start, end, current time.Time) {
	c.mu.Lock()
	c.samples = nil
	c.lastSample = time.Time{}
	c.mu.Unlock()
}

func (c *Charting) Step(frontier time.Time, snapshot *models.SecurityValuesSnapshot, history []*service.InsightContext) {
	if c.live && !c.lastSample.IsZero() && frontier.Sub(c.lastSample) < c.interval {
		return
	}

	var dirSum, magSum float64
	var open int64
	for _, ictx := range history {
		dirSum += ictx.DirectionScore
		magSum += ictx.MagnitudeScore
		if !ictx.ScoreFinalized {
			open++
		}
	}
	sample := models.ChartSample{Time: frontier, OpenInsights: open}
	if n := len(history); n > 0 {
		sample.DirectionScore = dirSum / float64(n)
		sample.MagnitudeScore = magSum / float64(n)
	}

	c.mu.Lock()
	c.samples = append(c.samples, sample)
	c.lastSample = frontier
	c.mu.Unlock()
}

// Samples returns a copy of the sampled series, newest last, capped at limit
// (0 means all).
func (c *Charting) Samples(limit int) []models.ChartSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.samples)
	if limit > 0 && limit < n {
		out := make([]models.ChartSample, limit)
		copy(out, c.samples[n-limit:])
		return out
	}
	out := make([]models.ChartSample, n)
	copy(out, c.samples)
	return out
}
