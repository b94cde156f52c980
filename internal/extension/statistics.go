package extension

import (
	"sync"
	"time"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/domain/service"
)

// Statistics maintains the process-wide RuntimeStatistics aggregate. It is
// written only during Step (single consumer goroutine) but may be read at
// any time by status reporting, so reads go through a mutex-guarded
// copy-out rather than exposing the live struct.
type Statistics struct {
	mu    sync.RWMutex
	stats models.RuntimeStatistics
}

func NewStatistics() *Statistics { return &Statistics{} }

func (s *Statistics) Name() string { return "statistics" }

func (s *Statistics) InitializeForRange(start, end, current time.Time) {
	s.mu.Lock()
	s.stats = models.RuntimeStatistics{FrontierTime: current}
	s.mu.Unlock()
}

func (s *Statistics) Step(frontier time.Time, snapshot *models.SecurityValuesSnapshot, history []*service.InsightContext) {
	next := models.RuntimeStatistics{FrontierTime: frontier}

	var dirSum, magSum float64
	for _, ictx := range history {
		next.TotalInsights++
		if ictx.ScoreFinalized {
			next.ClosedInsights++
		} else {
			next.OpenInsights++
		}
		switch ictx.Insight.Direction {
		case models.DirectionUp:
			next.UpInsights++
		case models.DirectionDown:
			next.DownInsights++
		default:
			next.FlatInsights++
		}
		dirSum += ictx.DirectionScore
		magSum += ictx.MagnitudeScore
	}
	if next.TotalInsights > 0 {
		next.MeanDirectionScore = dirSum / float64(next.TotalInsights)
		next.MeanMagnitudeScore = magSum / float64(next.TotalInsights)
	}

	s.mu.Lock()
	s.stats = next
	s.mu.Unlock()
}

// Snapshot returns a copy of the current aggregate.
func (s *Statistics) Snapshot() models.RuntimeStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
