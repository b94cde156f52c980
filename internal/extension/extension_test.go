package extension

import (
	"testing"
	"time"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/domain/service"
)

func snap(at time.Time, price float64) *models.SecurityValuesSnapshot {
	return models.NewSecurityValuesSnapshot(at, map[string]models.SecurityValues{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: price, UpdatedAt: at},
	})
}

func ctxFor(insight *models.Insight) *service.InsightContext {
	return &service.InsightContext{Insight: insight}
}

func TestScoringCapturesEntryThenScores(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	insight := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, t0, "test")
	insight.Magnitude = 0.01
	ictx := ctxFor(insight)
	history := []*service.InsightContext{ictx}

	s := NewScoring()
	s.Step(t0, snap(t0, 100), history)
	if ictx.EntryPrice != 100 {
		t.Fatalf("expected entry price captured, got %v", ictx.EntryPrice)
	}
	if !ictx.Dirty() {
		t.Fatalf("expected context dirty after entry capture")
	}
	ictx.ClearDirty()

	// price moved up 0.5%: direction correct, magnitude half of predicted 1%
	t1 := t0.Add(10 * time.Second)
	s.Step(t1, snap(t1, 100.5), history)
	if ictx.DirectionScore != 1 {
		t.Fatalf("expected direction score 1, got %v", ictx.DirectionScore)
	}
	if ictx.MagnitudeScore <= 0.49 || ictx.MagnitudeScore >= 0.51 {
		t.Fatalf("expected magnitude score ~0.5, got %v", ictx.MagnitudeScore)
	}
	if !ictx.Dirty() {
		t.Fatalf("expected context dirty after score change")
	}
	if ictx.ScoreFinalized {
		t.Fatalf("expected score not finalized before close time")
	}
}

func TestScoringFinalizesAtCloseTime(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	insight := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionDown, time.Minute, t0, "test")
	ictx := ctxFor(insight)
	history := []*service.InsightContext{ictx}

	s := NewScoring()
	s.Step(t0, snap(t0, 100), history)
	s.Step(t0.Add(time.Minute), snap(t0.Add(time.Minute), 99), history)
	if !ictx.ScoreFinalized {
		t.Fatalf("expected score finalized at close time")
	}
	if ictx.DirectionScore != 1 {
		t.Fatalf("expected down prediction scored 1, got %v", ictx.DirectionScore)
	}

	// finalized contexts are left alone on later steps
	ictx.ClearDirty()
	s.Step(t0.Add(2*time.Minute), snap(t0.Add(2*time.Minute), 150), history)
	if ictx.Dirty() {
		t.Fatalf("expected finalized context untouched")
	}
}

func TestScoringSkipsUnknownInstrument(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	insight := models.NewInsight("ETHUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, t0, "test")
	ictx := ctxFor(insight)

	NewScoring().Step(t0, snap(t0, 100), []*service.InsightContext{ictx})
	if ictx.EntryPrice != 0 || ictx.Dirty() {
		t.Fatalf("expected context untouched when instrument missing from snapshot")
	}
}

func TestStatisticsSnapshotCopyOut(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	up := ctxFor(models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, t0, "test"))
	up.DirectionScore = 1
	down := ctxFor(models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionDown, time.Minute, t0, "test"))
	down.ScoreFinalized = true

	st := NewStatistics()
	st.InitializeForRange(t0, t0.Add(time.Hour), t0)
	st.Step(t0, snap(t0, 100), []*service.InsightContext{up, down})

	got := st.Snapshot()
	if got.TotalInsights != 2 || got.OpenInsights != 1 || got.ClosedInsights != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if got.UpInsights != 1 || got.DownInsights != 1 {
		t.Fatalf("unexpected direction breakdown: %+v", got)
	}
	if got.MeanDirectionScore != 0.5 {
		t.Fatalf("expected mean direction score 0.5, got %v", got.MeanDirectionScore)
	}

	// mutating the returned copy must not affect the aggregate
	got.TotalInsights = 99
	if st.Snapshot().TotalInsights != 2 {
		t.Fatalf("snapshot leaked live state")
	}
}

func TestChartingBacktestSamplesEveryStep(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	c := NewCharting(false, time.Second)
	c.InitializeForRange(t0, t0.Add(time.Hour), t0)

	for i := 0; i < 5; i++ {
		at := t0.Add(time.Duration(i) * 100 * time.Millisecond)
		c.Step(at, snap(at, 100), nil)
	}
	if got := len(c.Samples(0)); got != 5 {
		t.Fatalf("expected 5 samples in backtest mode, got %d", got)
	}
}

func TestChartingLiveThrottlesSamples(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	c := NewCharting(true, time.Second)
	c.InitializeForRange(t0, t0.Add(time.Hour), t0)

	// 10 steps 200ms apart within 2s: only one sample per second
	for i := 0; i < 10; i++ {
		at := t0.Add(time.Duration(i) * 200 * time.Millisecond)
		c.Step(at, snap(at, 100), nil)
	}
	if got := len(c.Samples(0)); got != 2 {
		t.Fatalf("expected 2 throttled samples, got %d", got)
	}
}
