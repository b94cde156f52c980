package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/repository"
)

type capturePipeline struct {
	NoopPipeline
	mu          sync.Mutex
	collections []*models.InsightCollection
}

func (c *capturePipeline) OnInsightsGenerated(at time.Time, insights *models.InsightCollection) {
	c.mu.Lock()
	c.collections = append(c.collections, insights)
	c.mu.Unlock()
}

func (c *capturePipeline) received() []*models.Insight {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.Insight
	for _, coll := range c.collections {
		out = append(out, coll.Insights...)
	}
	return out
}

type scriptedGenerator struct {
	name    string
	signals []*models.Insight
	idx     int
}

func (g *scriptedGenerator) Name() string { return g.name }

func (g *scriptedGenerator) OnValues(now time.Time, v models.SecurityValues) []*models.Insight {
	if g.idx >= len(g.signals) {
		return nil
	}
	in := g.signals[g.idx]
	g.idx++
	if in == nil {
		return nil
	}
	return []*models.Insight{in}
}

func mkInsight(symbol string, dir models.Direction, at time.Time) *models.Insight {
	return models.NewInsight(symbol, models.InsightTypePrice, dir, time.Minute, at, "scripted")
}

func TestRunnerSuppressesConsecutiveDuplicates(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	gen := &scriptedGenerator{name: "g1", signals: []*models.Insight{
		mkInsight("BTCUSDT", models.DirectionUp, start),
		mkInsight("BTCUSDT", models.DirectionUp, start.Add(time.Second)),   // repeat: dropped
		mkInsight("BTCUSDT", models.DirectionDown, start.Add(2*time.Second)), // flipped: kept
		mkInsight("BTCUSDT", models.DirectionUp, start.Add(3*time.Second)),   // flipped back: kept
		mkInsight("BTCUSDT", models.DirectionUp, start.Add(4*time.Second)),   // repeat: dropped
	}}

	pipe := &capturePipeline{}
	runner := NewAlgorithmRunner(repository.NewSecurityValuesStore(), pipe, noopMetrics{}, testLogger(t), gen)

	for i := 0; i < len(gen.signals); i++ {
		at := start.Add(time.Duration(i) * time.Second)
		v := models.SecurityValues{Symbol: "BTCUSDT", Price: 100 + float64(i), UpdatedAt: at}
		if err := runner.Process(context.Background(), v); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	got := pipe.received()
	if len(got) != 3 {
		t.Fatalf("kept %d insights, want 3", len(got))
	}
	wantDirs := []models.Direction{models.DirectionUp, models.DirectionDown, models.DirectionUp}
	for i, in := range got {
		if in.Direction != wantDirs[i] {
			t.Fatalf("insight %d direction = %s, want %s", i, in.Direction, wantDirs[i])
		}
	}
}

func TestRunnerDedupIsPerGenerator(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	g1 := &scriptedGenerator{name: "g1", signals: []*models.Insight{
		mkInsight("BTCUSDT", models.DirectionUp, start),
	}}
	g2 := &scriptedGenerator{name: "g2", signals: []*models.Insight{
		mkInsight("BTCUSDT", models.DirectionUp, start),
	}}

	pipe := &capturePipeline{}
	runner := NewAlgorithmRunner(repository.NewSecurityValuesStore(), pipe, noopMetrics{}, testLogger(t), g1, g2)

	v := models.SecurityValues{Symbol: "BTCUSDT", Price: 100, UpdatedAt: start}
	if err := runner.Process(context.Background(), v); err != nil {
		t.Fatalf("process: %v", err)
	}

	// identical signals from distinct generators both survive
	if got := len(pipe.received()); got != 2 {
		t.Fatalf("kept %d insights, want 2", got)
	}
}

func TestRunnerUpdatesResidentState(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := repository.NewSecurityValuesStore()
	runner := NewAlgorithmRunner(store, &capturePipeline{}, noopMetrics{}, testLogger(t))

	v := models.SecurityValues{Symbol: "ETHUSDT", Price: 42, UpdatedAt: start}
	if err := runner.Process(context.Background(), v); err != nil {
		t.Fatalf("process: %v", err)
	}

	snap := store.Snapshot([]string{"ETHUSDT"}, start)
	got, ok := snap.Get("ETHUSDT")
	if !ok || got.Price != 42 {
		t.Fatalf("resident state not updated: %+v ok=%v", got, ok)
	}
}

func TestMomentumGeneratorEmitsOnThreshold(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	gen := NewMomentumGenerator(3, 0.01, time.Minute)

	prices := []float64{100, 100.2, 100.5} // +0.5% over window: below threshold
	var got []*models.Insight
	for i, p := range prices {
		at := start.Add(time.Duration(i) * time.Second)
		got = gen.OnValues(at, models.SecurityValues{Symbol: "BTCUSDT", Price: p, UpdatedAt: at})
	}
	if got != nil {
		t.Fatalf("emitted below threshold: %+v", got)
	}

	at := start.Add(3 * time.Second)
	got = gen.OnValues(at, models.SecurityValues{Symbol: "BTCUSDT", Price: 102, UpdatedAt: at})
	if len(got) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(got))
	}
	if got[0].Direction != models.DirectionUp {
		t.Fatalf("direction = %s, want up", got[0].Direction)
	}
	if got[0].Magnitude <= 0 {
		t.Fatalf("magnitude not set")
	}
}
