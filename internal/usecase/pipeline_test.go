package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/engine"
	"AlphaPipe/internal/extension"
	"AlphaPipe/internal/repository"
	applogger "AlphaPipe/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type noopMetrics struct{}

func (noopMetrics) RecordInsightsReceived(string, int) {}
func (noopMetrics) RecordStepLatency(float64)          {}
func (noopMetrics) RecordQueueDepth(string, int)       {}
func (noopMetrics) RecordFlush(string)                 {}
func (noopMetrics) RecordMessageSent(string, int)      {}
func (noopMetrics) RecordError(string)                 {}
func (noopMetrics) RecordLatency(string, float64)      {}

type captureMessaging struct {
	mu   sync.Mutex
	sent []*models.InsightUpdateMessage
}

func (c *captureMessaging) Send(ctx context.Context, msg *models.InsightUpdateMessage) error {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

func (c *captureMessaging) Close() error { return nil }

func (c *captureMessaging) messages() []*models.InsightUpdateMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.InsightUpdateMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

type capturePersistence struct {
	mu      sync.Mutex
	flushes [][]models.ScoredInsight
}

func (c *capturePersistence) Persist(ctx context.Context, insights []models.ScoredInsight) error {
	c.mu.Lock()
	cp := make([]models.ScoredInsight, len(insights))
	copy(cp, insights)
	c.flushes = append(c.flushes, cp)
	c.mu.Unlock()
	return nil
}

func (c *capturePersistence) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.ScoredInsight, error) {
	return nil, nil
}

func (c *capturePersistence) Close() error { return nil }

func (c *capturePersistence) last() []models.ScoredInsight {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.flushes) == 0 {
		return nil
	}
	return c.flushes[len(c.flushes)-1]
}

type pipelineFixture struct {
	pipeline    *InsightPipeline
	engine      *engine.InsightManager
	store       *repository.SecurityValuesStore
	messaging   *captureMessaging
	persistence *capturePersistence
}

func newPipelineFixture(t *testing.T, opts ...PipelineOption) *pipelineFixture {
	t.Helper()
	log := testLogger(t)
	eng := engine.NewInsightManager(log)
	if err := eng.AddExtension(extension.NewScoring()); err != nil {
		t.Fatalf("add extension: %v", err)
	}
	store := repository.NewSecurityValuesStore()
	messaging := &captureMessaging{}
	persistence := &capturePersistence{}

	base := []PipelineOption{
		WithIdleSleep(time.Millisecond),
		WithUniverse([]string{"BTCUSDT"}),
	}
	p := NewInsightPipeline("test-run", eng, store, messaging, persistence, noopMetrics{}, log, append(base, opts...)...)
	return &pipelineFixture{pipeline: p, engine: eng, store: store, messaging: messaging, persistence: persistence}
}

func startPipeline(t *testing.T, f *pipelineFixture, start time.Time) {
	t.Helper()
	if err := f.pipeline.Initialize(start, start.Add(time.Hour), start); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := f.pipeline.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestPipelineLifecycleGuards(t *testing.T) {
	f := newPipelineFixture(t)
	if err := f.pipeline.Start(context.Background()); err == nil {
		t.Fatalf("expected start before initialize to fail")
	}

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	startPipeline(t, f, start)

	if err := f.pipeline.Initialize(start, start.Add(time.Hour), start); err == nil {
		t.Fatalf("expected second initialize to fail")
	}
	if got := f.pipeline.State(); got != StateRunning {
		t.Fatalf("expected running, got %s", got)
	}

	if err := f.pipeline.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := f.pipeline.State(); got != StateStopped {
		t.Fatalf("expected stopped, got %s", got)
	}
	// idempotent
	if err := f.pipeline.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestPipelineProcessesItemsInOrder(t *testing.T) {
	f := newPipelineFixture(t)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	f.store.Update(models.SecurityValues{Symbol: "BTCUSDT", Price: 100, UpdatedAt: start})
	startPipeline(t, f, start)

	const n = 50
	for i := 0; i < n; i++ {
		at := start.Add(time.Duration(i) * time.Second)
		in := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, at, "test")
		f.pipeline.OnInsightsGenerated(at, models.NewInsightCollection(at, in))
	}

	waitFor(t, 2*time.Second, func() bool { return f.engine.InsightCount() == n })

	if err := f.pipeline.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	all := f.engine.AllInsights()
	for i := 1; i < len(all); i++ {
		if all[i].Insight.GeneratedAt.Before(all[i-1].Insight.GeneratedAt) {
			t.Fatalf("history out of order at %d", i)
		}
	}
	if got := f.engine.Frontier(); !got.Equal(start.Add((n - 1) * time.Second)) {
		t.Fatalf("frontier not advanced to last item: %s", got)
	}
}

func TestPipelineDrainsBeforeStop(t *testing.T) {
	f := newPipelineFixture(t, WithIdleSleep(time.Millisecond))
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	f.store.Update(models.SecurityValues{Symbol: "BTCUSDT", Price: 100, UpdatedAt: start})
	startPipeline(t, f, start)

	const n = 200
	for i := 0; i < n; i++ {
		at := start.Add(time.Duration(i) * time.Millisecond)
		in := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, at, "test")
		f.pipeline.OnInsightsGenerated(at, models.NewInsightCollection(at, in))
	}

	// stop immediately: everything already accepted must still be processed
	if err := f.pipeline.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := f.engine.InsightCount(); got != n {
		t.Fatalf("drained %d insights, want %d", got, n)
	}
	if got := len(f.persistence.last()); got != n {
		t.Fatalf("final persist carried %d insights, want %d", got, n)
	}

	var finals int
	for _, msg := range f.messaging.messages() {
		if msg.Final {
			finals++
			if len(msg.Insights) != n {
				t.Fatalf("terminal message carried %d insights, want %d", len(msg.Insights), n)
			}
		}
	}
	if finals != 1 {
		t.Fatalf("expected exactly one terminal message, got %d", finals)
	}
}

func TestPipelineMessagingFlushIsTimeGated(t *testing.T) {
	f := newPipelineFixture(t,
		WithMessagingInterval(20*time.Millisecond),
		WithPersistenceInterval(time.Hour),
	)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	f.store.Update(models.SecurityValues{Symbol: "BTCUSDT", Price: 100, UpdatedAt: start})
	startPipeline(t, f, start)

	in := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, start, "test")
	f.pipeline.OnInsightsGenerated(start, models.NewInsightCollection(start, in))

	// periodic flush fires without any shutdown involved
	waitFor(t, 2*time.Second, func() bool { return len(f.messaging.messages()) >= 1 })
	for _, msg := range f.messaging.messages() {
		if msg.Final {
			t.Fatalf("periodic flush must not be terminal")
		}
	}
	// persistence interval is an hour: nothing persisted mid-run
	if got := len(f.persistence.last()); got != 0 {
		t.Fatalf("persistence flushed mid-run: %d insights", got)
	}

	if err := f.pipeline.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := len(f.persistence.last()); got != 1 {
		t.Fatalf("final persist carried %d insights, want 1", got)
	}
}

func TestPipelineSnapshotCapturedAtCallTime(t *testing.T) {
	f := newPipelineFixture(t)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	f.store.Update(models.SecurityValues{Symbol: "BTCUSDT", Price: 100, UpdatedAt: start})
	startPipeline(t, f, start)

	in := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, start, "test")
	f.pipeline.OnInsightsGenerated(start, models.NewInsightCollection(start, in))

	// mutate live state after enqueue; the queued snapshot must not see it
	f.store.Update(models.SecurityValues{Symbol: "BTCUSDT", Price: 999, UpdatedAt: start.Add(time.Second)})

	if err := f.pipeline.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	scored := f.engine.AllScored()
	if len(scored) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(scored))
	}
	all := f.engine.AllInsights()
	if all[0].EntryPrice != 100 {
		t.Fatalf("entry price captured from mutated state: %v", all[0].EntryPrice)
	}
}

func TestPipelineSynchronousEventsIdempotent(t *testing.T) {
	f := newPipelineFixture(t)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	f.store.Update(models.SecurityValues{Symbol: "BTCUSDT", Price: 100, UpdatedAt: start})
	startPipeline(t, f, start)

	at := start.Add(time.Second)
	f.pipeline.ProcessSynchronousEvents(at)
	f.pipeline.ProcessSynchronousEvents(at) // same timestamp: no-op
	f.pipeline.ProcessSynchronousEvents(start) // older timestamp: no-op

	waitFor(t, 2*time.Second, func() bool { return f.engine.Frontier().Equal(at) })

	if err := f.pipeline.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := f.engine.Frontier(); !got.Equal(at) {
		t.Fatalf("frontier = %s, want %s", got, at)
	}
}

func TestPipelineDropsInsightsWhenNotRunning(t *testing.T) {
	f := newPipelineFixture(t)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	in := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, start, "test")
	f.pipeline.OnInsightsGenerated(start, models.NewInsightCollection(start, in))

	startPipeline(t, f, start)
	if err := f.pipeline.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := f.engine.InsightCount(); got != 0 {
		t.Fatalf("insight accepted outside running state: %d", got)
	}
}

func TestNoopPipelineIsInert(t *testing.T) {
	p := NewNoopPipeline()
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if err := p.Initialize(start, start.Add(time.Hour), start); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	in := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, start, "test")
	p.OnInsightsGenerated(start, models.NewInsightCollection(start, in))
	p.ProcessSynchronousEvents(start)
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := p.State(); got != StateIdle {
		t.Fatalf("noop state = %s, want idle", got)
	}
}
