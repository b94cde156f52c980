package engine

import (
	"errors"
	"testing"
	"time"

	"AlphaPipe/internal/domain/models"
	"AlphaPipe/internal/domain/service"
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

type recordingExtension struct {
	name      string
	inits     int
	frontiers []time.Time
}

func (e *recordingExtension) Name() string { return e.name }

func (e *recordingExtension) InitializeForRange(start, end, current time.Time) { e.inits++ }

func (e *recordingExtension) Step(frontier time.Time, snapshot *models.SecurityValuesSnapshot, history []*service.InsightContext) {
	e.frontiers = append(e.frontiers, frontier)
}

func snapshotAt(at time.Time, price float64) *models.SecurityValuesSnapshot {
	return models.NewSecurityValuesSnapshot(at, map[string]models.SecurityValues{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: price, UpdatedAt: at},
	})
}

func newManager(t *testing.T, exts ...service.Extension) *InsightManager {
	t.Helper()
	m := NewInsightManager(testLogger(t))
	for _, ext := range exts {
		if err := m.AddExtension(ext); err != nil {
			t.Fatalf("add extension: %v", err)
		}
	}
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if err := m.InitializeForRange(start, start.Add(time.Hour), start); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return m
}

func TestStepBeforeInitializeRejected(t *testing.T) {
	m := NewInsightManager(testLogger(t))
	err := m.Step(time.Now().UTC(), snapshotAt(time.Now().UTC(), 100), nil)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitializeOnlyOnce(t *testing.T) {
	m := newManager(t)
	err := m.InitializeForRange(time.Now(), time.Now(), time.Now())
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestAddExtensionAfterInitializeRejected(t *testing.T) {
	m := newManager(t)
	err := m.AddExtension(&recordingExtension{name: "late"})
	if !errors.Is(err, ErrExtensionAfterInit) {
		t.Fatalf("expected ErrExtensionAfterInit, got %v", err)
	}
}

func TestMonotonicFrontierEnforced(t *testing.T) {
	m := newManager(t)
	t0 := time.Date(2026, 8, 1, 0, 0, 10, 0, time.UTC)
	if err := m.Step(t0, snapshotAt(t0, 100), nil); err != nil {
		t.Fatalf("step: %v", err)
	}
	err := m.Step(t0.Add(-time.Second), snapshotAt(t0, 100), nil)
	if !errors.Is(err, ErrNonMonotonicStep) {
		t.Fatalf("expected ErrNonMonotonicStep, got %v", err)
	}
	// equal frontier is allowed
	if err := m.Step(t0, snapshotAt(t0, 101), nil); err != nil {
		t.Fatalf("step at equal frontier: %v", err)
	}
}

func TestExtensionsRunInRegistrationOrderEveryStep(t *testing.T) {
	first := &recordingExtension{name: "first"}
	second := &recordingExtension{name: "second"}
	m := newManager(t, first, second)

	if first.inits != 1 || second.inits != 1 {
		t.Fatalf("expected one init broadcast per extension")
	}

	t0 := time.Date(2026, 8, 1, 0, 0, 10, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		if err := m.Step(at, snapshotAt(at, 100), nil); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if len(first.frontiers) != 3 || len(second.frontiers) != 3 {
		t.Fatalf("expected 3 step invocations per extension")
	}
}

func TestGetUpdatedContextsConsumeOnce(t *testing.T) {
	m := newManager(t)
	t0 := time.Date(2026, 8, 1, 0, 0, 10, 0, time.UTC)
	col := models.NewInsightCollection(t0,
		models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, t0, "test"),
	)
	if err := m.Step(t0, snapshotAt(t0, 100), col); err != nil {
		t.Fatalf("step: %v", err)
	}

	updated := m.GetUpdatedContexts()
	if len(updated) != 1 {
		t.Fatalf("expected 1 updated context, got %d", len(updated))
	}
	if again := m.GetUpdatedContexts(); len(again) != 0 {
		t.Fatalf("expected empty second read, got %d", len(again))
	}
}

func TestDuplicateSignalsKeepDistinctIdentities(t *testing.T) {
	// De-duplication happens upstream at generation time; the engine keeps
	// both when a collection carries two semantically equal insights.
	m := newManager(t)
	t0 := time.Date(2026, 8, 1, 0, 0, 10, 0, time.UTC)
	a := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, t0, "test")
	b := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, t0, "test")
	if !a.SameSignal(b) {
		t.Fatalf("expected semantic equality")
	}
	if err := m.Step(t0, snapshotAt(t0, 100), models.NewInsightCollection(t0, a, b)); err != nil {
		t.Fatalf("step: %v", err)
	}

	all := m.AllInsights()
	if len(all) != 2 {
		t.Fatalf("expected 2 insights in history, got %d", len(all))
	}
	if all[0].Insight.ID == all[1].Insight.ID {
		t.Fatalf("expected distinct identities")
	}

	// A later duplicate from a new producer call is an independent entry.
	t1 := t0.Add(10 * time.Second)
	c := models.NewInsight("BTCUSDT", models.InsightTypePrice, models.DirectionUp, time.Minute, t1, "test")
	if err := m.Step(t1, snapshotAt(t1, 101), models.NewInsightCollection(t1, c)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if m.InsightCount() != 3 {
		t.Fatalf("expected 3 insights, got %d", m.InsightCount())
	}
}

func TestAllInsightsStableOrder(t *testing.T) {
	m := newManager(t)
	t0 := time.Date(2026, 8, 1, 0, 0, 10, 0, time.UTC)
	a := models.NewInsight("AAA", models.InsightTypePrice, models.DirectionUp, time.Minute, t0, "test")
	b := models.NewInsight("BBB", models.InsightTypePrice, models.DirectionDown, time.Minute, t0, "test")
	if err := m.Step(t0, snapshotAt(t0, 100), models.NewInsightCollection(t0, a, b)); err != nil {
		t.Fatalf("step: %v", err)
	}
	all := m.AllInsights()
	if all[0].Insight.Symbol != "AAA" || all[1].Insight.Symbol != "BBB" {
		t.Fatalf("insertion order not preserved for equal generation times")
	}
}
