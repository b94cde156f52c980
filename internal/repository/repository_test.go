package repository

import (
	"context"
	"testing"
	"time"

	"AlphaPipe/internal/domain/models"
)

func TestSnapshotOmitsUnknownSymbols(t *testing.T) {
	store := NewSecurityValuesStore()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store.Update(models.SecurityValues{Symbol: "BTCUSDT", Price: 100, UpdatedAt: now})

	snap := store.Snapshot([]string{"BTCUSDT", "UNKNOWN"}, now)
	if snap.Len() != 1 {
		t.Fatalf("expected 1 instrument, got %d", snap.Len())
	}
	if _, ok := snap.Get("UNKNOWN"); ok {
		t.Fatalf("expected unknown symbol omitted")
	}
}

func TestSnapshotImmutableAfterCapture(t *testing.T) {
	store := NewSecurityValuesStore()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store.Update(models.SecurityValues{Symbol: "BTCUSDT", Price: 100, UpdatedAt: now})

	snap := store.Snapshot([]string{"BTCUSDT"}, now)

	// live state moves on; the captured snapshot must not
	store.Update(models.SecurityValues{Symbol: "BTCUSDT", Price: 999, UpdatedAt: now.Add(time.Second)})

	v, ok := snap.Get("BTCUSDT")
	if !ok {
		t.Fatalf("expected BTCUSDT in snapshot")
	}
	if v.Price != 100 {
		t.Fatalf("snapshot mutated: got price %v", v.Price)
	}
}

func scored(symbol string, at time.Time) models.ScoredInsight {
	return models.ScoredInsight{
		ID:          symbol + "-" + at.Format(time.RFC3339),
		Symbol:      symbol,
		Type:        models.InsightTypePrice,
		Direction:   "up",
		Period:      time.Minute,
		GeneratedAt: at,
		CloseTime:   at.Add(time.Minute),
	}
}

func TestFileStorePersistOverwritesAndQueries(t *testing.T) {
	store, err := NewFileInsightStore(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Persist(ctx, []models.ScoredInsight{scored("BTCUSDT", t0)}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	// second flush with the grown history fully replaces the artifact
	history := []models.ScoredInsight{
		scored("BTCUSDT", t0),
		scored("ETHUSDT", t0.Add(time.Second)),
	}
	if err := store.Persist(ctx, history); err != nil {
		t.Fatalf("persist: %v", err)
	}

	all, err := store.Query(ctx, "", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(all))
	}

	btc, err := store.Query(ctx, "BTCUSDT", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("query symbol: %v", err)
	}
	if len(btc) != 1 || btc[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol filter result: %v", btc)
	}

	windowed, err := store.Query(ctx, "", t0.Add(time.Second), time.Time{}, 0)
	if err != nil {
		t.Fatalf("query window: %v", err)
	}
	if len(windowed) != 1 || windowed[0].Symbol != "ETHUSDT" {
		t.Fatalf("unexpected window result: %v", windowed)
	}
}

func TestFileStoreQueryMissingArtifact(t *testing.T) {
	store, err := NewFileInsightStore(t.TempDir(), "run-none")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, err := store.Query(context.Background(), "", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result before first flush")
	}
}
