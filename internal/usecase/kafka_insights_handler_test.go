package usecase

import (
	"context"
	"testing"

	"AlphaPipe/internal/domain/models"
)

func TestKafkaInsightsHandlerParsesBatch(t *testing.T) {
	pipe := &capturePipeline{}
	h := NewKafkaInsightsHandler("insights.in", pipe, noopMetrics{})

	payload := []byte(`{
		"generated_at_ms": 1754006400000,
		"insights": [
			{"symbol": "BTCUSDT", "type": "price", "direction": "up", "magnitude": 0.02, "period_ms": 60000, "source": "remote-alpha"},
			{"symbol": "ETHUSDT", "type": "volatility", "direction": "down", "period_ms": 120000}
		]
	}`)
	if err := h.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got := pipe.received()
	if len(got) != 2 {
		t.Fatalf("parsed %d insights, want 2", len(got))
	}
	if got[0].Symbol != "BTCUSDT" || got[0].Direction != models.DirectionUp || got[0].Source != "remote-alpha" {
		t.Fatalf("unexpected first insight: %+v", got[0])
	}
	if got[1].Type != models.InsightTypeVolatility || got[1].Source != "kafka" {
		t.Fatalf("unexpected second insight: %+v", got[1])
	}
}

func TestKafkaInsightsHandlerRejectsMalformed(t *testing.T) {
	h := NewKafkaInsightsHandler("insights.in", &capturePipeline{}, noopMetrics{})
	if err := h.Handle(context.Background(), []byte(`{"insights": [`)); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if err := h.Handle(context.Background(), []byte(`{"insights": [{"symbol":"X","direction":"sideways"}]}`)); err == nil {
		t.Fatalf("expected direction error")
	}
}
