package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	pkgkafka "AlphaPipe/pkg/kafka"
)

// KafkaInsightsHandler bridges externally generated insights into the
// pipeline: remote producers publish insight batches to a Kafka topic and
// this handler feeds them through the same queueing path as local ones.
type KafkaInsightsHandler struct {
	topic    string
	pipeline PipelineController
	metrics  domrepo.Metrics
}

func NewKafkaInsightsHandler(topic string, pipeline PipelineController, metrics domrepo.Metrics) *KafkaInsightsHandler {
	return &KafkaInsightsHandler{topic: topic, pipeline: pipeline, metrics: metrics}
}

func (h *KafkaInsightsHandler) Topic() string { return h.topic }

type remoteInsight struct {
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"`
	Direction  string  `json:"direction"`
	Magnitude  float64 `json:"magnitude"`
	Confidence float64 `json:"confidence"`
	PeriodMs   int64   `json:"period_ms"`
	Source     string  `json:"source"`
}

type remoteBatch struct {
	GeneratedAtMs int64           `json:"generated_at_ms"`
	Insights      []remoteInsight `json:"insights"`
}

// Handle parses one remote batch and enqueues it. Malformed payloads are
// rejected so the consumer's retry/DLQ path takes over.
func (h *KafkaInsightsHandler) Handle(ctx context.Context, b []byte) error {
	var batch remoteBatch
	if err := json.Unmarshal(b, &batch); err != nil {
		h.metrics.RecordError("insights_unmarshal")
		return err
	}
	if len(batch.Insights) == 0 {
		return nil
	}

	at := time.UnixMilli(batch.GeneratedAtMs).UTC()
	if batch.GeneratedAtMs <= 0 {
		at = time.Now().UTC()
	}

	insights := make([]*models.Insight, 0, len(batch.Insights))
	for _, ri := range batch.Insights {
		dir, err := parseDirection(ri.Direction)
		if err != nil {
			h.metrics.RecordError("insights_direction")
			return err
		}
		source := ri.Source
		if source == "" {
			source = "kafka"
		}
		in := models.NewInsight(ri.Symbol, models.InsightType(ri.Type), dir, time.Duration(ri.PeriodMs)*time.Millisecond, at, source)
		in.Magnitude = ri.Magnitude
		in.Confidence = ri.Confidence
		insights = append(insights, in)
	}

	h.metrics.RecordLatency("insights_ingest_e2e_seconds", time.Since(at).Seconds())
	h.pipeline.OnInsightsGenerated(at, models.NewInsightCollection(at, insights...))
	h.pipeline.ProcessSynchronousEvents(at)
	return nil
}

func parseDirection(s string) (models.Direction, error) {
	switch s {
	case "up":
		return models.DirectionUp, nil
	case "down":
		return models.DirectionDown, nil
	case "flat", "":
		return models.DirectionFlat, nil
	default:
		return models.DirectionFlat, fmt.Errorf("unknown direction %q", s)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaInsightsHandler)(nil)
