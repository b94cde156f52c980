package repository

import (
	"context"
	"time"

	"AlphaPipe/internal/domain/models"
)

// SnapshotProvider projects already-resident security state into an
// immutable point-in-time snapshot. Unknown symbols are omitted from the
// result rather than failing the whole snapshot.
type SnapshotProvider interface {
	Snapshot(symbols []string, at time.Time) *models.SecurityValuesSnapshot
}

// MessagingSink delivers insight update messages to an external channel.
// Send ordering must match call order; delivery guarantees are the sink's own.
type MessagingSink interface {
	Send(ctx context.Context, msg *models.InsightUpdateMessage) error
	Close() error
}

// PersistenceSink stores the full insight history for a run. Each Persist
// call is a full overwrite of the artifact, safe to repeat with a growing
// history.
type PersistenceSink interface {
	Persist(ctx context.Context, insights []models.ScoredInsight) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.ScoredInsight, error)
	Close() error
}

// MarketFeed streams security value updates from an external source.
type MarketFeed interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.SecurityValues, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Metrics interface {
	RecordInsightsReceived(source string, n int)
	RecordStepLatency(seconds float64)
	RecordQueueDepth(queue string, depth int)
	RecordFlush(kind string)
	RecordMessageSent(backend string, insights int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
