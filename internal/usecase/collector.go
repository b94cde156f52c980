package usecase

import (
	"context"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	applogger "AlphaPipe/pkg/logger"
)

// ValueIngest is the downstream the collector feeds, normally the feed
// guard in front of the algorithm runner.
type ValueIngest interface {
	Process(ctx context.Context, v models.SecurityValues) error
}

// FeedCollector owns the market feed read loop: it connects, subscribes,
// forwards updates to the ingest, and reconnects on stream errors.
type FeedCollector struct {
	feed    domrepo.MarketFeed
	ingest  ValueIngest
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewFeedCollector(feed domrepo.MarketFeed, ingest ValueIngest, metrics domrepo.Metrics, log *applogger.Logger) *FeedCollector {
	return &FeedCollector{feed: feed, ingest: ingest, metrics: metrics, log: log.With("collector")}
}

// Start connects and blocks on the read loop until ctx is cancelled.
func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.feed.Connect(ctx); err != nil {
		return err
	}
	if err := c.feed.Subscribe(ctx); err != nil {
		return err
	}

	for {
		values, errs := c.feed.Read(ctx)
	consume:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-values:
				if !ok {
					break consume
				}
				if err := c.ingest.Process(ctx, v); err != nil {
					c.metrics.RecordError("collector_ingest")
					c.log.Warn("ingest error", applogger.Error(err))
				}
			case err, ok := <-errs:
				if !ok {
					break consume
				}
				if err != nil {
					c.metrics.RecordError("collector_stream")
					c.log.Warn("stream error", applogger.Error(err))
					break consume
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.log.Info("reconnecting feed")
		if err := c.feed.Reconnect(ctx); err != nil {
			c.metrics.RecordError("collector_reconnect")
			c.log.Error("reconnect failed", applogger.Error(err))
		}
	}
}

// Shutdown closes the feed connection.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	return c.feed.Close()
}
