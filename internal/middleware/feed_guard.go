package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
)

// Ingest is the minimal downstream interface the guard needs.
type Ingest interface {
	Process(ctx context.Context, v models.SecurityValues) error
}

// FeedGuard sits between the market feed and the pipeline. It validates,
// throttles per symbol, and buffers updates when downstream is unavailable.
type FeedGuard struct {
	ingest   Ingest
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan models.SecurityValues
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type GuardOption func(*FeedGuard)

// WithMaxRPS sets the max updates per second per symbol.
func WithMaxRPS(n int) GuardOption {
	return func(g *FeedGuard) {
		if n > 0 {
			g.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) GuardOption {
	return func(g *FeedGuard) {
		if n > 0 {
			g.bufSize = n
		}
	}
}

// NewFeedGuard creates a new guard.
func NewFeedGuard(ingest Ingest, metrics domrepo.Metrics, opts ...GuardOption) *FeedGuard {
	g := &FeedGuard{
		ingest:   ingest,
		metrics:  metrics,
		maxRPS:   20,   // default throttle per symbol
		bufSize:  1000, // default buffer
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.bufCh = make(chan models.SecurityValues, g.bufSize)
	return g
}

// Start launches background flushing of buffered updates.
func (g *FeedGuard) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-g.stopCh:
				return
			case v := <-g.bufCh:
				if err := g.ingest.Process(ctx, v); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					g.metrics.RecordError("feed_guard_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case g.bufCh <- v:
					default:
						g.metrics.RecordError("feed_guard_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (g *FeedGuard) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	g.mu.Unlock()
	close(g.stopCh)
}

// Process validates, throttles, and forwards an update downstream, buffering on errors.
func (g *FeedGuard) Process(ctx context.Context, v models.SecurityValues) error {
	start := time.Now()
	if err := validateValues(v); err != nil {
		g.metrics.RecordError("feed_guard_validate")
		return err
	}
	if !g.allow(v.Symbol, start) {
		// throttled; record and drop silently
		g.metrics.RecordError("feed_guard_throttle")
		return nil
	}

	if err := g.ingest.Process(ctx, v); err != nil {
		g.metrics.RecordError("feed_guard_process")
		// buffer non-blocking
		select {
		case g.bufCh <- v:
			g.metrics.RecordQueueDepth("feed_guard_buffer", len(g.bufCh))
		default:
			g.metrics.RecordError("feed_guard_buffer_full")
		}
		return fmt.Errorf("feed guard downstream: %w", err)
	}
	g.metrics.RecordLatency("feed_guard_process", time.Since(start).Seconds())
	return nil
}

func validateValues(v models.SecurityValues) error {
	if v.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if v.UpdatedAt.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if v.Price < 0 || v.Volume < 0 {
		return fmt.Errorf("negative price/volume")
	}
	return nil
}

func (g *FeedGuard) allow(symbol string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.maxRPS <= 0 {
		return true
	}
	last := g.lastSeen[symbol]
	if last.IsZero() {
		g.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(g.maxRPS) {
		return false
	}
	g.lastSeen[symbol] = now
	return true
}
