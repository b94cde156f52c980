package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	"AlphaPipe/internal/engine"
	applogger "AlphaPipe/pkg/logger"
	"AlphaPipe/pkg/queue"
)

// PipelineState is the lifecycle state of the pipeline controller.
type PipelineState int32

const (
	StateIdle PipelineState = iota
	StateInitialized
	StateRunning
	StateDraining
	StateStopped
)

func (s PipelineState) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// PipelineController decouples insight producers from the processing
// pipeline. Runs outside the framework get NewNoopPipeline instead.
type PipelineController interface {
	Initialize(start, end, current time.Time) error
	Start(ctx context.Context) error
	OnInsightsGenerated(at time.Time, insights *models.InsightCollection)
	ProcessSynchronousEvents(now time.Time)
	Stop(ctx context.Context) error
	State() PipelineState
	RuntimeError() error
}

// PipelineOption configures InsightPipeline.
type PipelineOption func(*InsightPipeline)

// WithMessagingInterval sets the minimum wall-clock gap between update
// message flushes.
func WithMessagingInterval(d time.Duration) PipelineOption {
	return func(p *InsightPipeline) {
		if d > 0 {
			p.messagingInterval = d
		}
	}
}

// WithPersistenceInterval sets the minimum wall-clock gap between full
// history persists.
func WithPersistenceInterval(d time.Duration) PipelineOption {
	return func(p *InsightPipeline) {
		if d > 0 {
			p.persistenceInterval = d
		}
	}
}

// WithIdleSleep sets how long the consumer sleeps when the work queue
// is empty.
func WithIdleSleep(d time.Duration) PipelineOption {
	return func(p *InsightPipeline) {
		if d > 0 {
			p.idleSleep = d
		}
	}
}

// WithUniverse sets the instruments included in synchronous snapshots.
func WithUniverse(symbols []string) PipelineOption {
	return func(p *InsightPipeline) { p.universe = symbols }
}

// InsightPipeline is the asynchronous processing controller. Producers
// push work items onto an unbounded FIFO queue without blocking; a single
// background consumer drains it, steps the engine, and flushes messaging
// and persistence on wall-clock timers. Stop drains everything queued
// before the terminal flush, so no accepted insight is ever dropped.
type InsightPipeline struct {
	log         *applogger.Logger
	metrics     domrepo.Metrics
	engine      *engine.InsightManager
	snapshots   domrepo.SnapshotProvider
	messaging   domrepo.MessagingSink
	persistence domrepo.PersistenceSink

	runID    string
	universe []string

	messagingInterval   time.Duration
	persistenceInterval time.Duration
	idleSleep           time.Duration

	work     *queue.Queue[models.WorkItem]
	messages *queue.Queue[*models.InsightUpdateMessage]

	mu         sync.Mutex
	state      PipelineState
	lastSync   time.Time
	runtimeErr error

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewInsightPipeline(
	runID string,
	eng *engine.InsightManager,
	snapshots domrepo.SnapshotProvider,
	messaging domrepo.MessagingSink,
	persistence domrepo.PersistenceSink,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	opts ...PipelineOption,
) *InsightPipeline {
	p := &InsightPipeline{
		log:                 log.With("pipeline"),
		metrics:             metrics,
		engine:              eng,
		snapshots:           snapshots,
		messaging:           messaging,
		persistence:         persistence,
		runID:               runID,
		messagingInterval:   2 * time.Second,
		persistenceInterval: 60 * time.Second,
		idleSleep:           50 * time.Millisecond,
		work:                queue.New[models.WorkItem](),
		messages:            queue.New[*models.InsightUpdateMessage](),
		stopCh:              make(chan struct{}),
		doneCh:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize broadcasts the run range to the engine. Valid exactly once,
// from the idle state.
func (p *InsightPipeline) Initialize(start, end, current time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return fmt.Errorf("pipeline: initialize in state %s", p.state)
	}
	if err := p.engine.InitializeForRange(start, end, current); err != nil {
		return err
	}
	p.state = StateInitialized
	return nil
}

// Start launches the background consumer. Valid only after Initialize.
func (p *InsightPipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateInitialized {
		return fmt.Errorf("pipeline: start in state %s", p.state)
	}
	p.state = StateRunning
	go p.run(ctx)
	p.log.Info("started",
		applogger.String("run_id", p.runID),
		applogger.Duration("messaging_interval", p.messagingInterval),
		applogger.Duration("persistence_interval", p.persistenceInterval),
	)
	return nil
}

// OnInsightsGenerated enqueues freshly generated insights together with a
// market snapshot captured at the moment of the call. Never blocks the
// producer. Insights arriving outside the running state are dropped.
func (p *InsightPipeline) OnInsightsGenerated(at time.Time, insights *models.InsightCollection) {
	if p.State() != StateRunning {
		p.metrics.RecordError("pipeline_closed_drop")
		return
	}
	if insights.IsEmpty() {
		return
	}

	symbols := p.universe
	for _, in := range insights.Insights {
		symbols = appendUnique(symbols, in.Symbol)
	}
	snap := p.snapshots.Snapshot(symbols, at)

	p.work.Push(models.WorkItem{FrontierTime: at, Snapshot: snap, Insights: insights})
	p.metrics.RecordInsightsReceived(insights.Insights[0].Source, len(insights.Insights))
	p.metrics.RecordQueueDepth("work", p.work.Len())
}

// ProcessSynchronousEvents enqueues a snapshot-only work item so the engine
// frontier keeps advancing between insight arrivals. Idempotent per
// timestamp: repeated calls with a non-advancing clock are no-ops.
func (p *InsightPipeline) ProcessSynchronousEvents(now time.Time) {
	if p.State() != StateRunning {
		return
	}

	p.mu.Lock()
	if !now.After(p.lastSync) {
		p.mu.Unlock()
		return
	}
	p.lastSync = now
	p.mu.Unlock()

	snap := p.snapshots.Snapshot(p.universe, now)
	p.work.Push(models.WorkItem{FrontierTime: now, Snapshot: snap})
	p.metrics.RecordQueueDepth("work", p.work.Len())
}

// Stop drains the work queue, emits the terminal update message, runs the
// final persist, and transitions to the stopped state. Idempotent.
func (p *InsightPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateStopped:
		err := p.runtimeErr
		p.mu.Unlock()
		return err
	case StateRunning:
		p.state = StateDraining
		p.mu.Unlock()
		close(p.stopCh)
	case StateDraining:
		p.mu.Unlock()
	default:
		p.state = StateStopped
		p.mu.Unlock()
		return nil
	}

	select {
	case <-p.doneCh:
	case <-ctx.Done():
		return fmt.Errorf("pipeline: stop: %w", ctx.Err())
	}
	return p.RuntimeError()
}

// State returns the current lifecycle state.
func (p *InsightPipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// RuntimeError returns the fatal error that halted the run, if any.
func (p *InsightPipeline) RuntimeError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runtimeErr
}

func (p *InsightPipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	lastMessaging := time.Now()
	lastPersist := time.Now()

	for {
		select {
		case <-p.stopCh:
			p.shutdown(ctx)
			return
		case <-ctx.Done():
			p.shutdown(context.Background())
			return
		default:
		}

		processed, err := p.processQueued()
		if err != nil {
			p.fail(ctx, err)
			return
		}

		if time.Since(lastMessaging) >= p.messagingInterval {
			p.flushMessaging(false)
			lastMessaging = time.Now()
		}
		if time.Since(lastPersist) >= p.persistenceInterval {
			p.flushPersistence(ctx)
			lastPersist = time.Now()
		}
		p.deliverMessages(ctx)

		if processed == 0 {
			time.Sleep(p.idleSleep)
		}
	}
}

// processQueued drains everything currently queued through the engine.
// Any step error is fatal for the run.
func (p *InsightPipeline) processQueued() (int, error) {
	processed := 0
	for {
		item, ok := p.work.Pop()
		if !ok {
			return processed, nil
		}
		start := time.Now()
		if err := p.engine.Step(item.FrontierTime, item.Snapshot, item.Insights); err != nil {
			return processed, fmt.Errorf("pipeline: step at %s: %w", item.FrontierTime, err)
		}
		p.metrics.RecordStepLatency(time.Since(start).Seconds())
		processed++
	}
}

// flushMessaging packages contexts updated since the last flush into one
// update message. The terminal flush carries the complete history instead.
func (p *InsightPipeline) flushMessaging(final bool) {
	var scored []models.ScoredInsight
	if final {
		// consume remaining dirty flags, then ship the whole history
		p.engine.GetUpdatedContexts()
		scored = p.engine.AllScored()
	} else {
		updated := p.engine.GetUpdatedContexts()
		if len(updated) == 0 {
			return
		}
		scored = make([]models.ScoredInsight, len(updated))
		for i, ictx := range updated {
			scored[i] = ictx.ToScored()
		}
	}

	p.messages.Push(&models.InsightUpdateMessage{
		RunID:    p.runID,
		SentAt:   time.Now().UTC(),
		Final:    final,
		Insights: scored,
	})
	p.metrics.RecordFlush("messaging")
	p.metrics.RecordQueueDepth("messages", p.messages.Len())
}

// deliverMessages sends queued messages in order. A failed send is logged
// and dropped rather than reordered.
func (p *InsightPipeline) deliverMessages(ctx context.Context) {
	for {
		msg, ok := p.messages.Pop()
		if !ok {
			return
		}
		if err := p.messaging.Send(ctx, msg); err != nil {
			p.log.Error("send update message", applogger.Error(err))
			p.metrics.RecordError("messaging_send")
			continue
		}
		p.metrics.RecordMessageSent("messaging", len(msg.Insights))
	}
}

func (p *InsightPipeline) flushPersistence(ctx context.Context) {
	scored := p.engine.AllScored()
	if len(scored) == 0 {
		return
	}
	if err := p.persistence.Persist(ctx, scored); err != nil {
		p.log.Error("persist insights", applogger.Error(err))
		p.metrics.RecordError("persistence")
		return
	}
	p.metrics.RecordFlush("persistence")
}

// shutdown is the graceful drain path: process everything still queued,
// ship exactly one terminal message, persist the final history.
func (p *InsightPipeline) shutdown(ctx context.Context) {
	if _, err := p.processQueued(); err != nil {
		p.setRuntimeErr(err)
		p.log.Error("drain", applogger.Error(err))
	}

	p.flushMessaging(true)
	p.deliverMessages(ctx)
	p.flushPersistence(ctx)

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
	p.log.Info("stopped",
		applogger.String("run_id", p.runID),
		applogger.Int("insights", p.engine.InsightCount()),
		applogger.Time("frontier", p.engine.Frontier()),
	)
}

// fail halts the run on a fatal step error. Whatever scored state exists is
// still flushed so the failure leaves a post-mortem artifact behind.
func (p *InsightPipeline) fail(ctx context.Context, err error) {
	p.setRuntimeErr(err)
	p.metrics.RecordError("pipeline_fatal")
	p.log.Error("fatal step error", applogger.Error(err))

	p.flushMessaging(true)
	p.deliverMessages(ctx)
	p.flushPersistence(ctx)

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
}

func (p *InsightPipeline) setRuntimeErr(err error) {
	p.mu.Lock()
	if p.runtimeErr == nil {
		p.runtimeErr = err
	}
	p.mu.Unlock()
}

func appendUnique(symbols []string, symbol string) []string {
	for _, s := range symbols {
		if s == symbol {
			return symbols
		}
	}
	out := make([]string, len(symbols), len(symbols)+1)
	copy(out, symbols)
	return append(out, symbol)
}
