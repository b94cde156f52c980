package usecase

import (
	"context"
	"sync"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	"AlphaPipe/internal/repository"
	applogger "AlphaPipe/pkg/logger"
)

// InsightGenerator turns security value updates into insights. Generators
// are evaluated on every accepted feed update.
type InsightGenerator interface {
	Name() string
	OnValues(now time.Time, v models.SecurityValues) []*models.Insight
}

// AlgorithmRunner is the producer side of the pipeline: it applies feed
// updates to the resident security state, evaluates generators, suppresses
// insights that merely repeat the generator's immediately preceding signal,
// and hands the survivors to the pipeline controller.
type AlgorithmRunner struct {
	log        *applogger.Logger
	metrics    domrepo.Metrics
	store      *repository.SecurityValuesStore
	pipeline   PipelineController
	generators []InsightGenerator

	mu       sync.Mutex
	lastSent map[string]*models.Insight // per-generator previous emission
}

func NewAlgorithmRunner(
	store *repository.SecurityValuesStore,
	pipeline PipelineController,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	generators ...InsightGenerator,
) *AlgorithmRunner {
	return &AlgorithmRunner{
		log:        log.With("runner"),
		metrics:    metrics,
		store:      store,
		pipeline:   pipeline,
		generators: generators,
		lastSent:   make(map[string]*models.Insight),
	}
}

// Process applies one feed update, runs the generators, and forwards any
// novel insights to the pipeline. It also ticks the synchronous event hook
// so the engine frontier advances even when no insight is produced.
func (r *AlgorithmRunner) Process(ctx context.Context, v models.SecurityValues) error {
	r.store.Update(v)
	now := v.UpdatedAt

	for _, gen := range r.generators {
		produced := gen.OnValues(now, v)
		kept := r.suppressRepeats(gen.Name(), produced)
		if len(kept) > 0 {
			r.pipeline.OnInsightsGenerated(now, models.NewInsightCollection(now, kept...))
		}
	}

	r.pipeline.ProcessSynchronousEvents(now)
	return nil
}

// suppressRepeats drops insights that repeat the same symbol, type, and
// direction as the generator's immediately preceding emission. A changed
// signal resets the comparison baseline.
func (r *AlgorithmRunner) suppressRepeats(generator string, produced []*models.Insight) []*models.Insight {
	if len(produced) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]*models.Insight, 0, len(produced))
	last := r.lastSent[generator]
	for _, in := range produced {
		if in.SameSignal(last) {
			r.metrics.RecordError("runner_duplicate_suppressed")
			continue
		}
		kept = append(kept, in)
		last = in
	}
	r.lastSent[generator] = last
	return kept
}
