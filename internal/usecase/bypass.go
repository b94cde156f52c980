package usecase

import (
	"context"
	"time"

	"AlphaPipe/internal/domain/models"
)

// NoopPipeline is the bypass controller used when insights are generated
// outside the framework: every operation succeeds and does nothing.
type NoopPipeline struct{}

func NewNoopPipeline() *NoopPipeline { return &NoopPipeline{} }

func (NoopPipeline) Initialize(start, end, current time.Time) error { return nil }

func (NoopPipeline) Start(ctx context.Context) error { return nil }

func (NoopPipeline) OnInsightsGenerated(at time.Time, insights *models.InsightCollection) {}

func (NoopPipeline) ProcessSynchronousEvents(now time.Time) {}

func (NoopPipeline) Stop(ctx context.Context) error { return nil }

func (NoopPipeline) State() PipelineState { return StateIdle }

func (NoopPipeline) RuntimeError() error { return nil }

var (
	_ PipelineController = (*InsightPipeline)(nil)
	_ PipelineController = NoopPipeline{}
)
