package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
)

// FileInsightStore persists the full insight history as one JSON artifact
// per run. Each Persist call is a full overwrite via tmp+rename so a
// half-written flush never clobbers the last good artifact.
type FileInsightStore struct {
	dir   string
	runID string
}

func NewFileInsightStore(dir, runID string) (*FileInsightStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("insight store dir: %w", err)
	}
	return &FileInsightStore{dir: dir, runID: runID}, nil
}

func (s *FileInsightStore) path() string {
	return filepath.Join(s.dir, s.runID+"-insights.json")
}

type insightArtifact struct {
	RunID     string                 `json:"run_id"`
	WrittenAt time.Time              `json:"written_at"`
	Insights  []models.ScoredInsight `json:"insights"`
}

func (s *FileInsightStore) Persist(ctx context.Context, insights []models.ScoredInsight) error {
	artifact := insightArtifact{
		RunID:     s.runID,
		WrittenAt: time.Now().UTC(),
		Insights:  insights,
	}
	b, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write insights: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("rename insights: %w", err)
	}
	return nil
}

func (s *FileInsightStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.ScoredInsight, error) {
	b, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read insights: %w", err)
	}
	var artifact insightArtifact
	if err := json.Unmarshal(b, &artifact); err != nil {
		return nil, fmt.Errorf("parse insights: %w", err)
	}

	out := make([]models.ScoredInsight, 0, len(artifact.Insights))
	for _, in := range artifact.Insights {
		if symbol != "" && in.Symbol != symbol {
			continue
		}
		if !from.IsZero() && in.GeneratedAt.Before(from) {
			continue
		}
		if !to.IsZero() && in.GeneratedAt.After(to) {
			continue
		}
		out = append(out, in)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *FileInsightStore) Close() error { return nil }

var _ domrepo.PersistenceSink = (*FileInsightStore)(nil)
