package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
)

// ClickHouseInsightStore persists the insight history to a ClickHouse
// ReplacingMergeTree versioned by flush sequence: repeated full-history
// inserts keyed (run_id, id) collapse to the latest row, giving the
// idempotent-overwrite semantics the pipeline expects.
type ClickHouseInsightStore struct {
	db       *sql.DB
	table    string
	runID    string
	flushSeq uint64
}

func NewClickHouseInsightStore(db *sql.DB, table, runID string) *ClickHouseInsightStore {
	return &ClickHouseInsightStore{db: db, table: table, runID: runID}
}

// SchemaStatements returns the idempotent DDL for the insight table.
func SchemaStatements(database, table string) []string {
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + database,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id String,
			id String,
			symbol String,
			type String,
			direction String,
			magnitude Float64,
			confidence Float64,
			period_ns Int64,
			generated_at DateTime64(9),
			close_time DateTime64(9),
			source String,
			direction_score Float64,
			magnitude_score Float64,
			score_finalized UInt8,
			flush_seq UInt64
		) ENGINE = ReplacingMergeTree(flush_seq) ORDER BY (run_id, id)`, table),
	}
}

func (s *ClickHouseInsightStore) Persist(ctx context.Context, insights []models.ScoredInsight) error {
	if len(insights) == 0 {
		return nil
	}
	s.flushSeq++

	const chunkSize = 2000
	for start := 0; start < len(insights); start += chunkSize {
		end := start + chunkSize
		if end > len(insights) {
			end = len(insights)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*15)
		for _, in := range insights[start:end] {
			finalized := uint8(0)
			if in.ScoreFinalized {
				finalized = 1
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				s.runID,
				in.ID,
				in.Symbol,
				string(in.Type),
				in.Direction,
				in.Magnitude,
				in.Confidence,
				int64(in.Period),
				in.GeneratedAt,
				in.CloseTime,
				in.Source,
				in.DirectionScore,
				in.MagnitudeScore,
				finalized,
				s.flushSeq,
			)
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (run_id, id, symbol, type, direction, magnitude, confidence, period_ns, generated_at, close_time, source, direction_score, magnitude_score, score_finalized, flush_seq) VALUES %s",
			s.table, strings.Join(values, ","),
		)
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("persist insights: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseInsightStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.ScoredInsight, error) {
	var sb strings.Builder
	args := []interface{}{s.runID}
	fmt.Fprintf(&sb,
		"SELECT id, symbol, type, direction, magnitude, confidence, period_ns, generated_at, close_time, source, direction_score, magnitude_score, score_finalized FROM %s FINAL WHERE run_id = ?",
		s.table,
	)
	if symbol != "" {
		sb.WriteString(" AND symbol = ?")
		args = append(args, symbol)
	}
	if !from.IsZero() {
		sb.WriteString(" AND generated_at >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		sb.WriteString(" AND generated_at <= ?")
		args = append(args, to)
	}
	sb.WriteString(" ORDER BY generated_at ASC")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	var out []models.ScoredInsight
	for rows.Next() {
		var in models.ScoredInsight
		var typ string
		var periodNs int64
		var finalized uint8
		if err := rows.Scan(&in.ID, &in.Symbol, &typ, &in.Direction, &in.Magnitude, &in.Confidence, &periodNs, &in.GeneratedAt, &in.CloseTime, &in.Source, &in.DirectionScore, &in.MagnitudeScore, &finalized); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		in.Type = models.InsightType(typ)
		in.Period = time.Duration(periodNs)
		in.ScoreFinalized = finalized == 1
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *ClickHouseInsightStore) Close() error { return nil }

var _ domrepo.PersistenceSink = (*ClickHouseInsightStore)(nil)
