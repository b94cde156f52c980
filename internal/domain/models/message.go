package models

import "time"

// ScoredInsight is the wire shape of one insight with its current scores,
// as carried by update messages and the persisted artifact.
type ScoredInsight struct {
	ID             string        `json:"id"`
	Symbol         string        `json:"symbol"`
	Type           InsightType   `json:"type"`
	Direction      string        `json:"direction"`
	Magnitude      float64       `json:"magnitude,omitempty"`
	Confidence     float64       `json:"confidence,omitempty"`
	Period         time.Duration `json:"period"`
	GeneratedAt    time.Time     `json:"generated_at"`
	CloseTime      time.Time     `json:"close_time"`
	Source         string        `json:"source,omitempty"`
	DirectionScore float64       `json:"direction_score"`
	MagnitudeScore float64       `json:"magnitude_score"`
	ScoreFinalized bool          `json:"score_finalized"`
}

// InsightUpdateMessage is one outbound packet for the messaging sink: a
// batch of insights whose scoring state changed since the last flush.
// Exactly one message per run carries Final=true with the complete
// terminal insight list.
type InsightUpdateMessage struct {
	RunID    string          `json:"run_id"`
	SentAt   time.Time       `json:"sent_at"`
	Final    bool            `json:"final,omitempty"`
	Insights []ScoredInsight `json:"insights"`
}
