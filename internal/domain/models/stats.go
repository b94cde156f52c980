package models

import "time"

// RuntimeStatistics is the process-wide aggregate maintained by the
// statistics extension. It is mutated only during a Step call; external
// readers get a copy, never the live struct.
type RuntimeStatistics struct {
	TotalInsights      int64     `json:"total_insights"`
	OpenInsights       int64     `json:"open_insights"`
	ClosedInsights     int64     `json:"closed_insights"`
	UpInsights         int64     `json:"up_insights"`
	DownInsights       int64     `json:"down_insights"`
	FlatInsights       int64     `json:"flat_insights"`
	MeanDirectionScore float64   `json:"mean_direction_score"`
	MeanMagnitudeScore float64   `json:"mean_magnitude_score"`
	FrontierTime       time.Time `json:"frontier_time"`
}

// ChartSample is one point of the sampled mean-score series.
type ChartSample struct {
	Time           time.Time `json:"time"`
	DirectionScore float64   `json:"direction_score"`
	MagnitudeScore float64   `json:"magnitude_score"`
	OpenInsights   int64     `json:"open_insights"`
}
