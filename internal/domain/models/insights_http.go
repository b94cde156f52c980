package models

// Requests for the status API endpoints. Defined in domain for consistency and reuse.

type InsightsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type ChartRequest struct {
	Limit int `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=50000"`
}
