package models

// Requests for the chart HTTP endpoints.

type RefreshRequest struct {
	Symbol string `json:"symbol" validate:"omitempty,max=32"`
}

type TimeframeRequest struct {
	Timeframe string `json:"timeframe" validate:"required,oneof=1m 3m 5m 10m 30m 1h"`
}

type SelectRequest struct {
	Time *int64 `json:"time" validate:"required"`
}

type ChartQuery struct {
	Limit int `query:"limit" json:"limit" default:"0" validate:"gte=0,lte=100000"`
}
