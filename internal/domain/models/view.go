package models

import "time"

// ViewSnapshot is the state the viewer layer renders.
type ViewSnapshot struct {
	State      LoadState      `json:"state"`
	Identifier Identifier     `json:"identifier,omitempty"`
	Timeframe  string         `json:"timeframe"`
	Candles    []Candle       `json:"candles"`
	Legend     *LegendSummary `json:"legend"`
	Selected   *int64         `json:"selected"`
	TickCount  int            `json:"tickCount"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// FetchTrigger says which lifecycle path issued a data request.
type FetchTrigger string

const (
	TriggerInitial  FetchTrigger = "initial"
	TriggerFallback FetchTrigger = "fallback"
	TriggerManual   FetchTrigger = "manual"
	TriggerPeriodic FetchTrigger = "periodic"
)

// ChartEvent is published after every load attempt that changes chart data or fails.
type ChartEvent struct {
	Type       string       `json:"type"` // "loaded" | "refresh_failed"
	Trigger    FetchTrigger `json:"trigger"`
	Identifier Identifier   `json:"identifier"`
	Timeframe  string       `json:"timeframe"`
	Candles    int          `json:"candles"`
	Ticks      int          `json:"ticks"`
	Error      string       `json:"error,omitempty"`
	At         time.Time    `json:"at"`
}
