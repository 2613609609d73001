package models

// Candle is the OHLCV aggregate of all ticks inside one time bucket.
type Candle struct {
	BucketStart int64   `json:"bucketStart"` // unix seconds, multiple of the bucket length
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
}

// LegendSummary is what the legend displays for a single candle.
type LegendSummary struct {
	BucketStart   int64    `json:"bucketStart"`
	Open          float64  `json:"open"`
	High          float64  `json:"high"`
	Low           float64  `json:"low"`
	Close         float64  `json:"close"`
	ChangePercent *float64 `json:"changePercent"` // nil when open == 0
	Volume        float64  `json:"volume"`
}
