package repository

import "fmt"

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF3m  Timeframe = "3m"
	TF5m  Timeframe = "5m"
	TF10m Timeframe = "10m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
)

// Timeframes lists the supported timeframes from finest to coarsest.
var Timeframes = []Timeframe{TF1m, TF3m, TF5m, TF10m, TF30m, TF1h}

var bucketSeconds = map[Timeframe]int64{
	TF1m:  60,
	TF3m:  180,
	TF5m:  300,
	TF10m: 600,
	TF30m: 1800,
	TF1h:  3600,
}

// BucketSeconds returns the bucket length, or 0 for an unsupported timeframe.
func (tf Timeframe) BucketSeconds() int64 { return bucketSeconds[tf] }

func (tf Timeframe) String() string { return string(tf) }

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := bucketSeconds[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1m }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// ParseTimeframe is the strict variant of NormalizeTimeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %q", s)
	}
	return tf, nil
}
