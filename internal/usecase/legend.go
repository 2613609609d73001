package usecase

import "TickChart/internal/domain/models"

// LegendIndex maps bucket starts to legend summaries. Lookups are exact; it
// never searches for the nearest bucket.
type LegendIndex struct {
	byStart map[int64]models.LegendSummary
	last    *models.LegendSummary
}

// BuildLegendIndex indexes every candle of series. The last candle becomes the
// default selection.
func BuildLegendIndex(series []models.Candle) *LegendIndex {
	ix := &LegendIndex{byStart: make(map[int64]models.LegendSummary, len(series))}
	for _, c := range series {
		ix.byStart[c.BucketStart] = Summarize(c)
	}
	if n := len(series); n > 0 {
		s := Summarize(series[n-1])
		ix.last = &s
	}
	return ix
}

// Summarize derives the legend values of one candle.
func Summarize(c models.Candle) models.LegendSummary {
	s := models.LegendSummary{
		BucketStart: c.BucketStart,
		Open:        c.Open,
		High:        c.High,
		Low:         c.Low,
		Close:       c.Close,
		Volume:      c.Volume,
	}
	if c.Open != 0 {
		pct := (c.Close - c.Open) / c.Open * 100
		s.ChangePercent = &pct
	}
	return s
}

// Lookup returns the summary of the candle starting exactly at t.
func (ix *LegendIndex) Lookup(t int64) (models.LegendSummary, bool) {
	s, ok := ix.byStart[t]
	return s, ok
}

// Last returns the summary of the last candle, if any.
func (ix *LegendIndex) Last() (models.LegendSummary, bool) {
	if ix.last == nil {
		return models.LegendSummary{}, false
	}
	return *ix.last, true
}

// Resolve is Lookup with the crosshair fallback: a time that is not a bucket
// start resolves to the last candle.
func (ix *LegendIndex) Resolve(t int64) (models.LegendSummary, bool) {
	if s, ok := ix.Lookup(t); ok {
		return s, true
	}
	return ix.Last()
}
