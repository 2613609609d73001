package usecase

import (
	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
)

// TimeframeController owns the selected timeframe and everything derived from
// it: the candle series, its legend index and the pointer selection. Derived
// state is always recomputed from the full tick set, never patched.
//
// It is not safe for concurrent use; ChartSession serializes access.
type TimeframeController struct {
	tf       domrepo.Timeframe
	series   []models.Candle
	index    *LegendIndex
	selected *int64
}

func NewTimeframeController(tf domrepo.Timeframe) *TimeframeController {
	if !domrepo.IsValidTimeframe(tf) {
		tf = domrepo.DefaultTimeframe()
	}
	return &TimeframeController{
		tf:     tf,
		series: []models.Candle{},
		index:  BuildLegendIndex(nil),
	}
}

func (c *TimeframeController) Timeframe() domrepo.Timeframe { return c.tf }

// SetTimeframe switches granularity and re-aggregates ticks. It reports false
// when tf is already selected, in which case nothing is recomputed.
func (c *TimeframeController) SetTimeframe(tf domrepo.Timeframe, ticks []models.Tick) (bool, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return false, ErrInvalidTimeframe
	}
	if tf == c.tf {
		return false, nil
	}
	c.tf = tf
	c.Rebuild(ticks)
	return true, nil
}

// Rebuild recomputes the series and index and clears the selection.
func (c *TimeframeController) Rebuild(ticks []models.Tick) {
	c.series = nil
	c.index = nil
	c.selected = nil

	c.series = Aggregate(ticks, c.tf)
	c.index = BuildLegendIndex(c.series)
}

// Select points the legend at t. When t is not a bucket start the selection is
// cleared and the last candle is returned instead.
func (c *TimeframeController) Select(t int64) (models.LegendSummary, bool) {
	if s, ok := c.index.Lookup(t); ok {
		sel := t
		c.selected = &sel
		return s, true
	}
	c.selected = nil
	return c.index.Last()
}

func (c *TimeframeController) ClearSelection() { c.selected = nil }

// Active returns the summary the legend shows right now.
func (c *TimeframeController) Active() *models.LegendSummary {
	if c.selected != nil {
		if s, ok := c.index.Lookup(*c.selected); ok {
			return &s
		}
	}
	if s, ok := c.index.Last(); ok {
		return &s
	}
	return nil
}

func (c *TimeframeController) Series() []models.Candle { return c.series }

func (c *TimeframeController) Index() *LegendIndex { return c.index }

func (c *TimeframeController) Selected() *int64 {
	if c.selected == nil {
		return nil
	}
	v := *c.selected
	return &v
}
