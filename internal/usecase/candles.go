package usecase

import (
	"fmt"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
)

// CandlesUseCase serves read-side chart queries off a session.
type CandlesUseCase struct {
	session *ChartSession
}

func NewCandlesUseCase(session *ChartSession) *CandlesUseCase {
	return &CandlesUseCase{session: session}
}

type GetChartParams struct {
	// Limit keeps only the most recent candles; 0 means all.
	Limit int
}

func (uc *CandlesUseCase) GetChart(p GetChartParams) (models.ViewSnapshot, error) {
	if p.Limit < 0 {
		return models.ViewSnapshot{}, fmt.Errorf("limit must be >= 0")
	}
	snap := uc.session.Snapshot()
	if p.Limit > 0 && len(snap.Candles) > p.Limit {
		snap.Candles = snap.Candles[len(snap.Candles)-p.Limit:]
	}
	return snap, nil
}

// GetLegend resolves the legend for t without changing the selection.
func (uc *CandlesUseCase) GetLegend(t int64) (*models.LegendSummary, bool) {
	uc.session.mu.Lock()
	defer uc.session.mu.Unlock()
	s, ok := uc.session.view.Index().Lookup(t)
	if !ok {
		return nil, false
	}
	return &s, true
}

// TimeframeInfo describes one supported granularity.
type TimeframeInfo struct {
	Timeframe     string `json:"timeframe"`
	BucketSeconds int64  `json:"bucketSeconds"`
}

// Timeframes lists the supported granularities from finest to coarsest.
func Timeframes() []TimeframeInfo {
	out := make([]TimeframeInfo, 0, len(domrepo.Timeframes))
	for _, tf := range domrepo.Timeframes {
		out = append(out, TimeframeInfo{Timeframe: tf.String(), BucketSeconds: tf.BucketSeconds()})
	}
	return out
}
