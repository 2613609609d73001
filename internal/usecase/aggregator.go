package usecase

import (
	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
)

// Aggregate buckets time-ordered ticks into candles of the given timeframe in
// one pass. The result is strictly increasing by BucketStart. An unsupported
// timeframe is treated as the default one.
func Aggregate(ticks []models.Tick, tf domrepo.Timeframe) []models.Candle {
	length := domrepo.NormalizeTimeframe(string(tf)).BucketSeconds()

	out := make([]models.Candle, 0, estimateBuckets(ticks, length))
	var acc models.Candle
	open := false

	for _, t := range ticks {
		start := bucketStart(t.Timestamp, length)
		if open && start == acc.BucketStart {
			if t.Price > acc.High {
				acc.High = t.Price
			}
			if t.Price < acc.Low {
				acc.Low = t.Price
			}
			acc.Close = t.Price
			acc.Volume += t.Volume
			continue
		}
		if open {
			out = append(out, acc)
		}
		acc = models.Candle{
			BucketStart: start,
			Open:        t.Price,
			High:        t.Price,
			Low:         t.Price,
			Close:       t.Price,
			Volume:      t.Volume,
		}
		open = true
	}
	if open {
		out = append(out, acc)
	}
	return out
}

// bucketStart floors ts to a multiple of length, also for negative ts.
func bucketStart(ts, length int64) int64 {
	q := ts / length
	if ts%length < 0 {
		q--
	}
	return q * length
}

func estimateBuckets(ticks []models.Tick, length int64) int {
	if len(ticks) == 0 {
		return 0
	}
	span := ticks[len(ticks)-1].Timestamp - ticks[0].Timestamp
	n := int(span/length) + 1
	if n > len(ticks) || n < 1 {
		return len(ticks)
	}
	return n
}
