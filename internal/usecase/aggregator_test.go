package usecase

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
)

func sampleTicks() []models.Tick {
	return NormalizeTicks(samplePayload().Items, seoul)
}

func TestAggregate_FiveMinutes(t *testing.T) {
	got := Aggregate(sampleTicks(), domrepo.TF5m)
	require.Equal(t, []models.Candle{
		{BucketStart: at("09:30:00"), Open: 100, High: 101, Low: 100, Close: 101, Volume: 15},
		{BucketStart: at("09:35:00"), Open: 99, High: 99, Low: 99, Close: 99, Volume: 7},
	}, got)
}

func TestAggregate_OneMinute(t *testing.T) {
	got := Aggregate(sampleTicks(), domrepo.TF1m)
	require.Len(t, got, 3)
	starts := []int64{at("09:30:00"), at("09:31:00"), at("09:35:00")}
	prices := []float64{100, 101, 99}
	for i, c := range got {
		assert.Equal(t, starts[i], c.BucketStart)
		assert.Equal(t, prices[i], c.Open)
		assert.Equal(t, prices[i], c.High)
		assert.Equal(t, prices[i], c.Low)
		assert.Equal(t, prices[i], c.Close)
	}
}

func TestAggregate_Empty(t *testing.T) {
	for _, tf := range domrepo.Timeframes {
		got := Aggregate(nil, tf)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestAggregate_UnknownTimeframeUsesDefault(t *testing.T) {
	assert.Equal(t, Aggregate(sampleTicks(), domrepo.TF1m), Aggregate(sampleTicks(), domrepo.Timeframe("2m")))
}

func TestAggregate_NegativeTimestamps(t *testing.T) {
	ticks := []models.Tick{
		{Timestamp: -61, Price: 1},
		{Timestamp: -60, Price: 2},
		{Timestamp: -1, Price: 3},
		{Timestamp: 0, Price: 4},
	}
	got := Aggregate(ticks, domrepo.TF1m)
	require.Len(t, got, 3)
	assert.Equal(t, int64(-120), got[0].BucketStart)
	assert.Equal(t, int64(-60), got[1].BucketStart)
	assert.Equal(t, 3.0, got[1].Close)
	assert.Equal(t, int64(0), got[2].BucketStart)
}

func randomTicks(r *rand.Rand, n int) []models.Tick {
	ticks := make([]models.Tick, n)
	ts := int64(1_709_512_200)
	for i := range ticks {
		ts += int64(r.Intn(90))
		ticks[i] = models.Tick{Timestamp: ts, Price: 50 + r.Float64()*100, Volume: float64(r.Intn(1000))}
	}
	return ticks
}

func TestAggregate_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		ticks := randomTicks(r, 1+r.Intn(500))
		var total float64
		for _, tk := range ticks {
			total += tk.Volume
		}
		for _, tf := range domrepo.Timeframes {
			series := Aggregate(ticks, tf)
			require.Equal(t, series, Aggregate(ticks, tf), "deterministic")

			length := tf.BucketSeconds()
			var vol float64
			for i, c := range series {
				assert.Zero(t, c.BucketStart%length, "aligned")
				assert.LessOrEqual(t, c.Low, c.Open)
				assert.LessOrEqual(t, c.Low, c.Close)
				assert.GreaterOrEqual(t, c.High, c.Open)
				assert.GreaterOrEqual(t, c.High, c.Close)
				if i > 0 {
					assert.Greater(t, c.BucketStart, series[i-1].BucketStart, "strictly increasing")
				}
				vol += c.Volume
			}
			assert.InDelta(t, total, vol, 1e-6)
		}
	}
}
