package usecase

import (
	"math"
	"sort"
	"time"

	"TickChart/internal/domain/models"
	"TickChart/pkg/util"
)

// NormalizeTicks turns raw records into time-ordered ticks.
//
// Records without a date, a time of day or a price, or whose date+time cannot
// be parsed in loc, are dropped. Survivors are stable-sorted by timestamp, so
// ticks sharing a second keep their input order. Missing or negative volume
// counts as zero.
func NormalizeTicks(raw []*models.RawTick, loc *time.Location) []models.Tick {
	out := make([]models.Tick, 0, len(raw))
	for _, r := range raw {
		if r == nil || !r.Price.Valid {
			continue
		}
		if math.IsNaN(r.Price.Value) || math.IsInf(r.Price.Value, 0) {
			continue
		}
		ts, ok := util.ParseDateClock(string(r.Date), string(r.TimeOfDay), loc)
		if !ok {
			continue
		}
		vol := 0.0
		if r.Volume.Valid && r.Volume.Value > 0 && !math.IsInf(r.Volume.Value, 0) {
			vol = r.Volume.Value
		}
		out = append(out, models.Tick{Timestamp: ts.Unix(), Price: r.Price.Value, Volume: vol})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
