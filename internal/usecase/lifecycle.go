package usecase

import "TickChart/internal/domain/models"

type lifecycleEvent int

const (
	evInitialLoaded  lifecycleEvent = iota // host-delivered result parsed
	evRefreshStarted                       // manual refresh issued
	evFetchSucceeded                       // fallback, manual or periodic fetch returned data
	evFetchFailed                          // manual or periodic fetch failed
	evFallbackFailed                       // one-shot fallback fetch failed
)

func (e lifecycleEvent) String() string {
	switch e {
	case evInitialLoaded:
		return "initial_loaded"
	case evRefreshStarted:
		return "refresh_started"
	case evFetchSucceeded:
		return "fetch_succeeded"
	case evFetchFailed:
		return "fetch_failed"
	case evFallbackFailed:
		return "fallback_failed"
	default:
		return "unknown"
	}
}

// transitions is the complete lifecycle table. A (status, event) pair that is
// absent is ignored and leaves the status unchanged.
var transitions = map[models.LoadStatus]map[lifecycleEvent]models.LoadStatus{
	models.StatusWaitingForData: {
		evInitialLoaded:  models.StatusLoaded,
		evRefreshStarted: models.StatusRefreshing,
		evFetchSucceeded: models.StatusLoaded,
		evFetchFailed:    models.StatusError,
		evFallbackFailed: models.StatusWaitingForData,
	},
	models.StatusLoaded: {
		evInitialLoaded:  models.StatusLoaded,
		evRefreshStarted: models.StatusRefreshing,
		evFetchSucceeded: models.StatusLoaded,
		evFetchFailed:    models.StatusError,
	},
	models.StatusRefreshing: {
		// a late host result updates data but a fetch is still outstanding
		evInitialLoaded:  models.StatusRefreshing,
		evFetchSucceeded: models.StatusLoaded,
		evFetchFailed:    models.StatusError,
	},
	models.StatusError: {
		evInitialLoaded:  models.StatusLoaded,
		evRefreshStarted: models.StatusRefreshing,
		evFetchSucceeded: models.StatusLoaded,
		evFetchFailed:    models.StatusError,
	},
}

func nextStatus(from models.LoadStatus, ev lifecycleEvent) (models.LoadStatus, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}
