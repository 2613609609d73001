package repository

import (
	"context"
	"time"

	"TickChart/internal/domain/models"
)

// RequestArgs selects the security to fetch. A zero value asks the source for
// the security it is currently associated with.
type RequestArgs struct {
	Identifier models.Identifier `json:"identifier,omitempty"`
}

// DataRequester is the "request data" capability: one round trip that yields a
// raw tick payload.
type DataRequester interface {
	RequestData(ctx context.Context, args RequestArgs) (*models.RawPayload, error)
}

// Scheduler runs job every period until the returned cancel func is called.
// After cancel returns, job is not started again.
type Scheduler interface {
	Every(period time.Duration, job func()) (cancel func(), err error)
}

// EventPublisher ships chart lifecycle events to downstream consumers.
type EventPublisher interface {
	PublishChartEvent(ctx context.Context, e models.ChartEvent) error
}

type Metrics interface {
	RecordFetch(trigger, result string)
	RecordError(kind string)
	RecordLastPrice(identifier string, price float64)
	RecordLatency(op string, seconds float64)
}
