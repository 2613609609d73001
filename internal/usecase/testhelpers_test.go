package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
)

var seoul = time.FixedZone("KST", 9*3600)

func rawTick(date, clock string, price, volume float64) *models.RawTick {
	return &models.RawTick{
		Date:       models.FlexString(date),
		TimeOfDay:  models.FlexString(clock),
		Identifier: "005930",
		Price:      models.NewDecimal(price),
		Volume:     models.NewDecimal(volume),
	}
}

func samplePayload() *models.RawPayload {
	items := []*models.RawTick{
		rawTick("2024-03-04", "09:30:00", 100, 10),
		rawTick("2024-03-04", "09:31:30", 101, 5),
		rawTick("2024-03-04", "09:35:00", 99, 7),
	}
	return &models.RawPayload{Identifier: "005930", Count: len(items), Items: items}
}

func at(clock string) int64 {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", "2024-03-04 "+clock, seoul)
	if err != nil {
		panic(err)
	}
	return t.Unix()
}

type fetchResult struct {
	payload *models.RawPayload
	err     error
}

// fakeRequester records every call. When gate is set, calls block until a
// result is sent on it.
type fakeRequester struct {
	mu      sync.Mutex
	calls   []domrepo.RequestArgs
	results []fetchResult
	gate    chan fetchResult
	started chan struct{}
}

func newFakeRequester(results ...fetchResult) *fakeRequester {
	return &fakeRequester{results: results, started: make(chan struct{}, 16)}
}

func (f *fakeRequester) RequestData(ctx context.Context, args domrepo.RequestArgs) (*models.RawPayload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	gate := f.gate
	var res fetchResult
	if gate == nil {
		if len(f.results) == 0 {
			f.mu.Unlock()
			return nil, errors.New("no scripted result")
		}
		res = f.results[0]
		f.results = f.results[1:]
	}
	f.mu.Unlock()
	f.started <- struct{}{}

	if gate != nil {
		select {
		case res = <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res.payload, res.err
}

func (f *fakeRequester) Calls() []domrepo.RequestArgs {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domrepo.RequestArgs, len(f.calls))
	copy(out, f.calls)
	return out
}

type scheduledJob struct {
	period    time.Duration
	job       func()
	cancelled bool
}

// fakeScheduler captures jobs so tests can fire them by hand.
type fakeScheduler struct {
	mu   sync.Mutex
	jobs []*scheduledJob
}

func (s *fakeScheduler) Every(period time.Duration, job func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &scheduledJob{period: period, job: job}
	s.jobs = append(s.jobs, j)
	return func() {
		s.mu.Lock()
		j.cancelled = true
		s.mu.Unlock()
	}, nil
}

func (s *fakeScheduler) Jobs() []*scheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*scheduledJob, len(s.jobs))
	copy(out, s.jobs)
	return out
}

func (s *fakeScheduler) Active() []*scheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*scheduledJob
	for _, j := range s.jobs {
		if !j.cancelled {
			out = append(out, j)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChartEvent
}

func (p *recordingPublisher) PublishChartEvent(_ context.Context, e models.ChartEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []models.ChartEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChartEvent(nil), p.events...)
}
