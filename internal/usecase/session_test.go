package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
)

func newTestSession(req domrepo.DataRequester, sched *fakeScheduler, opts ...SessionOption) *ChartSession {
	opts = append([]SessionOption{WithLocation(seoul), WithRefreshInterval(time.Hour)}, opts...)
	return NewChartSession(req, sched, domrepo.TF5m, opts...)
}

func waitStarted(t *testing.T, f *fakeRequester) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("request not started")
	}
}

const initialResult = `{"identifier":"005930","count":3,"items":[
	{"date":"2024-03-04","timeOfDay":"09:30:00","identifier":"005930","price":100,"volume":10},
	{"date":"2024-03-04","timeOfDay":"09:31:30","identifier":"005930","price":101,"volume":5},
	{"date":"2024-03-04","timeOfDay":"09:35:00","identifier":"005930","price":99,"volume":7}
]}`

func TestSession_StartsWaiting(t *testing.T) {
	s := newTestSession(newFakeRequester(), &fakeScheduler{})
	snap := s.Snapshot()
	assert.Equal(t, models.StatusWaitingForData, snap.State.Status)
	assert.Empty(t, snap.Candles)
	assert.Nil(t, snap.Legend)
	assert.Nil(t, snap.Selected)
}

func TestSession_InitialResultLoads(t *testing.T) {
	req := newFakeRequester()
	sched := &fakeScheduler{}
	s := newTestSession(req, sched)

	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(initialResult)))

	snap := s.Snapshot()
	assert.Equal(t, models.StatusLoaded, snap.State.Status)
	assert.Equal(t, "005930", snap.Identifier.String())
	assert.Len(t, snap.Candles, 2)
	require.NotNil(t, snap.Legend)
	assert.Equal(t, at("09:35:00"), snap.Legend.BucketStart)
	assert.Empty(t, req.Calls(), "no fetch for a parseable initial result")

	active := sched.Active()
	require.Len(t, active, 1)
	assert.Equal(t, time.Hour, active[0].period)
}

func TestSession_UnparseableInitialFallsBackOnce(t *testing.T) {
	req := newFakeRequester(fetchResult{err: errors.New("host unavailable")})
	sched := &fakeScheduler{}
	s := newTestSession(req, sched)

	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(`{"content":[{"type":"text","text":"oops"}]}`)))
	require.Len(t, req.Calls(), 1)
	assert.Equal(t, domrepo.RequestArgs{}, req.Calls()[0])

	snap := s.Snapshot()
	assert.Equal(t, models.StatusWaitingForData, snap.State.Status)
	assert.Empty(t, snap.State.Message)
	assert.Empty(t, sched.Jobs(), "no timer before data is loaded")

	// a second bad result does not re-arm the fallback
	require.NoError(t, s.DeliverInitialResult(context.Background(), nil))
	assert.Len(t, req.Calls(), 1)
}

func TestSession_FallbackSuccessLoads(t *testing.T) {
	req := newFakeRequester(fetchResult{payload: samplePayload()})
	s := newTestSession(req, &fakeScheduler{})

	require.NoError(t, s.DeliverInitialResult(context.Background(), nil))
	assert.Equal(t, models.StatusLoaded, s.Snapshot().State.Status)
	assert.Len(t, s.Snapshot().Candles, 2)
}

func TestSession_ManualRefreshSingleFlight(t *testing.T) {
	req := newFakeRequester()
	req.gate = make(chan fetchResult)
	s := newTestSession(req, &fakeScheduler{})

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background(), "005930") }()
	waitStarted(t, req)

	before := s.Snapshot()
	assert.Equal(t, models.StatusRefreshing, before.State.Status)

	err := s.Refresh(context.Background(), "000660")
	assert.ErrorIs(t, err, ErrRefreshInFlight)
	assert.Equal(t, before.State, s.Snapshot().State)

	req.gate <- fetchResult{payload: samplePayload()}
	require.NoError(t, <-done)

	calls := req.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.Identifier("005930"), calls[0].Identifier)
	assert.Equal(t, models.StatusLoaded, s.Snapshot().State.Status)
}

func TestSession_RefreshFailureKeepsData(t *testing.T) {
	req := newFakeRequester(fetchResult{err: errors.New("timeout talking to host")})
	s := newTestSession(req, &fakeScheduler{})
	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(initialResult)))

	err := s.Refresh(context.Background(), "")
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, models.StatusError, snap.State.Status)
	assert.Equal(t, "timeout talking to host", snap.State.Message)
	assert.Len(t, snap.Candles, 2)
	assert.Equal(t, 3, snap.TickCount)

	// recoverable by another manual refresh
	req.results = append(req.results, fetchResult{payload: samplePayload()})
	require.NoError(t, s.Refresh(context.Background(), ""))
	assert.Equal(t, models.StatusLoaded, s.Snapshot().State.Status)
}

func TestSession_RefreshClearsSelection(t *testing.T) {
	next := &models.RawPayload{Identifier: "005930", Items: []*models.RawTick{
		rawTick("2024-03-04", "09:30:00", 100, 1),
		rawTick("2024-03-04", "09:40:10", 103, 1),
	}}
	req := newFakeRequester(fetchResult{payload: next})
	s := newTestSession(req, &fakeScheduler{})
	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(initialResult)))

	sel, err := s.Select(at("09:30:00"))
	require.NoError(t, err)
	require.NotNil(t, sel)
	require.NotNil(t, s.Snapshot().Selected)

	require.NoError(t, s.Refresh(context.Background(), ""))

	snap := s.Snapshot()
	assert.Nil(t, snap.Selected)
	require.NotNil(t, snap.Legend)
	assert.Equal(t, at("09:40:00"), snap.Legend.BucketStart)
}

func TestSession_SetTimeframe(t *testing.T) {
	req := newFakeRequester()
	s := newTestSession(req, &fakeScheduler{})
	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(initialResult)))

	require.NoError(t, s.SetTimeframe("1m"))
	snap := s.Snapshot()
	assert.Equal(t, "1m", snap.Timeframe)
	assert.Len(t, snap.Candles, 3)
	assert.Empty(t, req.Calls(), "switching timeframe never fetches")

	assert.ErrorIs(t, s.SetTimeframe("2m"), ErrInvalidTimeframe)
	assert.Equal(t, "1m", s.Snapshot().Timeframe)
}

func TestSession_PeriodicRefreshUsesLoadedIdentifier(t *testing.T) {
	req := newFakeRequester(fetchResult{payload: samplePayload()})
	sched := &fakeScheduler{}
	s := newTestSession(req, sched)
	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(initialResult)))

	jobs := sched.Active()
	require.Len(t, jobs, 1)
	jobs[0].job()

	calls := req.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.Identifier("005930"), calls[0].Identifier)
	assert.Equal(t, models.StatusLoaded, s.Snapshot().State.Status)
	assert.Len(t, sched.Active(), 1, "same identifier keeps the timer")
}

func TestSession_PeriodicSkippedWhileInFlight(t *testing.T) {
	req := newFakeRequester()
	sched := &fakeScheduler{}
	s := newTestSession(req, sched)
	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(initialResult)))

	req.gate = make(chan fetchResult)
	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background(), "") }()
	waitStarted(t, req)

	sched.Active()[0].job()
	assert.Len(t, req.Calls(), 1)

	req.gate <- fetchResult{payload: samplePayload()}
	require.NoError(t, <-done)
}

func TestSession_TimerRescopedOnIdentifierChange(t *testing.T) {
	other := &models.RawPayload{Identifier: "000660", Items: []*models.RawTick{rawTick("2024-03-04", "10:00:00", 150, 1)}}
	req := newFakeRequester(fetchResult{payload: other}, fetchResult{payload: other})
	sched := &fakeScheduler{}
	s := newTestSession(req, sched)
	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(initialResult)))
	first := sched.Active()[0]

	require.NoError(t, s.Refresh(context.Background(), "000660"))

	assert.True(t, first.cancelled)
	active := sched.Active()
	require.Len(t, active, 1)
	assert.NotSame(t, first, active[0])

	// a stale callback does nothing
	first.job()
	assert.Len(t, req.Calls(), 1)

	active[0].job()
	calls := req.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, models.Identifier("000660"), calls[1].Identifier)
}

func TestSession_CloseStopsPeriodicRefresh(t *testing.T) {
	req := newFakeRequester(fetchResult{payload: samplePayload()})
	sched := &fakeScheduler{}
	s := newTestSession(req, sched)
	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(initialResult)))
	job := sched.Active()[0]

	require.NoError(t, s.Close())
	assert.True(t, job.cancelled)
	assert.Empty(t, sched.Active())

	job.job()
	assert.Empty(t, req.Calls())
	assert.ErrorIs(t, s.Refresh(context.Background(), ""), ErrSessionClosed)
	assert.NoError(t, s.Close())
}

func TestSession_SubscribeAndEvents(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestSession(newFakeRequester(), &fakeScheduler{}, WithEventPublisher(pub))

	var got []models.ViewSnapshot
	unsubscribe := s.Subscribe(func(v models.ViewSnapshot) { got = append(got, v) })

	require.NoError(t, s.DeliverInitialResult(context.Background(), []byte(initialResult)))
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusLoaded, got[0].State.Status)

	unsubscribe()
	s.ClearSelection()
	assert.Len(t, got, 1)

	require.NoError(t, s.Close())
	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "loaded", events[0].Type)
	assert.Equal(t, models.TriggerInitial, events[0].Trigger)
	assert.Equal(t, 2, events[0].Candles)
	assert.Equal(t, 3, events[0].Ticks)
}

func TestSession_NoEventPublishedAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestSession(newFakeRequester(), &fakeScheduler{}, WithEventPublisher(pub))
	require.NoError(t, s.Close())

	// a load that unlocked just before Close finishes its bookkeeping late
	s.afterChange(&models.ChartEvent{Type: "loaded", Trigger: models.TriggerManual})
	s.bg.Wait()
	assert.Empty(t, pub.Events())
}

func TestSession_RefreshDetachedFromCallerSurvivesCancel(t *testing.T) {
	req := newFakeRequester()
	req.gate = make(chan fetchResult)
	s := newTestSession(req, &fakeScheduler{}, WithRequestTimeout(2*time.Second))
	defer s.Close()

	caller, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.WithoutCancel(caller), "") }()
	waitStarted(t, req)

	cancel()
	req.gate <- fetchResult{payload: samplePayload()}
	require.NoError(t, <-done)
	assert.Equal(t, models.StatusLoaded, s.Snapshot().State.Status)
}
