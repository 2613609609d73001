package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
	applogger "TickChart/pkg/logger"
)

var (
	ErrRefreshInFlight  = errors.New("refresh already in flight")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrSessionClosed    = errors.New("chart session closed")
)

const (
	defaultRefreshInterval = 1800 * time.Second
	defaultRequestTimeout  = 30 * time.Second
	eventPublishTimeout    = 5 * time.Second
)

// SessionOption configures a ChartSession.
type SessionOption func(*ChartSession)

func WithLogger(l *applogger.Logger) SessionOption {
	return func(s *ChartSession) {
		if l != nil {
			s.l = l
		}
	}
}

func WithMetrics(m domrepo.Metrics) SessionOption {
	return func(s *ChartSession) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithEventPublisher(p domrepo.EventPublisher) SessionOption {
	return func(s *ChartSession) { s.events = p }
}

func WithLocation(loc *time.Location) SessionOption {
	return func(s *ChartSession) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithRefreshInterval(d time.Duration) SessionOption {
	return func(s *ChartSession) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithRequestTimeout(d time.Duration) SessionOption {
	return func(s *ChartSession) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *ChartSession) {
		if now != nil {
			s.now = now
		}
	}
}

type refreshTimer struct {
	cancel     func()
	identifier models.Identifier
	generation uint64
}

// ChartSession drives the chart of one viewer: it owns the raw ticks, the
// timeframe controller and the refresh lifecycle.
//
// At most one data request is outstanding at any time. Requests run outside
// the session lock; their results replace the tick set and rebuild every
// derivation under the lock.
type ChartSession struct {
	requester domrepo.DataRequester
	scheduler domrepo.Scheduler
	metrics   domrepo.Metrics
	events    domrepo.EventPublisher
	l         *applogger.Logger
	loc       *time.Location
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	inFlight atomic.Bool
	bg       sync.WaitGroup

	mu           sync.Mutex
	state        models.LoadState
	identifier   models.Identifier
	ticks        []models.Tick
	hasData      bool
	view         *TimeframeController
	fallbackUsed bool
	closed       bool
	updatedAt    time.Time
	timer        refreshTimer
	timerGen     uint64

	subsMu  sync.Mutex
	subs    map[int]func(models.ViewSnapshot)
	nextSub int
}

func NewChartSession(requester domrepo.DataRequester, scheduler domrepo.Scheduler, tf domrepo.Timeframe, opts ...SessionOption) *ChartSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ChartSession{
		requester: requester,
		scheduler: scheduler,
		metrics:   nopMetrics{},
		l:         applogger.NewNop(),
		loc:       time.UTC,
		interval:  defaultRefreshInterval,
		timeout:   defaultRequestTimeout,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		state:     models.LoadState{Status: models.StatusWaitingForData},
		view:      NewTimeframeController(tf),
		subs:      make(map[int]func(models.ViewSnapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeliverInitialResult accepts the tool result handed over by the host. When
// it holds no usable payload the session issues its one fallback fetch. A
// failed fallback leaves the session waiting and is not reported.
func (s *ChartSession) DeliverInitialResult(ctx context.Context, raw []byte) error {
	payload, err := ExtractPayload(raw)
	if err != nil {
		s.l.Warn("Initial result unusable", applogger.Error(err))
		return s.fallback(ctx)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	ev := s.applyLocked(payload, "", models.TriggerInitial, evInitialLoaded)
	s.mu.Unlock()

	s.metrics.RecordFetch(string(models.TriggerInitial), "ok")
	s.afterChange(ev)
	return nil
}

func (s *ChartSession) fallback(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.fallbackUsed {
		s.mu.Unlock()
		s.l.Debug("Fallback already used")
		return nil
	}
	s.fallbackUsed = true
	s.mu.Unlock()

	if !s.inFlight.CompareAndSwap(false, true) {
		s.l.Debug("Fetch in flight, fallback skipped")
		return nil
	}
	defer s.inFlight.Store(false)

	payload, err := s.fetch(ctx, domrepo.RequestArgs{}, models.TriggerFallback)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err != nil {
		s.transitionLocked(evFallbackFailed, "")
		s.mu.Unlock()
		return nil
	}
	ev := s.applyLocked(payload, "", models.TriggerFallback, evFetchSucceeded)
	s.mu.Unlock()

	s.afterChange(ev)
	return nil
}

// Refresh issues a manual refresh. It fails fast with ErrRefreshInFlight when
// another request is outstanding. A non-empty symbol is forwarded as the
// requested identifier.
func (s *ChartSession) Refresh(ctx context.Context, symbol string) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.RecordFetch(string(models.TriggerManual), "rejected")
		return ErrRefreshInFlight
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.transitionLocked(evRefreshStarted, "")
	s.mu.Unlock()
	s.notify()

	requested := models.Identifier(strings.TrimSpace(symbol))
	payload, err := s.fetch(ctx, domrepo.RequestArgs{Identifier: requested}, models.TriggerManual)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err != nil {
		ev := s.failLocked(err, models.TriggerManual)
		s.mu.Unlock()
		s.afterChange(ev)
		return fmt.Errorf("refresh: %w", err)
	}
	ev := s.applyLocked(payload, requested, models.TriggerManual, evFetchSucceeded)
	s.mu.Unlock()

	s.afterChange(ev)
	return nil
}

func (s *ChartSession) periodicRefresh(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.timer.generation {
		s.mu.Unlock()
		return
	}
	id := s.identifier
	s.mu.Unlock()

	if !s.inFlight.CompareAndSwap(false, true) {
		s.l.Info("Fetch in flight, periodic refresh skipped", applogger.String("identifier", id.String()))
		s.metrics.RecordFetch(string(models.TriggerPeriodic), "skipped")
		return
	}
	defer s.inFlight.Store(false)

	payload, err := s.fetch(s.ctx, domrepo.RequestArgs{Identifier: id}, models.TriggerPeriodic)

	s.mu.Lock()
	if s.closed || gen != s.timer.generation {
		s.mu.Unlock()
		return
	}
	var ev *models.ChartEvent
	if err != nil {
		ev = s.failLocked(err, models.TriggerPeriodic)
	} else {
		ev = s.applyLocked(payload, id, models.TriggerPeriodic, evFetchSucceeded)
	}
	s.mu.Unlock()

	s.afterChange(ev)
}

func (s *ChartSession) fetch(ctx context.Context, args domrepo.RequestArgs, trigger models.FetchTrigger) (*models.RawPayload, error) {
	if ctx == nil {
		ctx = s.ctx
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	payload, err := s.requester.RequestData(ctx, args)
	elapsed := time.Since(start)
	s.metrics.RecordLatency("fetch_"+string(trigger), elapsed.Seconds())

	if err == nil && payload == nil {
		err = ErrNoPayload
	}
	if err != nil {
		s.metrics.RecordFetch(string(trigger), "error")
		fields := []applogger.Field{
			applogger.String("trigger", string(trigger)),
			applogger.String("identifier", args.Identifier.String()),
			applogger.Duration("elapsed", elapsed),
			applogger.Error(err),
		}
		if trigger == models.TriggerFallback {
			s.l.Warn("Fallback fetch failed", fields...)
		} else {
			s.metrics.RecordError("fetch")
			s.l.Error("Fetch failed", fields...)
		}
		return nil, err
	}

	s.metrics.RecordFetch(string(trigger), "ok")
	s.l.Debug("Fetch done",
		applogger.String("trigger", string(trigger)),
		applogger.String("identifier", payload.Identifier.String()),
		applogger.Int("items", len(payload.Items)),
		applogger.Duration("elapsed", elapsed),
	)
	return payload, nil
}

// applyLocked replaces the tick set with payload, rebuilds every derivation
// and arms the periodic refresh. Callers hold s.mu.
func (s *ChartSession) applyLocked(payload *models.RawPayload, requested models.Identifier, trigger models.FetchTrigger, ev lifecycleEvent) *models.ChartEvent {
	ticks := NormalizeTicks(payload.Items, s.loc)

	s.ticks = ticks
	s.hasData = true
	s.view.Rebuild(ticks)
	s.transitionLocked(ev, "")
	s.updatedAt = s.now()

	if id := resolveIdentifier(payload, requested); id != "" {
		s.identifier = id
	}
	s.armTimerLocked(s.identifier)

	if n := len(ticks); n > 0 {
		s.metrics.RecordLastPrice(s.identifier.String(), ticks[n-1].Price)
	}
	dropped := len(payload.Items) - len(ticks)
	s.l.Info("Chart data loaded",
		applogger.String("trigger", string(trigger)),
		applogger.String("identifier", s.identifier.String()),
		applogger.Int("ticks", len(ticks)),
		applogger.Int("dropped", dropped),
		applogger.Int("candles", len(s.view.Series())),
	)

	return &models.ChartEvent{
		Type:       "loaded",
		Trigger:    trigger,
		Identifier: s.identifier,
		Timeframe:  s.view.Timeframe().String(),
		Candles:    len(s.view.Series()),
		Ticks:      len(ticks),
		At:         s.updatedAt,
	}
}

// failLocked moves to the error state. Previous data stays on screen.
func (s *ChartSession) failLocked(err error, trigger models.FetchTrigger) *models.ChartEvent {
	s.transitionLocked(evFetchFailed, err.Error())
	return &models.ChartEvent{
		Type:       "refresh_failed",
		Trigger:    trigger,
		Identifier: s.identifier,
		Timeframe:  s.view.Timeframe().String(),
		Candles:    len(s.view.Series()),
		Ticks:      len(s.ticks),
		Error:      err.Error(),
		At:         s.now(),
	}
}

func (s *ChartSession) transitionLocked(ev lifecycleEvent, msg string) {
	next, ok := nextStatus(s.state.Status, ev)
	if !ok {
		s.l.Debug("Lifecycle event ignored",
			applogger.String("status", s.state.Status.String()),
			applogger.String("event", ev.String()),
		)
		return
	}
	s.state = models.LoadState{Status: next}
	if next == models.StatusError {
		s.state.Message = msg
	}
}

// armTimerLocked keeps exactly one periodic refresh scoped to id. A change of
// identifier cancels the old timer before the new one is created.
func (s *ChartSession) armTimerLocked(id models.Identifier) {
	if s.scheduler == nil {
		return
	}
	if s.timer.cancel != nil && s.timer.identifier == id {
		return
	}
	s.stopTimerLocked()

	s.timerGen++
	gen := s.timerGen
	cancel, err := s.scheduler.Every(s.interval, func() { s.periodicRefresh(gen) })
	if err != nil {
		s.metrics.RecordError("scheduler")
		s.l.Error("Failed to schedule periodic refresh", applogger.Error(err))
		return
	}
	s.timer = refreshTimer{cancel: cancel, identifier: id, generation: gen}
	s.l.Info("Periodic refresh armed",
		applogger.String("identifier", id.String()),
		applogger.Duration("interval", s.interval),
	)
}

func (s *ChartSession) stopTimerLocked() {
	if s.timer.cancel != nil {
		s.timer.cancel()
	}
	// generation 0 is never handed out, so stale callbacks always mismatch
	s.timer = refreshTimer{}
}

func resolveIdentifier(p *models.RawPayload, requested models.Identifier) models.Identifier {
	if p.Identifier != "" {
		return p.Identifier
	}
	for _, it := range p.Items {
		if it != nil && it.Identifier != "" {
			return it.Identifier
		}
	}
	return requested
}

// SetTimeframe switches the candle granularity and clears the selection.
func (s *ChartSession) SetTimeframe(tf string) error {
	parsed, err := domrepo.ParseTimeframe(tf)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimeframe, tf)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	changed, err := s.view.SetTimeframe(parsed, s.ticks)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if changed {
		s.notify()
	}
	return nil
}

// Select points the legend at the candle starting at t, falling back to the
// last candle when t is not a bucket start.
func (s *ChartSession) Select(t int64) (*models.LegendSummary, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	sum, ok := s.view.Select(t)
	s.mu.Unlock()

	s.notify()
	if !ok {
		return nil, nil
	}
	return &sum, nil
}

func (s *ChartSession) ClearSelection() {
	s.mu.Lock()
	s.view.ClearSelection()
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns what the viewer renders right now. The candle slice is
// shared; the session never mutates a published series.
func (s *ChartSession) Snapshot() models.ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ChartSession) snapshotLocked() models.ViewSnapshot {
	snap := models.ViewSnapshot{
		State:      s.state,
		Identifier: s.identifier,
		Timeframe:  s.view.Timeframe().String(),
		Candles:    []models.Candle{},
		TickCount:  len(s.ticks),
		UpdatedAt:  s.updatedAt,
	}
	if s.hasData {
		snap.Candles = s.view.Series()
		snap.Legend = s.view.Active()
		snap.Selected = s.view.Selected()
	}
	return snap
}

// Subscribe registers fn for snapshots after every change. fn must not block.
func (s *ChartSession) Subscribe(fn func(models.ViewSnapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *ChartSession) notify() {
	snap := s.Snapshot()

	s.subsMu.Lock()
	fns := make([]func(models.ViewSnapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *ChartSession) afterChange(ev *models.ChartEvent) {
	s.notify()
	if ev == nil || s.events == nil {
		return
	}
	// Close waits on bg; no publish may start once it has begun.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.bg.Add(1)
	s.mu.Unlock()
	go func(e models.ChartEvent) {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
		defer cancel()
		if err := s.events.PublishChartEvent(ctx, e); err != nil {
			s.metrics.RecordError("publish")
			s.l.Warn("Failed to publish chart event",
				applogger.String("type", e.Type),
				applogger.Error(err),
			)
		}
	}(*ev)
}

// Close cancels the periodic refresh and any in-flight periodic request. It
// waits for pending event publishes.
func (s *ChartSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	s.cancel()
	s.bg.Wait()
	s.l.Info("Chart session closed")
	return nil
}

func (s *ChartSession) InFlight() bool { return s.inFlight.Load() }

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)      {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}
