package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
	"TickChart/internal/usecase"
	"TickChart/pkg/config"
	xhttp "TickChart/pkg/http"
	applogger "TickChart/pkg/logger"
	"TickChart/pkg/scheduler"
)

type countingRequester struct{ calls atomic.Int32 }

func (r *countingRequester) RequestData(context.Context, domrepo.RequestArgs) (*models.RawPayload, error) {
	r.calls.Add(1)
	return &models.RawPayload{Identifier: "005930", Items: []*models.RawTick{{
		Date: "2024-03-04", TimeOfDay: "09:30:00", Price: models.NewDecimal(100), Volume: models.NewDecimal(1),
	}}}, nil
}

func newTestApp(t *testing.T, initialWait time.Duration, closers ...Closer) (*App, *countingRequester) {
	t.Helper()
	cfg := &config.Config{Environment: "test"}
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Refresh.InitialWait = initialWait
	cfg.Refresh.Interval = time.Hour

	l := applogger.NewNop()
	req := &countingRequester{}
	sched := scheduler.NewScheduler(l)
	session := usecase.NewChartSession(req, sched, domrepo.TF1m, usecase.WithLogger(l))
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetricsPath(""), xhttp.WithLogger(l))
	return New(cfg, l, session, sched, srv, closers...), req
}

func TestApp_StartupFallbackAndShutdown(t *testing.T) {
	var order []string
	closer := func(name string) Closer {
		return Closer{Name: name, Close: func() error { order = append(order, name); return nil }}
	}
	app, req := newTestApp(t, 0, closer("collector"), closer("producer"))

	var hookRan atomic.Bool
	app.OnShutdown(func() { hookRan.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	require.Eventually(t, func() bool {
		return app.session.Snapshot().State.Status == models.StatusLoaded
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), req.calls.Load())
	assert.Equal(t, 1, len(app.scheduler.Cron.Entries()), "periodic refresh armed after load")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, hookRan.Load())
	assert.Equal(t, []string{"collector", "producer"}, order)
	assert.Equal(t, 0, len(app.scheduler.Cron.Entries()), "timer cancelled on close")
}

func TestApp_StartupFallbackDisabled(t *testing.T) {
	app, req := newTestApp(t, -1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, app.RunContext(ctx))
	assert.Zero(t, req.calls.Load())
	assert.Equal(t, models.StatusWaitingForData, app.session.Snapshot().State.Status)
}

func TestApp_CloseErrorsAreJoined(t *testing.T) {
	boom := errors.New("boom")
	app, _ := newTestApp(t, -1, Closer{Name: "cache", Close: func() error { return boom }})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.RunContext(ctx)
	assert.ErrorIs(t, err, boom)
}
