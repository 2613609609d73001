package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TickChart/internal/domain/models"
	"TickChart/internal/usecase"
	"TickChart/pkg/config"
	xhttp "TickChart/pkg/http"
	applogger "TickChart/pkg/logger"
	"TickChart/pkg/scheduler"
)

// Closer is an infrastructure client released on shutdown, in registration order.
type Closer struct {
	Name  string
	Close func() error
}

// CloserOf adapts an io.Closer.
func CloserOf(name string, c io.Closer) Closer {
	return Closer{Name: name, Close: c.Close}
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	session    *usecase.ChartSession
	scheduler  *scheduler.Scheduler
	httpServer *xhttp.Server
	closers    []Closer
	onShutdown []func()
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	session *usecase.ChartSession,
	sched *scheduler.Scheduler,
	httpServer *xhttp.Server,
	closers ...Closer,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		session:    session,
		scheduler:  sched,
		httpServer: httpServer,
		closers:    closers,
	}
}

// OnShutdown registers fn to run before the session is closed.
func (a *App) OnShutdown(fn func()) { a.onShutdown = append(a.onShutdown, fn) }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	a.scheduler.Start()

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return errors.Join(err, a.shutdown())
	}

	if wait := a.cfg.Refresh.InitialWait; wait >= 0 {
		startup := time.AfterFunc(wait, a.startupFallback)
		defer startup.Stop()
	}

	a.l.Info("TickChart started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("source", a.cfg.Source.Type),
		applogger.String("timeframe", a.cfg.Market.DefaultTimeframe),
		applogger.Duration("refresh_interval", a.cfg.Refresh.Interval),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// startupFallback runs the one-shot fallback fetch when no host result arrived.
func (a *App) startupFallback() {
	if a.session.Snapshot().State.Status != models.StatusWaitingForData {
		return
	}
	a.l.Info("No initial result delivered, fetching")
	if err := a.session.DeliverInitialResult(context.Background(), nil); err != nil && !errors.Is(err, usecase.ErrSessionClosed) {
		a.l.Warn("startup fetch failed", applogger.Error(err))
	}
}

// shutdown stops serving first, then the session, then infrastructure.
func (a *App) shutdown() error {
	a.l.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	for _, fn := range a.onShutdown {
		fn()
	}
	if err := a.session.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.l.Warn("scheduler stop error", applogger.Error(err))
		errs = append(errs, err)
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("component", c.Name), applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
