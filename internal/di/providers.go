package di

import (
	"context"
	"fmt"
	"time"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
	"TickChart/internal/handler/api"
	internalrepo "TickChart/internal/repository"
	"TickChart/internal/service/ratelimit"
	"TickChart/internal/usecase"
	"TickChart/pkg/cache"
	pkgch "TickChart/pkg/clickhouse"
	"TickChart/pkg/config"
	xhttp "TickChart/pkg/http"
	pkgkafka "TickChart/pkg/kafka"
	applogger "TickChart/pkg/logger"
	"TickChart/pkg/metrics"
	"TickChart/pkg/scheduler"
	"TickChart/pkg/server"
	"TickChart/pkg/util"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Environment != "production"),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the app logger. Error logs are aggregated and shipped to
// the logs topic when Kafka is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
	}
	return l.With(applogger.String("service", "tickchart"), applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideLocation resolves the market time zone ticks are stamped in.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	loc, err := util.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market timezone: %w", err)
	}
	return loc, nil
}

// ProvideCache creates the cache backing the requester decorator.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	memory := []cache.MemoryOption{cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)}
	if cfg.Cache.Type == "memory" {
		return cache.NewMemoryCache(memory...), nil
	}

	redisCache, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Type == "redis" {
		return redisCache, nil
	}
	return cache.NewLayeredCache(redisCache,
		cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
		cache.WithLayeredMemoryTTL(cfg.Source.CacheTTL),
	), nil
}

// ProvideClickHouseClient creates a ClickHouse client when it is the tick source.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Source.Type != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideDataRequester picks the tick source and wraps it with the cache.
func ProvideDataRequester(
	cfg *config.Config,
	l *applogger.Logger,
	ch *pkgch.Client,
	c cache.Service,
	loc *time.Location,
) (domrepo.DataRequester, error) {
	var next domrepo.DataRequester
	switch cfg.Source.Type {
	case "http":
		next = internalrepo.NewHTTPToolRequester(cfg.Source.ToolURL, cfg.Source.ToolName, cfg.Refresh.RequestTimeout, l)
	case "clickhouse":
		r, err := internalrepo.NewClickHouseRequester(ch.DB(), cfg.ClickHouse.Table, models.Identifier(cfg.Market.Identifier), loc, l)
		if err != nil {
			return nil, err
		}
		next = r
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}

	if cfg.Source.CacheTTL <= 0 {
		return next, nil
	}
	return internalrepo.NewCachedRequester(next, c, cfg.Source.CacheTTL, l), nil
}

// ProvideEventPublisher publishes chart events to Kafka when enabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.EventPublisher {
	if producer == nil || cfg.Kafka.EventsTopic == "" {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideScheduler creates the cron runner for periodic refresh.
func ProvideScheduler(l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.NewScheduler(l)
}

// ProvideChartSession creates the chart session use case.
func ProvideChartSession(
	cfg *config.Config,
	requester domrepo.DataRequester,
	sched *scheduler.Scheduler,
	l *applogger.Logger,
	rec *metrics.Recorder,
	pub domrepo.EventPublisher,
	loc *time.Location,
) (*usecase.ChartSession, error) {
	tf, err := domrepo.ParseTimeframe(cfg.Market.DefaultTimeframe)
	if err != nil {
		return nil, fmt.Errorf("market.default_timeframe: %w", err)
	}
	return usecase.NewChartSession(requester, sched, tf,
		usecase.WithLogger(l),
		usecase.WithMetrics(rec),
		usecase.WithEventPublisher(pub),
		usecase.WithLocation(loc),
		usecase.WithRefreshInterval(cfg.Refresh.Interval),
		usecase.WithRequestTimeout(cfg.Refresh.RequestTimeout),
	), nil
}

// ProvideCandlesUseCase creates the read-side chart use case.
func ProvideCandlesUseCase(session *usecase.ChartSession) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(session)
}

// ProvideRateLimiter limits manual refreshes per client.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHub creates the websocket hub and subscribes it to session changes.
func ProvideHub(cfg *config.Config, session *usecase.ChartSession, l *applogger.Logger, rec *metrics.Recorder) *api.Hub {
	hub := api.NewHub(session, l, cfg.Server.CORSOrigins, rec.SetViewers)
	session.Subscribe(hub.Broadcast)
	return hub
}

// ProvideChartHandler creates the HTTP handler.
func ProvideChartHandler(
	l *applogger.Logger,
	session *usecase.ChartSession,
	candles *usecase.CandlesUseCase,
	limiter *ratelimit.Limiter,
	hub *api.Hub,
) *api.ChartHandler {
	return api.NewChartHandler(l, session, candles, limiter, hub)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, handler *api.ChartHandler, l *applogger.Logger, ch *pkgch.Client) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck(func(ctx context.Context) error {
			return ch.Health(ctx)
		}))
	}
	return xhttp.NewServer(handler, opts...)
}

// ProvideApp creates the application server. Closers run in order: the log
// collector flushes through the producer before it is closed.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	session *usecase.ChartSession,
	sched *scheduler.Scheduler,
	srv *xhttp.Server,
	hub *api.Hub,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	c cache.Service,
) *server.App {
	closers := []server.Closer{
		{Name: "log collector", Close: func() error { l.CloseCollector(); return nil }},
	}
	if producer != nil {
		closers = append(closers, server.CloserOf("kafka producer", producer))
	}
	if ch != nil {
		closers = append(closers, server.CloserOf("clickhouse", ch))
	}
	closers = append(closers, server.CloserOf("cache", c))

	app := server.New(cfg, l, session, sched, srv, closers...)
	app.OnShutdown(hub.Close)
	return app
}
