package di

import (
	"fmt"

	domrepo "EquitySchema/internal/domain/repository"
	"EquitySchema/internal/overrides"
	"EquitySchema/internal/registry"
	internalrepo "EquitySchema/internal/repository"
	"EquitySchema/internal/service/chart"
	"EquitySchema/internal/service/ratelimit"
	"EquitySchema/internal/usecase"
	"EquitySchema/pkg/app"
	pkgch "EquitySchema/pkg/clickhouse"
	"EquitySchema/pkg/config"
	xhttp "EquitySchema/pkg/http"
	pkgkafka "EquitySchema/pkg/kafka"
	applogger "EquitySchema/pkg/logger"
	"EquitySchema/pkg/metrics"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegistry loads and validates the ticker universe.
func ProvideRegistry(cfg *config.Config) (*registry.Registry, error) {
	return registry.Load(cfg.Universe.StocksFile, cfg.Universe.ETFsFile)
}

// ProvideOverrides loads the curated override dataset.
func ProvideOverrides(cfg *config.Config) (overrides.Set, error) {
	return overrides.LoadFile(cfg.Universe.OverridesFile)
}

// ProvideHTTPClient creates the vendor-facing HTTP client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Source.Timeout),
		xhttp.WithDefaultHeader("User-Agent", cfg.Source.UserAgent),
	)
}

// ProvideRateLimiter creates the token bucket shared by all workers.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideMarketSource creates the chart-API vendor client.
func ProvideMarketSource(httpClient *xhttp.Client, limiter *ratelimit.Limiter, cfg *config.Config, l *applogger.Logger) domrepo.MarketSource {
	c := chart.New(httpClient, limiter, chart.Options{
		BaseURL:      cfg.Source.BaseURL,
		MaxAttempts:  cfg.Source.Retry.MaxAttempts,
		BackoffMin:   cfg.Source.Retry.BackoffMin,
		BackoffMax:   cfg.Source.Retry.BackoffMax,
		RateCapacity: cfg.Source.RateLimit.Capacity,
		RateRefill:   cfg.Source.RateLimit.RefillPerSec,
		WindowYears:  cfg.Pipeline.WindowYears,
	})
	c.SetLogger(l)
	return c
}

// ProvideFactStore creates the configured store backend.
func ProvideFactStore(cfg *config.Config, l *applogger.Logger) (domrepo.FactStore, error) {
	switch cfg.Store.Backend {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store := internalrepo.NewCHStore(client, cfg.ClickHouse.Database)
		store.SetLogger(l)
		return store, nil
	default:
		store := internalrepo.NewFileStore(cfg.Store.Dir)
		store.SetLogger(l)
		return store, nil
	}
}

// ProvideAuditPublisher creates the Kafka audit publisher when enabled.
func ProvideAuditPublisher(cfg *config.Config) (domrepo.AuditPublisher, error) {
	if !cfg.Audit.Kafka.Enabled {
		return internalrepo.NopAuditPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Audit.Kafka.Brokers),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaAuditPublisher(producer, cfg.Audit.Kafka.Topic), nil
}

// ProvideMetrics creates the metrics recorder.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if cfg.Metrics.Enabled {
		return metrics.New()
	}
	return metrics.Nop{}
}

// ProvidePipelineRunner creates the pipeline use case.
func ProvidePipelineRunner(
	source domrepo.MarketSource,
	store domrepo.FactStore,
	publisher domrepo.AuditPublisher,
	m domrepo.Metrics,
	reg *registry.Registry,
	ovr overrides.Set,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.PipelineRunner {
	runner := usecase.NewPipelineRunner(source, store, publisher, m, reg, ovr, usecase.PipelineOptions{
		WindowYears: cfg.Pipeline.WindowYears,
		Workers:     cfg.Pipeline.Workers,
		MetadataTTL: cfg.Pipeline.MetadataTTL,
	})
	runner.SetLogger(l)
	return runner
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	runner *usecase.PipelineRunner,
	store domrepo.FactStore,
	publisher domrepo.AuditPublisher,
	l *applogger.Logger,
) *app.App {
	return app.New(cfg, runner, store, publisher, l)
}
