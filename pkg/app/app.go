package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	domrepo "EquitySchema/internal/domain/repository"
	"EquitySchema/internal/usecase"
	"EquitySchema/pkg/config"
	applogger "EquitySchema/pkg/logger"
	"EquitySchema/pkg/metrics"
)

// App encapsulates one batch execution: init the store, run the pipeline,
// push metrics, release resources. SIGINT/SIGTERM cancels the run.
type App struct {
	cfg       *config.Config
	runner    *usecase.PipelineRunner
	store     domrepo.FactStore
	publisher domrepo.AuditPublisher
	l         *applogger.Logger
}

// New creates an App instance with all dependencies.
func New(
	cfg *config.Config,
	runner *usecase.PipelineRunner,
	store domrepo.FactStore,
	publisher domrepo.AuditPublisher,
	l *applogger.Logger,
) *App {
	return &App{cfg: cfg, runner: runner, store: store, publisher: publisher, l: l}
}

// Run executes the pipeline once and blocks until it finishes or a signal
// arrives. Returns an error when the run itself failed; per-symbol failures
// are logged and reflected in the audit record, not in the return value.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if err := a.store.Close(); err != nil {
			a.l.Warn("store close", applogger.Error(err))
		}
		if a.publisher != nil {
			if err := a.publisher.Close(); err != nil {
				a.l.Warn("publisher close", applogger.Error(err))
			}
		}
	}()

	if err := a.store.Init(ctx); err != nil {
		return fmt.Errorf("store init: %w", err)
	}

	summary, err := a.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	for _, o := range summary.FailedSymbols() {
		a.l.Warn("symbol not loaded",
			applogger.String("symbol", o.Symbol),
			applogger.String("kind", string(o.Failure)),
			applogger.String("detail", o.Detail),
		)
	}

	if a.cfg.Metrics.Enabled && a.cfg.Metrics.PushGateway != "" {
		if err := metrics.Push(a.cfg.Metrics.PushGateway, a.cfg.Metrics.Job); err != nil {
			// The run already succeeded; a missing gateway is not worth a
			// non-zero exit.
			a.l.Warn("metrics push failed", applogger.Error(err))
		}
	}
	return nil
}
