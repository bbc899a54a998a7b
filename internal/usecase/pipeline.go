// Package usecase orchestrates the batch run: resolve the universe, process
// every symbol with fault isolation, then summarize.
package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"EquitySchema/internal/domain/models"
	domrepo "EquitySchema/internal/domain/repository"
	"EquitySchema/internal/normalize"
	"EquitySchema/internal/overrides"
	"EquitySchema/internal/registry"
	applogger "EquitySchema/pkg/logger"
	"EquitySchema/pkg/util"
)

// PipelineOptions tunes a run.
type PipelineOptions struct {
	WindowYears int
	Workers     int
	// MetadataTTL is how long a ticker's dimension metadata stays fresh
	// before a refetch.
	MetadataTTL time.Duration
}

// PipelineRunner executes one full batch run over the registry universe.
// Symbols are independent: a failure on one never aborts the others, and the
// run always ends with a summary and an audit record.
type PipelineRunner struct {
	source    domrepo.MarketSource
	store     domrepo.FactStore
	publisher domrepo.AuditPublisher
	metrics   domrepo.Metrics
	reg       *registry.Registry
	ovr       overrides.Set
	opts      PipelineOptions
	l         *applogger.Logger

	now func() time.Time
}

// NewPipelineRunner wires a runner from its collaborators.
func NewPipelineRunner(
	source domrepo.MarketSource,
	store domrepo.FactStore,
	publisher domrepo.AuditPublisher,
	metrics domrepo.Metrics,
	reg *registry.Registry,
	ovr overrides.Set,
	opts PipelineOptions,
) *PipelineRunner {
	if opts.WindowYears <= 0 {
		opts.WindowYears = 5
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &PipelineRunner{
		source:    source,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		reg:       reg,
		ovr:       ovr,
		opts:      opts,
		now:       time.Now,
	}
}

// SetLogger injects a structured logger.
func (r *PipelineRunner) SetLogger(l *applogger.Logger) { r.l = l }

// SetClock overrides the run clock. Tests only.
func (r *PipelineRunner) SetClock(now func() time.Time) { r.now = now }

// Run executes the pipeline once and returns the summary. The returned error
// is non-nil only for run-level faults (cancellation, audit write failure);
// per-symbol failures are reported in the summary instead.
func (r *PipelineRunner) Run(ctx context.Context) (*models.RunSummary, error) {
	start := r.now()
	windowEnd := util.Midnight(start.UTC())
	windowStart := normalize.Window(windowEnd, r.opts.WindowYears)
	symbols := r.reg.Symbols()

	if r.l != nil {
		r.l.Info("run started",
			applogger.Int("symbols", len(symbols)),
			applogger.String("window_start", util.FormatDate(windowStart)),
			applogger.String("window_end", util.FormatDate(windowEnd)),
			applogger.Int("workers", r.opts.Workers),
		)
	}

	var mu sync.Mutex
	outcomes := make([]models.SymbolOutcome, 0, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			symStart := r.now()
			outcome := r.processSymbol(gctx, sym, windowStart, windowEnd)
			r.metrics.RecordSymbolDuration(sym, r.now().Sub(symStart).Seconds())

			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()

			if !outcome.OK && gctx.Err() != nil {
				// Cancellation, not a symbol fault.
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Symbol < outcomes[j].Symbol })

	if err := r.store.WriteDateSpine(ctx, windowStart, windowEnd); err != nil {
		return nil, err
	}

	summary := &models.RunSummary{Outcomes: outcomes}
	audit := models.RunAudit{
		Timestamp:   start.UTC(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Attempted:   len(outcomes),
	}
	for _, o := range outcomes {
		if o.OK {
			audit.Succeeded++
		} else {
			audit.Failed++
		}
		audit.PriceRows += o.PriceRows
		audit.FinancialRows += o.FinancialRows
		audit.DroppedRows += o.DroppedRows
	}
	audit.DurationMillis = r.now().Sub(start).Milliseconds()
	summary.Audit = audit

	if err := r.store.AppendAudit(ctx, &audit); err != nil {
		return nil, err
	}
	if r.publisher != nil {
		if err := r.publisher.PublishAudit(ctx, &audit); err != nil {
			// Downstream notification is best effort; the store already
			// holds the authoritative record.
			if r.l != nil {
				r.l.Warn("audit publish failed", applogger.Error(err))
			}
			r.metrics.RecordError("audit_publish")
		}
	}

	if r.l != nil {
		r.l.Info("run finished",
			applogger.Int("succeeded", audit.Succeeded),
			applogger.Int("failed", audit.Failed),
			applogger.Int("price_rows", audit.PriceRows),
			applogger.Int("financial_rows", audit.FinancialRows),
			applogger.Int("dropped_rows", audit.DroppedRows),
			applogger.Int64("duration_ms", audit.DurationMillis),
		)
	}
	return summary, nil
}

// processSymbol runs the per-symbol leg: fetch, patch, normalize, write.
// Any failure is contained in the returned outcome.
func (r *PipelineRunner) processSymbol(ctx context.Context, symbol string, windowStart, windowEnd time.Time) models.SymbolOutcome {
	outcome := models.SymbolOutcome{Symbol: symbol}
	fetchedAt := r.now().UTC()

	ticker, err := r.resolveMetadata(ctx, symbol, fetchedAt)
	if err != nil {
		return r.fail(outcome, "metadata", err)
	}

	prices, droppedPrices, err := r.fetchPrices(ctx, symbol, windowStart, windowEnd, fetchedAt)
	if err != nil {
		return r.fail(outcome, "prices", err)
	}

	fins, droppedFins, err := r.fetchFinancials(ctx, symbol, windowStart, windowEnd, fetchedAt)
	if err != nil {
		return r.fail(outcome, "financials", err)
	}

	// All fetches succeeded; nothing is persisted before this point, so a
	// failed symbol leaves no partial rows behind.
	if ticker != nil {
		if err := writeOnce(func() error { return r.store.UpsertTicker(ctx, ticker) }); err != nil {
			return r.fail(outcome, "upsert ticker", err)
		}
	}
	if err := writeOnce(func() error { return r.store.WritePrices(ctx, symbol, prices) }); err != nil {
		return r.fail(outcome, "write prices", err)
	}
	if err := writeOnce(func() error { return r.store.WriteFinancials(ctx, symbol, fins) }); err != nil {
		return r.fail(outcome, "write financials", err)
	}

	r.metrics.RecordRowsWritten("fact_prices", len(prices))
	r.metrics.RecordRowsWritten("fact_financials", len(fins))
	dropped := droppedPrices + droppedFins
	if dropped > 0 {
		r.metrics.RecordRowsDropped("schema_mismatch", dropped)
	}

	outcome.OK = true
	outcome.PriceRows = len(prices)
	outcome.FinancialRows = len(fins)
	outcome.DroppedRows = dropped

	if r.l != nil {
		r.l.Debug("symbol done",
			applogger.String("symbol", symbol),
			applogger.Int("price_rows", len(prices)),
			applogger.Int("financial_rows", len(fins)),
			applogger.Int("dropped_rows", dropped),
		)
	}
	return outcome
}

// resolveMetadata returns the dimension row to upsert, or nil when the stored
// row is still fresh. The registry seed wins for name when the vendor sends
// nothing, and ETF sector tags always win over vendor sectors.
func (r *PipelineRunner) resolveMetadata(ctx context.Context, symbol string, fetchedAt time.Time) (*models.Ticker, error) {
	seed, _ := r.reg.Ticker(symbol)

	if last, ok, err := r.store.TickerFreshness(ctx, symbol); err == nil && ok {
		if fetchedAt.Sub(last) < r.opts.MetadataTTL {
			return nil, nil
		}
	}

	r.metrics.RecordFetch("metadata", symbol)
	fetched, err := r.source.FetchMetadata(ctx, symbol)
	if err != nil {
		return nil, err
	}

	t := *fetched
	t.LastUpdated = fetchedAt
	if seed != nil {
		t.AssetClass = seed.AssetClass
		if t.Name == "" {
			t.Name = seed.Name
		}
		if seed.AssetClass == models.AssetETF {
			t.Sector = seed.Sector
		} else if t.Sector == "" {
			t.Sector = seed.Sector
		}
	}
	return &t, nil
}

// fetchPrices fetches the symbol's price rows, incrementally when the state
// log knows the last stored trade date, and merges them with the stored rows
// still inside the window.
func (r *PipelineRunner) fetchPrices(ctx context.Context, symbol string, windowStart, windowEnd, fetchedAt time.Time) ([]models.PriceObservation, int, error) {
	fetchStart := windowStart
	incremental := false
	if last, ok, err := r.store.LastPriceDate(ctx, symbol); err == nil && ok && !last.Before(windowStart) {
		fetchStart = last.AddDate(0, 0, 1)
		incremental = true
	}

	var fresh []models.PriceObservation
	dropped := 0
	if !fetchStart.After(windowEnd) {
		r.metrics.RecordFetch("prices", symbol)
		raw, err := r.source.FetchPrices(ctx, symbol, fetchStart, windowEnd)
		if err != nil {
			return nil, 0, err
		}
		fresh, dropped = normalize.Prices(symbol, raw, windowStart, windowEnd, fetchedAt)
	}

	if !incremental {
		return normalize.DedupPrices(fresh), dropped, nil
	}

	stored, err := r.store.ReadPrices(ctx, symbol)
	if err != nil {
		return nil, 0, err
	}
	merged := make([]models.PriceObservation, 0, len(stored)+len(fresh))
	for _, row := range stored {
		if row.TradeDate.Before(windowStart) || row.TradeDate.After(windowEnd) {
			continue
		}
		merged = append(merged, row)
	}
	merged = append(merged, fresh...)
	return normalize.DedupPrices(merged), dropped, nil
}

// fetchFinancials fetches, normalizes, patches with overrides, and dedups the
// symbol's financial rows.
func (r *PipelineRunner) fetchFinancials(ctx context.Context, symbol string, windowStart, windowEnd, fetchedAt time.Time) ([]models.FinancialObservation, int, error) {
	r.metrics.RecordFetch("financials", symbol)
	raw, err := r.source.FetchFinancials(ctx, symbol)
	if err != nil {
		return nil, 0, err
	}

	rows, dropped := normalize.Financials(symbol, raw, windowStart, windowEnd, fetchedAt)
	rows = overrides.Patch(symbol, rows, r.ovr, fetchedAt)
	rows = normalize.DedupFinancials(rows)

	// Overrides are patched in after the vendor rows were windowed, so the
	// window has to be enforced once more. The inclusive start still holds.
	kept := rows[:0]
	for _, row := range rows {
		if row.PeriodEnd.Before(windowStart) || row.PeriodEnd.After(windowEnd) {
			continue
		}
		kept = append(kept, row)
	}
	return kept, dropped, nil
}

func (r *PipelineRunner) fail(outcome models.SymbolOutcome, stage string, err error) models.SymbolOutcome {
	kind := models.ClassifyFailure(err)
	outcome.Failure = kind
	outcome.Detail = stage + ": " + err.Error()
	r.metrics.RecordError(string(kind))
	if r.l != nil {
		r.l.Error("symbol failed",
			applogger.String("symbol", outcome.Symbol),
			applogger.String("stage", stage),
			applogger.String("kind", string(kind)),
			applogger.Error(err),
		)
	}
	return outcome
}

// writeOnce runs a store write and retries it a single time. Store writes are
// atomic per symbol, so a retry after a failed write never duplicates rows.
func writeOnce(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fn()
}
