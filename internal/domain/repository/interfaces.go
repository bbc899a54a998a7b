package repository

import (
	"context"
	"time"

	"EquitySchema/internal/domain/models"
)

// MarketSource is the vendor boundary. Any provider returning wide OHLCV and
// income-statement records for a symbol and date range is substitutable.
type MarketSource interface {
	// FetchPrices returns daily wide price rows for [start, end]. An empty
	// slice is a valid answer; it is not an error.
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRow, error)

	// FetchFinancials returns quarterly and annual income-statement rows.
	FetchFinancials(ctx context.Context, symbol string) ([]models.RawFinancialRow, error)

	// FetchMetadata returns static ticker metadata (name, sector, ...).
	FetchMetadata(ctx context.Context, symbol string) (*models.Ticker, error)

	Name() string
}

// FactStore persists normalized facts and dimensions. Writes are per-symbol
// atomic: either every row for the symbol in this run lands, or none do.
type FactStore interface {
	Init(ctx context.Context) error

	WritePrices(ctx context.Context, symbol string, rows []models.PriceObservation) error

	// ReadPrices returns the currently stored price rows for the symbol so a
	// run can merge an incremental fetch; empty when nothing is stored.
	ReadPrices(ctx context.Context, symbol string) ([]models.PriceObservation, error)
	WriteFinancials(ctx context.Context, symbol string, rows []models.FinancialObservation) error
	UpsertTicker(ctx context.Context, t *models.Ticker) error

	// WriteDateSpine replaces the date dimension with a continuous daily
	// calendar over [start, end].
	WriteDateSpine(ctx context.Context, start, end time.Time) error

	// AppendAudit appends one run audit record; never mutates prior entries.
	AppendAudit(ctx context.Context, audit *models.RunAudit) error

	// LastPriceDate reports the newest stored trade date for the symbol, or
	// ok=false when the symbol has no stored prices.
	LastPriceDate(ctx context.Context, symbol string) (time.Time, bool, error)

	// TickerFreshness reports when the symbol's metadata was last refreshed.
	TickerFreshness(ctx context.Context, symbol string) (time.Time, bool, error)

	Close() error
}

// AuditPublisher notifies downstream consumers that a run finished.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, audit *models.RunAudit) error
	Close() error
}

// Metrics records pipeline counters for the run.
type Metrics interface {
	RecordFetch(kind, symbol string)
	RecordRowsWritten(table string, n int)
	RecordRowsDropped(reason string, n int)
	RecordError(kind string)
	RecordSymbolDuration(symbol string, seconds float64)
}
