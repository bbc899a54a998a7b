package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"EquitySchema/internal/domain/models"
	domrepo "EquitySchema/internal/domain/repository"
	pkgch "EquitySchema/pkg/clickhouse"
	applogger "EquitySchema/pkg/logger"
	"EquitySchema/pkg/util"
)

// CHStore implements FactStore backed by ClickHouse, for deployments where
// the downstream analytics layer queries a warehouse instead of files.
// Per-symbol atomicity: each write clears the symbol's key range and inserts
// the replacement rows in one batch.
type CHStore struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	l        *applogger.Logger
}

// NewCHStore creates a ClickHouse-backed FactStore. The store owns the client
// and closes it with Close.
func NewCHStore(ch *pkgch.Client, database string) *CHStore {
	return &CHStore{ch: ch, db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the schema idempotently.
func (s *CHStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.dim_ticker (
            symbol String, name String, sector String, industry String,
            country String, asset_class String, last_updated DateTime
        ) ENGINE = ReplacingMergeTree(last_updated) ORDER BY symbol`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.fact_prices (
            symbol String, trade_date Date, open Float64, high Float64,
            low Float64, close Float64, volume Int64, dividends Float64,
            splits Float64, fetched_at DateTime
        ) ENGINE = MergeTree ORDER BY (symbol, trade_date)`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.fact_financials (
            symbol String, period_end Date, period_type String,
            revenue Float64, net_income Float64, source String,
            fetched_at DateTime
        ) ENGINE = MergeTree ORDER BY (symbol, period_end, period_type)`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.dim_date (
            date Date, year Int32, month Int32, day Int32,
            quarter Int32, weekday String
        ) ENGINE = ReplacingMergeTree ORDER BY date`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.run_audit (
            ts DateTime, window_start Date, window_end Date,
            attempted Int32, succeeded Int32, failed Int32,
            price_rows Int64, financial_rows Int64, dropped_rows Int64,
            duration_ms Int64
        ) ENGINE = MergeTree ORDER BY ts`, s.database),
	}
	if err := s.ch.InitSchema(ctx, stmts); err != nil {
		return fmt.Errorf("clickhouse schema: %w", err)
	}
	return nil
}

func (s *CHStore) WritePrices(ctx context.Context, symbol string, rows []models.PriceObservation) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.clearSymbol(ctx, "fact_prices", symbol); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s.fact_prices (symbol, trade_date, open, high, low, close, volume, dividends, splits, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.database))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare prices insert: %w", err)
	}
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Symbol, r.TradeDate, r.Open, r.High, r.Low, r.Close, r.Volume, r.Dividends, r.Splits, r.FetchedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert price row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prices %s: %w", symbol, err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse prices written",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(rows)),
		)
	}
	return nil
}

func (s *CHStore) ReadPrices(ctx context.Context, symbol string) ([]models.PriceObservation, error) {
	q := fmt.Sprintf(`
        SELECT symbol, trade_date, open, high, low, close, volume, dividends, splits, fetched_at
        FROM %s.fact_prices
        WHERE symbol = ?
        ORDER BY trade_date ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, symbol)
	if err != nil {
		return nil, fmt.Errorf("read prices: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceObservation, 0, 1024)
	for rows.Next() {
		var o models.PriceObservation
		if err := rows.Scan(&o.Symbol, &o.TradeDate, &o.Open, &o.High, &o.Low, &o.Close, &o.Volume, &o.Dividends, &o.Splits, &o.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *CHStore) WriteFinancials(ctx context.Context, symbol string, rows []models.FinancialObservation) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.clearSymbol(ctx, "fact_financials", symbol); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s.fact_financials (symbol, period_end, period_type, revenue, net_income, source, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?)", s.database))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare financials insert: %w", err)
	}
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Symbol, r.PeriodEnd, string(r.Period), r.Revenue, r.NetIncome, string(r.Source), r.FetchedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert financial row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit financials %s: %w", symbol, err)
	}
	return nil
}

func (s *CHStore) UpsertTicker(ctx context.Context, t *models.Ticker) error {
	q := fmt.Sprintf(
		"INSERT INTO %s.dim_ticker (symbol, name, sector, industry, country, asset_class, last_updated) VALUES (?, ?, ?, ?, ?, ?, ?)", s.database)
	if _, err := s.db.ExecContext(ctx, q, t.Symbol, t.Name, t.Sector, t.Industry, t.Country, string(t.AssetClass), t.LastUpdated); err != nil {
		return fmt.Errorf("upsert ticker %s: %w", t.Symbol, err)
	}
	return nil
}

func (s *CHStore) WriteDateSpine(ctx context.Context, start, end time.Time) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s.dim_date", s.database)); err != nil {
		return fmt.Errorf("truncate dim_date: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s.dim_date (date, year, month, day, quarter, weekday) VALUES (?, ?, ?, ?, ?, ?)", s.database))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare spine insert: %w", err)
	}
	for _, d := range util.DaySpan(start, end) {
		if _, err := stmt.ExecContext(ctx, d, int32(d.Year()), int32(d.Month()), int32(d.Day()), int32(util.Quarter(d)), d.Weekday().String()); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert spine row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit date spine: %w", err)
	}
	return nil
}

func (s *CHStore) AppendAudit(ctx context.Context, audit *models.RunAudit) error {
	q := fmt.Sprintf(
		"INSERT INTO %s.run_audit (ts, window_start, window_end, attempted, succeeded, failed, price_rows, financial_rows, dropped_rows, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.database)
	if _, err := s.db.ExecContext(ctx, q,
		audit.Timestamp, audit.WindowStart, audit.WindowEnd,
		int32(audit.Attempted), int32(audit.Succeeded), int32(audit.Failed),
		int64(audit.PriceRows), int64(audit.FinancialRows), int64(audit.DroppedRows),
		audit.DurationMillis); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *CHStore) LastPriceDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	q := fmt.Sprintf("SELECT max(trade_date), count() FROM %s.fact_prices WHERE symbol = ?", s.database)
	var last time.Time
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, symbol).Scan(&last, &n); err != nil {
		return time.Time{}, false, fmt.Errorf("last price date: %w", err)
	}
	if n == 0 {
		return time.Time{}, false, nil
	}
	return last, true, nil
}

func (s *CHStore) TickerFreshness(ctx context.Context, symbol string) (time.Time, bool, error) {
	q := fmt.Sprintf("SELECT max(last_updated), count() FROM %s.dim_ticker WHERE symbol = ?", s.database)
	var last time.Time
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, symbol).Scan(&last, &n); err != nil {
		return time.Time{}, false, fmt.Errorf("ticker freshness: %w", err)
	}
	if n == 0 {
		return time.Time{}, false, nil
	}
	return last, true, nil
}

func (s *CHStore) Close() error { return s.ch.Close() }

func (s *CHStore) clearSymbol(ctx context.Context, table, symbol string) error {
	q := fmt.Sprintf("ALTER TABLE %s.%s DELETE WHERE symbol = ?", s.database, table)
	if _, err := s.db.ExecContext(ctx, q, symbol); err != nil {
		return fmt.Errorf("clear %s for %s: %w", table, symbol, err)
	}
	return nil
}

var _ domrepo.FactStore = (*CHStore)(nil)
