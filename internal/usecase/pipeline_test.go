package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"EquitySchema/internal/domain/models"
	"EquitySchema/internal/overrides"
	"EquitySchema/internal/registry"
	"EquitySchema/pkg/metrics"
	"EquitySchema/pkg/util"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeSource serves canned vendor responses.
type fakeSource struct {
	mu          sync.Mutex
	prices      map[string][]models.RawPriceRow
	fins        map[string][]models.RawFinancialRow
	meta        map[string]*models.Ticker
	notFound    map[string]bool
	unavailable map[string]bool
	priceStarts map[string][]time.Time
	metaFetches map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		prices:      make(map[string][]models.RawPriceRow),
		fins:        make(map[string][]models.RawFinancialRow),
		meta:        make(map[string]*models.Ticker),
		notFound:    make(map[string]bool),
		unavailable: make(map[string]bool),
		priceStarts: make(map[string][]time.Time),
		metaFetches: make(map[string]int),
	}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRow, error) {
	s.mu.Lock()
	s.priceStarts[symbol] = append(s.priceStarts[symbol], start)
	s.mu.Unlock()
	if err := s.symbolErr(symbol); err != nil {
		return nil, err
	}
	out := make([]models.RawPriceRow, 0)
	for _, r := range s.prices[symbol] {
		if r.TradeDate.Before(start) || r.TradeDate.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeSource) FetchFinancials(ctx context.Context, symbol string) ([]models.RawFinancialRow, error) {
	if err := s.symbolErr(symbol); err != nil {
		return nil, err
	}
	return s.fins[symbol], nil
}

func (s *fakeSource) FetchMetadata(ctx context.Context, symbol string) (*models.Ticker, error) {
	s.mu.Lock()
	s.metaFetches[symbol]++
	s.mu.Unlock()
	if err := s.symbolErr(symbol); err != nil {
		return nil, err
	}
	if t, ok := s.meta[symbol]; ok {
		cp := *t
		return &cp, nil
	}
	return &models.Ticker{Symbol: symbol, Name: symbol + " Inc"}, nil
}

func (s *fakeSource) symbolErr(symbol string) error {
	if s.notFound[symbol] {
		return fmt.Errorf("fetch %s: %w", symbol, models.ErrSymbolNotFound)
	}
	if s.unavailable[symbol] {
		return &models.SourceUnavailableError{Op: "fetch", Err: fmt.Errorf("503")}
	}
	return nil
}

// memStore is an in-memory FactStore.
type memStore struct {
	mu         sync.Mutex
	prices     map[string][]models.PriceObservation
	fins       map[string][]models.FinancialObservation
	tickers    map[string]models.Ticker
	audits     []models.RunAudit
	spineStart time.Time
	spineEnd   time.Time
	lastPrice  map[string]time.Time
	freshness  map[string]time.Time
	failWrites map[string]int // symbol -> remaining injected write failures
}

func newMemStore() *memStore {
	return &memStore{
		prices:     make(map[string][]models.PriceObservation),
		fins:       make(map[string][]models.FinancialObservation),
		tickers:    make(map[string]models.Ticker),
		lastPrice:  make(map[string]time.Time),
		freshness:  make(map[string]time.Time),
		failWrites: make(map[string]int),
	}
}

func (s *memStore) Init(ctx context.Context) error { return nil }

func (s *memStore) WritePrices(ctx context.Context, symbol string, rows []models.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites[symbol] > 0 {
		s.failWrites[symbol]--
		return fmt.Errorf("disk full")
	}
	if len(rows) == 0 {
		return nil
	}
	cp := make([]models.PriceObservation, len(rows))
	copy(cp, rows)
	sort.Slice(cp, func(i, j int) bool { return cp[i].TradeDate.Before(cp[j].TradeDate) })
	s.prices[symbol] = cp
	s.lastPrice[symbol] = cp[len(cp)-1].TradeDate
	return nil
}

func (s *memStore) ReadPrices(ctx context.Context, symbol string) ([]models.PriceObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PriceObservation(nil), s.prices[symbol]...), nil
}

func (s *memStore) WriteFinancials(ctx context.Context, symbol string, rows []models.FinancialObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	s.fins[symbol] = append([]models.FinancialObservation(nil), rows...)
	return nil
}

func (s *memStore) UpsertTicker(ctx context.Context, t *models.Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[t.Symbol] = *t
	return nil
}

func (s *memStore) WriteDateSpine(ctx context.Context, start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spineStart, s.spineEnd = start, end
	return nil
}

func (s *memStore) AppendAudit(ctx context.Context, audit *models.RunAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *audit)
	return nil
}

func (s *memStore) LastPriceDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.lastPrice[symbol]
	return d, ok, nil
}

func (s *memStore) TickerFreshness(ctx context.Context, symbol string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.freshness[symbol]
	return t, ok, nil
}

func (s *memStore) Close() error { return nil }

func writeUniverse(t *testing.T, stocks, etfs string) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	stocksPath := filepath.Join(dir, "stocks.csv")
	etfsPath := filepath.Join(dir, "etfs.csv")
	if err := os.WriteFile(stocksPath, []byte(stocks), 0o644); err != nil {
		t.Fatalf("write stocks: %v", err)
	}
	if err := os.WriteFile(etfsPath, []byte(etfs), 0o644); err != nil {
		t.Fatalf("write etfs: %v", err)
	}
	reg, err := registry.Load(stocksPath, etfsPath)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	return reg
}

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

func rawPrice(date string, px float64, vol int64) models.RawPriceRow {
	d, _ := util.ParseDate(date)
	return models.RawPriceRow{TradeDate: d, Open: fp(px), High: fp(px), Low: fp(px), Close: fp(px), Volume: ip(vol)}
}

func rawFin(periodEnd string, period models.PeriodType, revenue, netIncome float64) models.RawFinancialRow {
	d, _ := util.ParseDate(periodEnd)
	return models.RawFinancialRow{
		PeriodEnd: d,
		Period:    period,
		Items:     map[string]float64{"TotalRevenue": revenue, "NetIncome": netIncome},
	}
}

func newRunner(src *fakeSource, store *memStore, reg *registry.Registry, ovr overrides.Set) *PipelineRunner {
	r := NewPipelineRunner(src, store, nil, metrics.Nop{}, reg, ovr, PipelineOptions{
		WindowYears: 5,
		Workers:     2,
		MetadataTTL: 7 * 24 * time.Hour,
	})
	r.SetClock(func() time.Time { return testNow })
	return r
}

func overrideSet(recs ...models.FinancialObservation) overrides.Set {
	set := make(overrides.Set, len(recs))
	for _, rec := range recs {
		rec.Source = models.SourceOverride
		set[rec.Key()] = rec
	}
	return set
}

func finFor(t *testing.T, store *memStore, symbol, periodEnd string, period models.PeriodType) models.FinancialObservation {
	t.Helper()
	for _, f := range store.fins[symbol] {
		if util.FormatDate(f.PeriodEnd) == periodEnd && f.Period == period {
			return f
		}
	}
	t.Fatalf("no financial row %s %s %s; have %v", symbol, periodEnd, period, store.fins[symbol])
	return models.FinancialObservation{}
}

func TestRunOverrideReplacesVendorRecord(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nACME,Acme Corp,Industrials\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	src.fins["ACME"] = []models.RawFinancialRow{
		rawFin("2021-12-31", models.PeriodQuarterly, 100, 10),
	}
	store := newMemStore()
	end, _ := util.ParseDate("2021-12-31")
	ovr := overrideSet(models.FinancialObservation{
		Symbol: "ACME", PeriodEnd: end, Period: models.PeriodQuarterly, Revenue: 120, NetIncome: 12,
	})

	summary, err := newRunner(src, store, reg, ovr).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Audit.Failed != 0 {
		t.Fatalf("unexpected failures: %+v", summary.FailedSymbols())
	}

	got := finFor(t, store, "ACME", "2021-12-31", models.PeriodQuarterly)
	if got.Revenue != 120 || got.NetIncome != 12 {
		t.Fatalf("override did not win: %+v", got)
	}
	if got.Source != models.SourceOverride {
		t.Fatalf("source = %q, want override", got.Source)
	}
	if n := len(store.fins["ACME"]); n != 1 {
		t.Fatalf("got %d financial rows, want 1", n)
	}
}

func TestRunOverrideInsertsMissingRecord(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nACME,Acme Corp,Industrials\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	src.fins["ACME"] = []models.RawFinancialRow{
		rawFin("2021-12-31", models.PeriodQuarterly, 100, 10),
	}
	store := newMemStore()
	end, _ := util.ParseDate("2020-03-31")
	ovr := overrideSet(models.FinancialObservation{
		Symbol: "ACME", PeriodEnd: end, Period: models.PeriodQuarterly, Revenue: 55, NetIncome: 5,
	})

	if _, err := newRunner(src, store, reg, ovr).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := finFor(t, store, "ACME", "2020-03-31", models.PeriodQuarterly)
	if got.Revenue != 55 {
		t.Fatalf("inserted override revenue = %v, want 55", got.Revenue)
	}
	count := 0
	for _, f := range store.fins["ACME"] {
		if util.FormatDate(f.PeriodEnd) == "2020-03-31" && f.Period == models.PeriodQuarterly {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("override key appears %d times, want 1", count)
	}
}

func TestRunOverrideOutsideWindowIsExcluded(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nACME,Acme Corp,Industrials\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	src.fins["ACME"] = []models.RawFinancialRow{
		rawFin("2021-12-31", models.PeriodQuarterly, 100, 10),
	}
	store := newMemStore()
	// testNow is 2024-06-01, so the window starts 2019-06-01. One override
	// predates it, one sits exactly on the boundary.
	stale, _ := util.ParseDate("2018-03-31")
	boundary, _ := util.ParseDate("2019-06-01")
	ovr := overrideSet(
		models.FinancialObservation{Symbol: "ACME", PeriodEnd: stale, Period: models.PeriodQuarterly, Revenue: 55, NetIncome: 5},
		models.FinancialObservation{Symbol: "ACME", PeriodEnd: boundary, Period: models.PeriodQuarterly, Revenue: 60, NetIncome: 6},
	)

	summary, err := newRunner(src, store, reg, ovr).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Audit.Failed != 0 {
		t.Fatalf("unexpected failures: %+v", summary.FailedSymbols())
	}

	for _, f := range store.fins["ACME"] {
		if f.PeriodEnd.Before(boundary) {
			t.Fatalf("row before window start leaked into output: %+v", f)
		}
	}
	if got := finFor(t, store, "ACME", "2019-06-01", models.PeriodQuarterly); got.Revenue != 60 {
		t.Fatalf("boundary override = %+v, want revenue 60", got)
	}
	if n := len(store.fins["ACME"]); n != 2 {
		t.Fatalf("got %d financial rows, want 2: %+v", n, store.fins["ACME"])
	}
}

func TestRunDropsPricesOutsideWindow(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nXYZ,Xyz Ltd,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	src.prices["XYZ"] = []models.RawPriceRow{
		rawPrice("2018-06-01", 10, 100), // six years before window end
		rawPrice("2024-05-30", 20, 200),
	}
	store := newMemStore()

	if _, err := newRunner(src, store, reg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	rows := store.prices["XYZ"]
	if len(rows) != 1 {
		t.Fatalf("got %d price rows, want 1: %+v", len(rows), rows)
	}
	if util.FormatDate(rows[0].TradeDate) != "2024-05-30" {
		t.Fatalf("kept wrong row: %+v", rows[0])
	}
}

func TestRunWindowStartBoundaryInclusive(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nXYZ,Xyz Ltd,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	// testNow is 2024-06-01, so the window starts 2019-06-01.
	src.prices["XYZ"] = []models.RawPriceRow{
		rawPrice("2019-05-31", 9, 90),
		rawPrice("2019-06-01", 10, 100),
	}
	store := newMemStore()

	if _, err := newRunner(src, store, reg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	rows := store.prices["XYZ"]
	if len(rows) != 1 || util.FormatDate(rows[0].TradeDate) != "2019-06-01" {
		t.Fatalf("boundary handling wrong: %+v", rows)
	}
}

func TestRunIsolatesSymbolNotFound(t *testing.T) {
	reg := writeUniverse(t,
		"Ticker,Name,Sector\nAAA,A,Tech\nBBB,B,Tech\nCCC,C,Tech\nDEAD,D,Tech\n",
		"Ticker,Name,Sector\nSPY,SPDR S&P 500,\n")
	src := newFakeSource()
	src.notFound["DEAD"] = true
	for _, sym := range []string{"AAA", "BBB", "CCC", "SPY"} {
		src.prices[sym] = []models.RawPriceRow{rawPrice("2024-05-30", 10, 100)}
	}
	store := newMemStore()

	summary, err := newRunner(src, store, reg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.Audit.Attempted != 5 || summary.Audit.Succeeded != 4 || summary.Audit.Failed != 1 {
		t.Fatalf("audit = %+v", summary.Audit)
	}
	failed := summary.FailedSymbols()
	if len(failed) != 1 || failed[0].Symbol != "DEAD" {
		t.Fatalf("failed = %+v", failed)
	}
	if failed[0].Failure != models.FailureSymbolNotFound {
		t.Fatalf("failure kind = %q", failed[0].Failure)
	}
	if _, ok := store.tickers["DEAD"]; ok {
		t.Fatal("dimension row written for failed symbol")
	}
	if len(store.prices["DEAD"]) != 0 || len(store.fins["DEAD"]) != 0 {
		t.Fatal("fact rows written for failed symbol")
	}
	if len(store.audits) != 1 {
		t.Fatalf("got %d audit records, want 1", len(store.audits))
	}
}

func TestRunClassifiesSourceUnavailable(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nAAA,A,Tech\nFLAKY,F,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	src.unavailable["FLAKY"] = true
	src.prices["AAA"] = []models.RawPriceRow{rawPrice("2024-05-30", 10, 100)}
	store := newMemStore()

	summary, err := newRunner(src, store, reg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	failed := summary.FailedSymbols()
	if len(failed) != 1 || failed[0].Failure != models.FailureSourceUnavailable {
		t.Fatalf("failed = %+v", failed)
	}
	if summary.Audit.Succeeded != 1 {
		t.Fatalf("audit = %+v", summary.Audit)
	}
}

func TestRunDimensionHasOneRowPerSymbol(t *testing.T) {
	reg := writeUniverse(t,
		"Ticker,Name,Sector\nAAA,A,Tech\nBBB,B,Health\n",
		"Ticker,Name,Sector\nSPY,SPDR S&P 500,\n")
	src := newFakeSource()
	store := newMemStore()

	if _, err := newRunner(src, store, reg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(store.tickers) != 3 {
		t.Fatalf("got %d dimension rows, want 3", len(store.tickers))
	}
	if store.tickers["SPY"].Sector != "ETF" {
		t.Fatalf("etf sector = %q, want ETF", store.tickers["SPY"].Sector)
	}
	if store.tickers["SPY"].AssetClass != models.AssetETF {
		t.Fatalf("etf asset class = %q", store.tickers["SPY"].AssetClass)
	}
}

func TestRunSkipsFreshMetadata(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nAAA,A,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	store := newMemStore()
	store.freshness["AAA"] = testNow.Add(-24 * time.Hour)
	store.tickers["AAA"] = models.Ticker{Symbol: "AAA", Name: "A", LastUpdated: testNow.Add(-24 * time.Hour)}

	if _, err := newRunner(src, store, reg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if src.metaFetches["AAA"] != 0 {
		t.Fatalf("metadata fetched %d times despite freshness", src.metaFetches["AAA"])
	}
}

func TestRunRefetchesStaleMetadata(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nAAA,A,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	store := newMemStore()
	store.freshness["AAA"] = testNow.Add(-8 * 24 * time.Hour)

	if _, err := newRunner(src, store, reg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if src.metaFetches["AAA"] != 1 {
		t.Fatalf("metadata fetched %d times, want 1", src.metaFetches["AAA"])
	}
	if store.tickers["AAA"].LastUpdated != testNow.UTC() {
		t.Fatalf("last updated = %v", store.tickers["AAA"].LastUpdated)
	}
}

func TestRunIncrementalFetchStartsAfterLastDate(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nAAA,A,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	src.prices["AAA"] = []models.RawPriceRow{
		rawPrice("2024-05-30", 20, 200),
		rawPrice("2024-05-31", 21, 210),
	}
	store := newMemStore()
	prev, _ := util.ParseDate("2024-05-29")
	stored := models.PriceObservation{
		Symbol: "AAA", TradeDate: prev,
		Open: 19, High: 19, Low: 19, Close: 19, Volume: 190,
		FetchedAt: testNow.Add(-24 * time.Hour),
	}
	store.prices["AAA"] = []models.PriceObservation{stored}
	store.lastPrice["AAA"] = prev

	if _, err := newRunner(src, store, reg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	starts := src.priceStarts["AAA"]
	if len(starts) != 1 || util.FormatDate(starts[0]) != "2024-05-30" {
		t.Fatalf("fetch starts = %v, want one starting 2024-05-30", starts)
	}
	rows := store.prices["AAA"]
	if len(rows) != 3 {
		t.Fatalf("merged rows = %d, want 3: %+v", len(rows), rows)
	}
	if util.FormatDate(rows[0].TradeDate) != "2024-05-29" || rows[0].Close != 19 {
		t.Fatalf("stored row lost in merge: %+v", rows[0])
	}
}

func TestRunFullFetchWhenLastDatePredatesWindow(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nAAA,A,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	src.prices["AAA"] = []models.RawPriceRow{rawPrice("2024-05-30", 20, 200)}
	store := newMemStore()
	old, _ := util.ParseDate("2018-01-05")
	store.lastPrice["AAA"] = old

	if _, err := newRunner(src, store, reg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	starts := src.priceStarts["AAA"]
	if len(starts) != 1 || util.FormatDate(starts[0]) != "2019-06-01" {
		t.Fatalf("fetch starts = %v, want full window from 2019-06-01", starts)
	}
}

func TestRunRetriesFailedWriteOnce(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nAAA,A,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	src.prices["AAA"] = []models.RawPriceRow{rawPrice("2024-05-30", 20, 200)}
	store := newMemStore()
	store.failWrites["AAA"] = 1

	summary, err := newRunner(src, store, reg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Audit.Failed != 0 {
		t.Fatalf("write retry did not recover: %+v", summary.FailedSymbols())
	}
	if len(store.prices["AAA"]) != 1 {
		t.Fatalf("prices not written after retry")
	}
}

func TestRunReportsWriteFailureAfterRetry(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nAAA,A,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	src.prices["AAA"] = []models.RawPriceRow{rawPrice("2024-05-30", 20, 200)}
	store := newMemStore()
	store.failWrites["AAA"] = 2

	summary, err := newRunner(src, store, reg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	failed := summary.FailedSymbols()
	if len(failed) != 1 || failed[0].Failure != models.FailureWrite {
		t.Fatalf("failed = %+v", failed)
	}
}

func TestRunWritesDateSpineOverWindow(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nAAA,A,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	store := newMemStore()

	if _, err := newRunner(src, store, reg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if util.FormatDate(store.spineStart) != "2019-06-01" {
		t.Fatalf("spine start = %v", store.spineStart)
	}
	if util.FormatDate(store.spineEnd) != "2024-06-01" {
		t.Fatalf("spine end = %v", store.spineEnd)
	}
}

func TestRunDedupKeepsLatestFetchForRepeatedPeriod(t *testing.T) {
	reg := writeUniverse(t, "Ticker,Name,Sector\nAAA,A,Tech\n", "Ticker,Name,Sector\n")
	src := newFakeSource()
	// Vendor repeats the same period; the reshape keeps one row per key.
	src.fins["AAA"] = []models.RawFinancialRow{
		rawFin("2023-12-31", models.PeriodQuarterly, 100, 10),
		rawFin("2023-12-31", models.PeriodQuarterly, 101, 11),
		rawFin("2023-12-31", models.PeriodAnnual, 400, 40),
	}
	store := newMemStore()

	if _, err := newRunner(src, store, reg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := len(store.fins["AAA"]); n != 2 {
		t.Fatalf("got %d rows, want 2 (one per period type): %+v", n, store.fins["AAA"])
	}
}
