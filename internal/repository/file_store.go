package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"EquitySchema/internal/domain/models"
	"EquitySchema/internal/domain/repository"
	applogger "EquitySchema/pkg/logger"
	"EquitySchema/pkg/util"

	"github.com/gocarina/gocsv"
)

const (
	dimTickerFile = "dim_ticker.csv"
	dimDateFile   = "dim_date.csv"
	auditFile     = "audit.jsonl"
	pricesDir     = "prices"
	financialsDir = "financials"
	stateDir      = "state"
	pricesLogFile = "prices_log.json"
)

// dimTickerRow is one CSV line of the ticker dimension.
type dimTickerRow struct {
	Ticker      string `csv:"Ticker"`
	Name        string `csv:"Name"`
	Sector      string `csv:"Sector"`
	Industry    string `csv:"Industry"`
	Country     string `csv:"Country"`
	AssetClass  string `csv:"AssetClass"`
	LastUpdated string `csv:"LastUpdated"`
}

// dimDateRow is one CSV line of the date dimension.
type dimDateRow struct {
	Date    string `csv:"Date"`
	Year    int    `csv:"Year"`
	Month   int    `csv:"Month"`
	Day     int    `csv:"Day"`
	Quarter int    `csv:"Quarter"`
	Weekday string `csv:"Weekday"`
}

// FileStore implements FactStore on a plain directory layout: per-symbol
// parquet fact files, CSV dimensions, an append-only JSONL audit log, and a
// JSON state file tracking the last fetched price date per symbol.
type FileStore struct {
	dir string
	l   *applogger.Logger

	mu       sync.Mutex
	tickers  map[string]dimTickerRow
	priceLog map[string]string // symbol -> last trade date (YYYY-MM-DD)
}

// NewFileStore creates the files-backed FactStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:      dir,
		tickers:  make(map[string]dimTickerRow),
		priceLog: make(map[string]string),
	}
}

// SetLogger injects a structured logger.
func (s *FileStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the directory layout and loads the dimension table and the
// price state log. State entries whose fact file vanished are pruned so the
// log never claims data that is not on disk.
func (s *FileStore) Init(ctx context.Context) error {
	for _, d := range []string{s.dir, filepath.Join(s.dir, pricesDir), filepath.Join(s.dir, financialsDir), filepath.Join(s.dir, stateDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", d, err)
		}
	}

	if err := s.loadTickers(); err != nil {
		return err
	}
	if err := s.loadPriceLog(); err != nil {
		return err
	}

	// Prune log entries for missing fact files.
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for sym := range s.priceLog {
		if _, err := os.Stat(s.pricePath(sym)); os.IsNotExist(err) {
			delete(s.priceLog, sym)
			pruned++
		}
	}
	if pruned > 0 {
		if s.l != nil {
			s.l.Warn("pruned stale price log entries", applogger.Int("count", pruned))
		}
		return s.savePriceLogLocked()
	}
	return nil
}

func (s *FileStore) WritePrices(ctx context.Context, symbol string, rows []models.PriceObservation) error {
	if len(rows) == 0 {
		return nil
	}
	sorted := make([]models.PriceObservation, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TradeDate.Before(sorted[j].TradeDate) })

	if err := writeParquet(s.pricePath(symbol), func() interface{} { return new(priceRecord) }, toPriceRecords(sorted)); err != nil {
		return fmt.Errorf("write prices %s: %w", symbol, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceLog[symbol] = util.FormatDate(sorted[len(sorted)-1].TradeDate)
	return s.savePriceLogLocked()
}

func (s *FileStore) ReadPrices(ctx context.Context, symbol string) ([]models.PriceObservation, error) {
	return readPriceParquet(s.pricePath(symbol))
}

func (s *FileStore) WriteFinancials(ctx context.Context, symbol string, rows []models.FinancialObservation) error {
	if len(rows) == 0 {
		return nil
	}
	if err := writeParquet(s.financialPath(symbol), func() interface{} { return new(financialRecord) }, toFinancialRecords(rows)); err != nil {
		return fmt.Errorf("write financials %s: %w", symbol, err)
	}
	return nil
}

func (s *FileStore) UpsertTicker(ctx context.Context, t *models.Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[t.Symbol] = dimTickerRow{
		Ticker:      t.Symbol,
		Name:        t.Name,
		Sector:      t.Sector,
		Industry:    t.Industry,
		Country:     t.Country,
		AssetClass:  string(t.AssetClass),
		LastUpdated: t.LastUpdated.UTC().Format(time.RFC3339),
	}
	return s.saveTickersLocked()
}

func (s *FileStore) WriteDateSpine(ctx context.Context, start, end time.Time) error {
	days := util.DaySpan(start, end)
	rows := make([]dimDateRow, 0, len(days))
	for _, d := range days {
		rows = append(rows, dimDateRow{
			Date:    util.FormatDate(d),
			Year:    d.Year(),
			Month:   int(d.Month()),
			Day:     d.Day(),
			Quarter: util.Quarter(d),
			Weekday: d.Weekday().String(),
		})
	}
	return s.writeCSVAtomic(filepath.Join(s.dir, dimDateFile), &rows)
}

func (s *FileStore) AppendAudit(ctx context.Context, audit *models.RunAudit) error {
	f, err := os.OpenFile(filepath.Join(s.dir, auditFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	b, err := json.Marshal(audit)
	if err != nil {
		return fmt.Errorf("marshal audit: %w", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *FileStore) LastPriceDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	s.mu.Lock()
	dateStr, ok := s.priceLog[symbol]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false, nil
	}
	d, parsed := util.ParseDate(dateStr)
	if !parsed {
		return time.Time{}, false, nil
	}
	return d, true, nil
}

func (s *FileStore) TickerFreshness(ctx context.Context, symbol string) (time.Time, bool, error) {
	s.mu.Lock()
	row, ok := s.tickers[symbol]
	s.mu.Unlock()
	if !ok || row.LastUpdated == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, row.LastUpdated)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (s *FileStore) Close() error { return nil }

// --- internals ---

func (s *FileStore) pricePath(symbol string) string {
	return filepath.Join(s.dir, pricesDir, symbol+".parquet")
}

func (s *FileStore) financialPath(symbol string) string {
	return filepath.Join(s.dir, financialsDir, symbol+".parquet")
}

func (s *FileStore) loadTickers() error {
	path := filepath.Join(s.dir, dimTickerFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rows []dimTickerRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tickers[r.Ticker] = r
	}
	return nil
}

func (s *FileStore) saveTickersLocked() error {
	rows := make([]dimTickerRow, 0, len(s.tickers))
	for _, r := range s.tickers {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ticker < rows[j].Ticker })
	return s.writeCSVAtomic(filepath.Join(s.dir, dimTickerFile), &rows)
}

func (s *FileStore) writeCSVAtomic(path string, rows interface{}) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := gocsv.MarshalFile(rows, f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) loadPriceLog() error {
	path := filepath.Join(s.dir, stateDir, pricesLogFile)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read price log: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.Unmarshal(b, &s.priceLog); err != nil {
		// A corrupt state file only costs a full refetch.
		if s.l != nil {
			s.l.Warn("price log unreadable, starting fresh", applogger.Error(err))
		}
		s.priceLog = make(map[string]string)
	}
	return nil
}

func (s *FileStore) savePriceLogLocked() error {
	b, err := json.MarshalIndent(s.priceLog, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal price log: %w", err)
	}
	path := filepath.Join(s.dir, stateDir, pricesLogFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write price log: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename price log: %w", err)
	}
	return nil
}

var _ repository.FactStore = (*FileStore)(nil)
