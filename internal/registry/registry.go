package registry

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"EquitySchema/internal/domain/models"

	"github.com/gocarina/gocsv"
)

// symbolPattern accepts exchange tickers like AAPL, BRK-B, BF.B.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// listRow is one line of a ticker universe CSV. Only Ticker is required; the
// metadata columns are optional seeds that vendor metadata may overwrite.
type listRow struct {
	Ticker string `csv:"Ticker"`
	Name   string `csv:"Name,omitempty"`
	Sector string `csv:"Sector,omitempty"`
}

// Registry resolves the symbol universe for a run. Immutable once loaded.
type Registry struct {
	tickers map[string]*models.Ticker
	symbols []string
}

// Load reads the stock and ETF universe files and validates them. A symbol
// appearing in both lists, or any malformed symbol, is an ErrInvalidRegistry.
func Load(stocksPath, etfsPath string) (*Registry, error) {
	stocks, err := readList(stocksPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stocks list: %v", models.ErrInvalidRegistry, err)
	}
	etfs, err := readList(etfsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: etf list: %v", models.ErrInvalidRegistry, err)
	}

	r := &Registry{tickers: make(map[string]*models.Ticker, len(stocks)+len(etfs))}

	add := func(rows []listRow, class models.AssetClass) error {
		for _, row := range rows {
			sym := strings.ToUpper(strings.TrimSpace(row.Ticker))
			if sym == "" || !symbolPattern.MatchString(sym) {
				return fmt.Errorf("%w: malformed symbol %q", models.ErrInvalidRegistry, row.Ticker)
			}
			if prev, dup := r.tickers[sym]; dup {
				if prev.AssetClass != class {
					return fmt.Errorf("%w: symbol %s appears in both stock and etf lists", models.ErrInvalidRegistry, sym)
				}
				return fmt.Errorf("%w: duplicate symbol %s", models.ErrInvalidRegistry, sym)
			}
			t := &models.Ticker{
				Symbol:     sym,
				Name:       strings.TrimSpace(row.Name),
				Sector:     strings.TrimSpace(row.Sector),
				AssetClass: class,
			}
			if class == models.AssetETF {
				// ETFs carry a fixed sector tag regardless of vendor metadata.
				t.Sector = "ETF"
			}
			r.tickers[sym] = t
			r.symbols = append(r.symbols, sym)
		}
		return nil
	}

	if err := add(stocks, models.AssetStock); err != nil {
		return nil, err
	}
	if err := add(etfs, models.AssetETF); err != nil {
		return nil, err
	}
	if len(r.symbols) == 0 {
		return nil, fmt.Errorf("%w: universe is empty", models.ErrInvalidRegistry)
	}

	sort.Strings(r.symbols)
	return r, nil
}

// Symbols returns the universe in deterministic order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// Ticker returns the static metadata seed for a symbol.
func (r *Registry) Ticker(symbol string) (*models.Ticker, bool) {
	t, ok := r.tickers[symbol]
	return t, ok
}

// Len returns the universe size.
func (r *Registry) Len() int { return len(r.symbols) }

func readList(path string) ([]listRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []listRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}
