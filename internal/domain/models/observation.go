package models

import "time"

// AssetClass distinguishes plain equities from ETFs in the dimension table.
type AssetClass string

const (
	AssetStock AssetClass = "stock"
	AssetETF   AssetClass = "etf"
)

// PeriodType is the reporting granularity of a financial observation.
type PeriodType string

const (
	PeriodQuarterly PeriodType = "quarterly"
	PeriodAnnual    PeriodType = "annual"
)

// Ticker is one row of the dimension table. Immutable for the duration of a
// run; upserted by Symbol on write.
type Ticker struct {
	Symbol      string
	Name        string
	Sector      string
	Industry    string
	Country     string
	AssetClass  AssetClass
	LastUpdated time.Time
}

// PriceObservation is one row of the price fact table.
// Key = (Symbol, TradeDate).
type PriceObservation struct {
	Symbol    string
	TradeDate time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Dividends float64
	Splits    float64
	FetchedAt time.Time
}

// FinObservationSource marks where a financial record came from.
type FinObservationSource string

const (
	SourceVendor   FinObservationSource = "vendor"
	SourceOverride FinObservationSource = "override"
)

// FinancialObservation is one row of the financial fact table.
// Key = (Symbol, PeriodEnd, PeriodType). Override-sourced rows always win
// over vendor rows sharing the same key.
type FinancialObservation struct {
	Symbol    string
	PeriodEnd time.Time
	Period    PeriodType
	Revenue   float64
	NetIncome float64
	Source    FinObservationSource
	FetchedAt time.Time
}

// FinKey is the full key of a FinancialObservation.
type FinKey struct {
	Symbol    string
	PeriodEnd string // YYYY-MM-DD
	Period    PeriodType
}

// Key returns the observation's full key.
func (f FinancialObservation) Key() FinKey {
	return FinKey{Symbol: f.Symbol, PeriodEnd: f.PeriodEnd.Format("2006-01-02"), Period: f.Period}
}

// RawPriceRow is a wide vendor price record before normalization. Price and
// volume fields are pointers so "vendor sent nothing" is distinct from zero.
type RawPriceRow struct {
	TradeDate time.Time
	Open      *float64
	High      *float64
	Low       *float64
	Close     *float64
	Volume    *int64
	Dividends float64
	Splits    float64
}

// RawFinancialRow is a wide vendor financial record: one row per period with
// one entry per income-statement line item, keyed by the vendor's item name.
type RawFinancialRow struct {
	PeriodEnd time.Time
	Period    PeriodType
	Items     map[string]float64
}

// DateSpineRow is one row of the continuous date dimension.
type DateSpineRow struct {
	Date    time.Time
	Year    int
	Month   int
	Day     int
	Quarter int
	Weekday string
}
