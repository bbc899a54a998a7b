// Package normalize turns wide vendor records into tidy fact rows. It is the
// adapter boundary for the vendor shape: reshape, window enforcement over
// vendor batches, and recency dedup live here.
package normalize

import (
	"sort"
	"time"

	"EquitySchema/internal/domain/models"
	"EquitySchema/pkg/util"
)

// Vendor income-statement line items required by the financial fact table.
const (
	ItemTotalRevenue = "TotalRevenue"
	ItemNetIncome    = "NetIncome"
)

// Window returns the inclusive start of the rolling window ending at end.
func Window(end time.Time, years int) time.Time {
	return util.WindowStart(end, years)
}

// Prices normalizes wide vendor price rows into price fact rows.
//
// Steps, in order: sanity-clean prices (non-positive prices and negative
// volume count as absent), sort chronologically, forward-fill missing price
// fields from the previous trading day, drop rows that still have no close
// (SchemaMismatch), then enforce the rolling window. The inclusive window
// start is kept; anything strictly before it is discarded. Returns the kept
// rows and the number of dropped malformed rows.
func Prices(symbol string, raw []models.RawPriceRow, windowStart, windowEnd time.Time, fetchedAt time.Time) ([]models.PriceObservation, int) {
	rows := make([]models.RawPriceRow, len(raw))
	copy(rows, raw)
	sort.Slice(rows, func(i, j int) bool { return rows[i].TradeDate.Before(rows[j].TradeDate) })

	dropped := 0
	out := make([]models.PriceObservation, 0, len(rows))
	var last *models.PriceObservation

	for _, r := range rows {
		open := cleanPrice(r.Open)
		high := cleanPrice(r.High)
		low := cleanPrice(r.Low)
		clo := cleanPrice(r.Close)
		vol := cleanVolume(r.Volume)

		// Forward fill from the previous observation, matching the vendor's
		// occasional holes on thin trading days.
		if last != nil {
			if clo == nil {
				clo = &last.Close
			}
			if open == nil {
				open = &last.Open
			}
			if high == nil {
				high = &last.High
			}
			if low == nil {
				low = &last.Low
			}
		}
		if clo == nil {
			// Nothing to fill from: the row is unusable.
			dropped++
			continue
		}
		if open == nil {
			open = clo
		}
		if high == nil {
			high = clo
		}
		if low == nil {
			low = clo
		}

		obs := models.PriceObservation{
			Symbol:    symbol,
			TradeDate: util.Midnight(r.TradeDate),
			Open:      *open,
			High:      *high,
			Low:       *low,
			Close:     *clo,
			Dividends: r.Dividends,
			Splits:    r.Splits,
			FetchedAt: fetchedAt,
		}
		if vol != nil {
			obs.Volume = *vol
		}
		last = &obs

		if obs.TradeDate.Before(windowStart) || obs.TradeDate.After(windowEnd) {
			continue
		}
		out = append(out, obs)
	}
	return out, dropped
}

// Financials reshapes wide vendor financial rows into financial fact rows and
// enforces the rolling window on the period end date (inclusive start). A row
// missing a required line item is a SchemaMismatch: dropped and counted, never
// fatal. The reshape guarantees no full key appears twice in its output.
func Financials(symbol string, raw []models.RawFinancialRow, windowStart, windowEnd time.Time, fetchedAt time.Time) ([]models.FinancialObservation, int) {
	dropped := 0
	out := make([]models.FinancialObservation, 0, len(raw))
	seen := make(map[models.FinKey]bool, len(raw))

	for _, r := range raw {
		obs, ok := reshapeFinancial(symbol, r, fetchedAt)
		if !ok {
			dropped++
			continue
		}
		if obs.PeriodEnd.Before(windowStart) || obs.PeriodEnd.After(windowEnd) {
			continue
		}
		if seen[obs.Key()] {
			// Vendor repeated a period; first occurrence wins within a batch.
			continue
		}
		seen[obs.Key()] = true
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd.Before(out[j].PeriodEnd) })
	return out, dropped
}

// reshapeFinancial is the single wide-to-tidy adapter for the vendor's
// financial shape. If the vendor's column layout changes, this function is
// the only place that needs to follow.
func reshapeFinancial(symbol string, r models.RawFinancialRow, fetchedAt time.Time) (models.FinancialObservation, bool) {
	if r.Period != models.PeriodQuarterly && r.Period != models.PeriodAnnual {
		return models.FinancialObservation{}, false
	}
	revenue, okRev := r.Items[ItemTotalRevenue]
	netIncome, okNet := r.Items[ItemNetIncome]
	if !okRev || !okNet {
		return models.FinancialObservation{}, false
	}
	return models.FinancialObservation{
		Symbol:    symbol,
		PeriodEnd: util.Midnight(r.PeriodEnd),
		Period:    r.Period,
		Revenue:   revenue,
		NetIncome: netIncome,
		Source:    models.SourceVendor,
		FetchedAt: fetchedAt,
	}, true
}

// DedupPrices collapses rows sharing (symbol, trade date), keeping the one
// from the most recent fetch. Output is sorted by trade date.
func DedupPrices(rows []models.PriceObservation) []models.PriceObservation {
	type key struct {
		symbol string
		date   string
	}
	byKey := make(map[key]models.PriceObservation, len(rows))
	for _, r := range rows {
		k := key{r.Symbol, util.FormatDate(r.TradeDate)}
		if prev, ok := byKey[k]; ok && prev.FetchedAt.After(r.FetchedAt) {
			continue
		}
		byKey[k] = r
	}
	out := make([]models.PriceObservation, 0, len(byKey))
	for _, r := range byKey {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out
}

// DedupFinancials collapses rows sharing a full key. Among vendor rows the
// most recent fetch wins; an override-sourced row beats any vendor row no
// matter the timestamps. Runs after patching so overrides are never silently
// replaced by an older vendor pull.
func DedupFinancials(rows []models.FinancialObservation) []models.FinancialObservation {
	byKey := make(map[models.FinKey]models.FinancialObservation, len(rows))
	for _, r := range rows {
		prev, ok := byKey[r.Key()]
		if !ok {
			byKey[r.Key()] = r
			continue
		}
		if prev.Source == models.SourceOverride && r.Source != models.SourceOverride {
			continue
		}
		if r.Source == models.SourceOverride || !prev.FetchedAt.After(r.FetchedAt) {
			byKey[r.Key()] = r
		}
	}
	out := make([]models.FinancialObservation, 0, len(byKey))
	for _, r := range byKey {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodEnd.Equal(out[j].PeriodEnd) {
			return out[i].PeriodEnd.Before(out[j].PeriodEnd)
		}
		return out[i].Period < out[j].Period
	})
	return out
}

func cleanPrice(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

func cleanVolume(v *int64) *int64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}
