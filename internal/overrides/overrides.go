// Package overrides holds the hand-maintained backfill dataset: curated
// financial records that cover known vendor history gaps. Precedence is
// absolute: an override always beats a vendor record with the same key,
// regardless of fetch time.
package overrides

import (
	"fmt"
	"os"
	"sort"
	"time"

	"EquitySchema/internal/domain/models"
	"EquitySchema/pkg/util"

	"gopkg.in/yaml.v3"
)

// Record is one curated financial observation in the overrides file.
type Record struct {
	Symbol     string  `yaml:"symbol"`
	PeriodEnd  string  `yaml:"period_end"`  // YYYY-MM-DD
	PeriodType string  `yaml:"period_type"` // quarterly | annual
	Revenue    float64 `yaml:"revenue"`
	NetIncome  float64 `yaml:"net_income"`
}

type fileFormat struct {
	Overrides []Record `yaml:"overrides"`
}

// Set is the loaded override dataset keyed by (symbol, period end, period type).
type Set map[models.FinKey]models.FinancialObservation

// LoadFile parses the overrides YAML. A missing file yields an empty set: the
// pipeline runs fine without any curated backfill.
func LoadFile(path string) (Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("read overrides: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}

	set := make(Set, len(f.Overrides))
	for i, r := range f.Overrides {
		end, ok := util.ParseDate(r.PeriodEnd)
		if !ok {
			return nil, fmt.Errorf("overrides entry %d: bad period_end %q", i, r.PeriodEnd)
		}
		pt := models.PeriodType(r.PeriodType)
		if pt != models.PeriodQuarterly && pt != models.PeriodAnnual {
			return nil, fmt.Errorf("overrides entry %d: bad period_type %q", i, r.PeriodType)
		}
		obs := models.FinancialObservation{
			Symbol:    r.Symbol,
			PeriodEnd: end,
			Period:    pt,
			Revenue:   r.Revenue,
			NetIncome: r.NetIncome,
			Source:    models.SourceOverride,
		}
		key := obs.Key()
		if _, dup := set[key]; dup {
			return nil, fmt.Errorf("overrides entry %d: duplicate key %v", i, key)
		}
		set[key] = obs
	}
	return set, nil
}

// ForSymbol returns the overrides whose symbol matches.
func (s Set) ForSymbol(symbol string) []models.FinancialObservation {
	out := make([]models.FinancialObservation, 0)
	for _, obs := range s {
		if obs.Symbol == symbol {
			out = append(out, obs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd.Before(out[j].PeriodEnd) })
	return out
}

// Patch merges the symbol's overrides into a vendor financial sequence. A
// vendor record sharing an override's key is replaced; an override with no
// vendor counterpart is inserted. Vendor records without a matching override
// pass through unchanged. Applying Patch twice yields the same output.
func Patch(symbol string, vendor []models.FinancialObservation, set Set, fetchedAt time.Time) []models.FinancialObservation {
	patches := set.ForSymbol(symbol)
	if len(patches) == 0 {
		return vendor
	}

	byKey := make(map[models.FinKey]int, len(vendor))
	out := make([]models.FinancialObservation, len(vendor))
	copy(out, vendor)
	for i, obs := range out {
		byKey[obs.Key()] = i
	}

	for _, p := range patches {
		p.FetchedAt = fetchedAt
		if i, ok := byKey[p.Key()]; ok {
			out[i] = p
			continue
		}
		byKey[p.Key()] = len(out)
		out = append(out, p)
	}
	return out
}
