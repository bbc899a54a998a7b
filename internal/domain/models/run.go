package models

import "time"

// SymbolOutcome records how one symbol fared within a run.
type SymbolOutcome struct {
	Symbol        string      `json:"symbol"`
	OK            bool        `json:"ok"`
	Failure       FailureKind `json:"failure,omitempty"`
	Detail        string      `json:"detail,omitempty"`
	PriceRows     int         `json:"price_rows"`
	FinancialRows int         `json:"financial_rows"`
	DroppedRows   int         `json:"dropped_rows"`
}

// RunAudit is the append-only log entry written once per pipeline execution.
type RunAudit struct {
	Timestamp      time.Time `json:"timestamp"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	Attempted      int       `json:"attempted"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	PriceRows      int       `json:"price_rows"`
	FinancialRows  int       `json:"financial_rows"`
	DroppedRows    int       `json:"dropped_rows"`
	DurationMillis int64     `json:"duration_ms"`
}

// RunSummary is the user-visible result of a run: the audit record plus the
// per-symbol outcome list, sufficient to diagnose without re-running.
type RunSummary struct {
	Audit    RunAudit        `json:"audit"`
	Outcomes []SymbolOutcome `json:"outcomes"`
}

// FailedSymbols returns the outcomes that did not succeed.
func (s *RunSummary) FailedSymbols() []SymbolOutcome {
	out := make([]SymbolOutcome, 0)
	for _, o := range s.Outcomes {
		if !o.OK {
			out = append(out, o)
		}
	}
	return out
}
