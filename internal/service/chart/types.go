package chart

// Wire shapes for the vendor's JSON endpoints. The vendor returns wide
// column-oriented arrays; the client zips them into rows and nothing else.
// Reshaping is the normalizer's job.

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
			Events struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
				Splits map[string]struct {
					Numerator   float64 `json:"numerator"`
					Denominator float64 `json:"denominator"`
					Date        int64   `json:"date"`
				} `json:"splits"`
			} `json:"events"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type timeseriesResponse struct {
	Timeseries struct {
		Result []struct {
			Meta struct {
				Symbol []string `json:"symbol"`
				Type   []string `json:"type"`
			} `json:"meta"`
			Timestamp []int64 `json:"timestamp"`

			QuarterlyTotalRevenue []*tsValue `json:"quarterlyTotalRevenue"`
			QuarterlyNetIncome    []*tsValue `json:"quarterlyNetIncome"`
			AnnualTotalRevenue    []*tsValue `json:"annualTotalRevenue"`
			AnnualNetIncome       []*tsValue `json:"annualNetIncome"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"timeseries"`
}

type tsValue struct {
	AsOfDate      string `json:"asOfDate"` // YYYY-MM-DD
	PeriodType    string `json:"periodType"`
	ReportedValue struct {
		Raw float64 `json:"raw"`
	} `json:"reportedValue"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
				Country  string `json:"country"`
			} `json:"assetProfile"`
			QuoteType struct {
				ShortName string `json:"shortName"`
				LongName  string `json:"longName"`
			} `json:"quoteType"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// apiErr exposes the in-body error envelope so the transport layer can
// classify it without knowing each endpoint's shape.
func (r *chartResponse) apiErr() *apiError        { return r.Chart.Error }
func (r *timeseriesResponse) apiErr() *apiError   { return r.Timeseries.Error }
func (r *quoteSummaryResponse) apiErr() *apiError { return r.QuoteSummary.Error }
