// Package chart implements MarketSource against a Yahoo-chart-shaped HTTP
// API: daily OHLCV via the chart endpoint, income statements via the
// fundamentals timeseries endpoint, metadata via quoteSummary.
package chart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"EquitySchema/internal/domain/models"
	drepo "EquitySchema/internal/domain/repository"
	"EquitySchema/internal/service/ratelimit"
	xhttp "EquitySchema/pkg/http"
	applogger "EquitySchema/pkg/logger"
)

const limiterKey = "vendor"

// Options configures the client's retry and throttle behavior.
type Options struct {
	BaseURL      string
	MaxAttempts  int
	BackoffMin   time.Duration
	BackoffMax   time.Duration
	RateCapacity float64
	RateRefill   float64
	// WindowYears bounds the financial-statement lookback. Must cover the
	// pipeline's rolling window or old periods never reach the normalizer.
	WindowYears int
}

// Client fetches wide vendor records for one symbol at a time.
type Client struct {
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	opts    Options
	l       *applogger.Logger
}

// New creates a chart-API MarketSource. The limiter is shared across all
// pipeline workers so vendor calls stay within the cooperative rate.
func New(httpClient *xhttp.Client, limiter *ratelimit.Limiter, opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = 500 * time.Millisecond
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = 8 * time.Second
	}
	if opts.WindowYears <= 0 {
		opts.WindowYears = 5
	}
	return &Client{http: httpClient, limiter: limiter, opts: opts}
}

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

func (c *Client) Name() string { return "yahoo-chart" }

// FetchPrices returns daily wide price rows for [start, end].
func (c *Client) FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRow, error) {
	var resp chartResponse
	err := c.get(ctx, "prices", fmt.Sprintf("/v8/finance/chart/%s", symbol), map[string][]string{
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10)},
		"interval": {"1d"},
		"events":   {"div|split"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Chart.Result) == 0 {
		// Vendor knows the symbol but has nothing for the window.
		return nil, nil
	}

	res := resp.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := res.Indicators.Quote[0]

	divByDay := make(map[string]float64, len(res.Events.Dividends))
	for _, d := range res.Events.Dividends {
		divByDay[dayKey(d.Date)] = d.Amount
	}
	splitByDay := make(map[string]float64, len(res.Events.Splits))
	for _, s := range res.Events.Splits {
		if s.Denominator != 0 {
			splitByDay[dayKey(s.Date)] = s.Numerator / s.Denominator
		}
	}

	rows := make([]models.RawPriceRow, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		row := models.RawPriceRow{TradeDate: time.Unix(ts, 0).UTC()}
		if i < len(q.Open) {
			row.Open = q.Open[i]
		}
		if i < len(q.High) {
			row.High = q.High[i]
		}
		if i < len(q.Low) {
			row.Low = q.Low[i]
		}
		if i < len(q.Close) {
			row.Close = q.Close[i]
		}
		if i < len(q.Volume) {
			row.Volume = q.Volume[i]
		}
		k := dayKey(ts)
		row.Dividends = divByDay[k]
		row.Splits = splitByDay[k]
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchFinancials returns quarterly and annual income-statement rows over the
// configured lookback. One wide row per (period end, period type).
func (c *Client) FetchFinancials(ctx context.Context, symbol string) ([]models.RawFinancialRow, error) {
	now := time.Now().UTC()
	var resp timeseriesResponse
	err := c.get(ctx, "financials",
		fmt.Sprintf("/ws/fundamentals-timeseries/v1/finance/timeseries/%s", symbol),
		map[string][]string{
			"type":    {"quarterlyTotalRevenue,quarterlyNetIncome,annualTotalRevenue,annualNetIncome"},
			"period1": {strconv.FormatInt(now.AddDate(-c.opts.WindowYears, 0, 0).Unix(), 10)},
			"period2": {strconv.FormatInt(now.Unix(), 10)},
			"merge":   {"false"},
		}, &resp)
	if err != nil {
		return nil, err
	}

	// Accumulate line items per (period end, period type) across the series.
	wide := make(map[string]*models.RawFinancialRow)
	collect := func(values []*tsValue, period models.PeriodType, item string) {
		for _, v := range values {
			if v == nil || v.AsOfDate == "" {
				continue
			}
			end, err := time.Parse("2006-01-02", v.AsOfDate)
			if err != nil {
				continue
			}
			k := v.AsOfDate + "/" + string(period)
			row, ok := wide[k]
			if !ok {
				row = &models.RawFinancialRow{
					PeriodEnd: end,
					Period:    period,
					Items:     make(map[string]float64, 2),
				}
				wide[k] = row
			}
			row.Items[item] = v.ReportedValue.Raw
		}
	}
	for _, res := range resp.Timeseries.Result {
		collect(res.QuarterlyTotalRevenue, models.PeriodQuarterly, "TotalRevenue")
		collect(res.QuarterlyNetIncome, models.PeriodQuarterly, "NetIncome")
		collect(res.AnnualTotalRevenue, models.PeriodAnnual, "TotalRevenue")
		collect(res.AnnualNetIncome, models.PeriodAnnual, "NetIncome")
	}

	rows := make([]models.RawFinancialRow, 0, len(wide))
	for _, r := range wide {
		rows = append(rows, *r)
	}
	return rows, nil
}

// FetchMetadata returns name/sector/industry/country for the symbol.
func (c *Client) FetchMetadata(ctx context.Context, symbol string) (*models.Ticker, error) {
	var resp quoteSummaryResponse
	err := c.get(ctx, "metadata",
		fmt.Sprintf("/v10/finance/quoteSummary/%s", symbol),
		map[string][]string{"modules": {"assetProfile,quoteType"}}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("metadata %s: %w", symbol, models.ErrSymbolNotFound)
	}

	res := resp.QuoteSummary.Result[0]
	name := res.QuoteType.ShortName
	if name == "" {
		name = res.QuoteType.LongName
	}
	return &models.Ticker{
		Symbol:   symbol,
		Name:     name,
		Sector:   res.AssetProfile.Sector,
		Industry: res.AssetProfile.Industry,
		Country:  res.AssetProfile.Country,
	}, nil
}

// apiErrer is implemented by every response envelope carrying an in-body
// error alongside the HTTP status.
type apiErrer interface {
	apiErr() *apiError
}

// get performs one rate-limited GET with bounded retry on transient failures,
// whether they arrive as a transport error, a status code, or an in-body
// error envelope. Permanent failures (unknown symbol) are returned
// immediately.
func (c *Client) get(ctx context.Context, op, path string, params map[string][]string, dest apiErrer) error {
	backoff := c.opts.BackoffMin
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx, limiterKey, c.opts.RateCapacity, c.opts.RateRefill); err != nil {
			return err
		}

		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.opts.BaseURL + path,
			QueryParams: params,
		}, dest)
		if err == nil {
			e := dest.apiErr()
			if e == nil {
				return nil
			}
			if strings.EqualFold(e.Code, "not found") {
				return fmt.Errorf("%s: %s: %w", op, e.Description, models.ErrSymbolNotFound)
			}
			err = fmt.Errorf("%s: %s", e.Code, e.Description)
		}

		var se *xhttp.StatusError
		if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusBadRequest) {
			return fmt.Errorf("%s: %w", op, models.ErrSymbolNotFound)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		if c.l != nil {
			c.l.Warn("vendor call failed",
				applogger.String("op", op),
				applogger.Int("attempt", attempt),
				applogger.Error(err),
			)
		}
		if attempt == c.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.opts.BackoffMax {
			backoff = c.opts.BackoffMax
		}
	}
	return &models.SourceUnavailableError{Op: op, Err: lastErr}
}

func dayKey(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

var _ drepo.MarketSource = (*Client)(nil)
