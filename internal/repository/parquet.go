package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"EquitySchema/internal/domain/models"
	"EquitySchema/pkg/util"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// priceRecord is the on-disk schema of one price fact row.
type priceRecord struct {
	Ticker    string  `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Date      string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Open      float64 `parquet:"name=open, type=DOUBLE"`
	High      float64 `parquet:"name=high, type=DOUBLE"`
	Low       float64 `parquet:"name=low, type=DOUBLE"`
	Close     float64 `parquet:"name=close, type=DOUBLE"`
	Volume    int64   `parquet:"name=volume, type=INT64"`
	Dividends float64 `parquet:"name=dividends, type=DOUBLE"`
	Splits    float64 `parquet:"name=splits, type=DOUBLE"`
	FetchedAt int64   `parquet:"name=fetched_at, type=INT64"` // unix seconds
}

// financialRecord is the on-disk schema of one financial fact row.
type financialRecord struct {
	Ticker     string  `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	PeriodEnd  string  `parquet:"name=period_end, type=BYTE_ARRAY, convertedtype=UTF8"`
	PeriodType string  `parquet:"name=period_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Revenue    float64 `parquet:"name=revenue, type=DOUBLE"`
	NetIncome  float64 `parquet:"name=net_income, type=DOUBLE"`
	Source     string  `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	FetchedAt  int64   `parquet:"name=fetched_at, type=INT64"`
}

// writeParquet writes all records to a temp file and renames it over the
// target, so readers never observe a half-written fact file.
func writeParquet(path string, newRecord func() interface{}, records []interface{}) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	fh, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	pw, err := writer.NewParquetWriter(fh, newRecord(), 2)
	if err != nil {
		fh.Close()
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 8 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range records {
		if err := pw.Write(r); err != nil {
			pw.WriteStop()
			fh.Close()
			os.Remove(tmp)
			return fmt.Errorf("parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return fmt.Errorf("parquet finalize: %w", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func readPriceParquet(path string) ([]models.PriceObservation, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(priceRecord), 2)
	if err != nil {
		return nil, fmt.Errorf("parquet reader: %w", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	recs := make([]priceRecord, num)
	if err := pr.Read(&recs); err != nil {
		return nil, fmt.Errorf("parquet read: %w", err)
	}

	out := make([]models.PriceObservation, 0, num)
	for _, r := range recs {
		d, ok := util.ParseDate(r.Date)
		if !ok {
			continue
		}
		out = append(out, models.PriceObservation{
			Symbol:    r.Ticker,
			TradeDate: d,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
			Dividends: r.Dividends,
			Splits:    r.Splits,
			FetchedAt: time.Unix(r.FetchedAt, 0).UTC(),
		})
	}
	return out, nil
}

func toPriceRecords(rows []models.PriceObservation) []interface{} {
	out := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, priceRecord{
			Ticker:    r.Symbol,
			Date:      util.FormatDate(r.TradeDate),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
			Dividends: r.Dividends,
			Splits:    r.Splits,
			FetchedAt: r.FetchedAt.Unix(),
		})
	}
	return out
}

func toFinancialRecords(rows []models.FinancialObservation) []interface{} {
	out := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, financialRecord{
			Ticker:     r.Symbol,
			PeriodEnd:  util.FormatDate(r.PeriodEnd),
			PeriodType: string(r.Period),
			Revenue:    r.Revenue,
			NetIncome:  r.NetIncome,
			Source:     string(r.Source),
			FetchedAt:  r.FetchedAt.Unix(),
		})
	}
	return out
}
