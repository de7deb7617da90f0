package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"pricebands/internal/calculator"
	"pricebands/internal/model"
)

// Table is a forecast evaluated on a date grid: one row per grid date, one
// price per quantile level, columns in ascending quantile order.
type Table struct {
	Quantiles []float64
	Rows      []model.ForecastRow
}

// BuildTable evaluates the fitted model at every grid date. Grid dates that
// resolve to a non-positive day coordinate cannot be evaluated on log axes
// and fail the build; the grid is expected to start after the series does.
func BuildTable(m *calculator.QuantileModel, start time.Time, grid Grid, quantiles []float64) (*Table, error) {
	qs := append([]float64(nil), quantiles...)
	sort.Float64s(qs)
	qs = dedupFloats(qs)

	dates := grid.Dates()
	t := &Table{
		Quantiles: qs,
		Rows:      make([]model.ForecastRow, 0, len(dates)),
	}
	for _, date := range dates {
		day := model.DayCoordinate(start, date)
		row := model.ForecastRow{
			Date:   date,
			Day:    day,
			Prices: make([]float64, 0, len(qs)),
		}
		for _, q := range qs {
			price, err := m.Predict(q, float64(day))
			if err != nil {
				return nil, fmt.Errorf("forecast %s: %w", date.Format("2006-01-02"), err)
			}
			row.Prices = append(row.Prices, price)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteCSV emits the table with a "Date" column followed by one ordinal
// quantile column per level, every cell currency formatted. Output is
// deterministic: identical tables serialize to identical bytes.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(t.Quantiles)+1)
	header = append(header, "Date")
	for _, q := range t.Quantiles {
		header = append(header, QuantileLabel(q))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range t.Rows {
		record := make([]string, 0, len(row.Prices)+1)
		record = append(record, row.Date.Format("2006-01-02"))
		for _, p := range row.Prices {
			record = append(record, FormatUSD(p))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table as CSV to path.
func (t *Table) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create forecast table: %w", err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write forecast table: %w", err)
	}
	return f.Close()
}

// PriceByYear reads back a written forecast table and maps each calendar year
// to the price in the chosen quantile column. When several grid rows fall in
// one year the last row wins, matching the grid's chronological order.
func PriceByYear(r io.Reader, quantile float64) (map[int]float64, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read forecast table: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("forecast table has no data rows")
	}

	label := QuantileLabel(quantile)
	col := -1
	for i, h := range records[0] {
		if h == label {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("forecast table has no %q column", label)
	}

	prices := make(map[int]float64, len(records)-1)
	for _, rec := range records[1:] {
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, fmt.Errorf("parse table date %q: %w", rec[0], err)
		}
		price, err := ParseUSD(rec[col])
		if err != nil {
			return nil, err
		}
		prices[date.Year()] = price
	}
	return prices, nil
}

// LoadPriceByYear is PriceByYear over a file on disk.
func LoadPriceByYear(path string, quantile float64) (map[int]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open forecast table: %w", err)
	}
	defer f.Close()
	return PriceByYear(f, quantile)
}

func dedupFloats(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
