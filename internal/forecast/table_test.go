package forecast

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pricebands/internal/calculator"
	"pricebands/internal/model"
)

// fittedModel fits an exact power law with slope log(10)/log(2): doubling the
// day multiplies the price by ten, so every quantile recovers the same line.
func fittedModel(t *testing.T) (*calculator.QuantileModel, time.Time) {
	t.Helper()
	start := date(2020, 1, 1)
	s := &model.PreparedSeries{Start: start, Floor: 1}
	days := []int{365, 730, 1460}
	prices := []float64{1, 10, 100}
	for i, d := range days {
		s.Points = append(s.Points, model.Sample{Day: d, Date: start.AddDate(0, 0, d-1), Price: prices[i]})
	}
	m, err := calculator.FitQuantileModel(s, []float64{0.05, 0.95})
	if err != nil {
		t.Fatalf("FitQuantileModel: %v", err)
	}
	return m, start
}

func TestBuildTable_EvaluatesGrid(t *testing.T) {
	m, start := fittedModel(t)
	grid := Grid{Start: date(2022, 1, 1), End: date(2023, 1, 1), StepMonths: 6}

	table, err := BuildTable(m, start, grid, []float64{0.95, 0.05, 0.5, 0.5})
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	wantQs := []float64{0.05, 0.5, 0.95}
	if len(table.Quantiles) != len(wantQs) {
		t.Fatalf("quantile columns = %v, want %v", table.Quantiles, wantQs)
	}
	for i, q := range wantQs {
		if table.Quantiles[i] != q {
			t.Fatalf("quantile columns = %v, want %v", table.Quantiles, wantQs)
		}
	}

	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(table.Rows))
	}
	first := table.Rows[0]
	if first.Day != 732 { // 2020 is a leap year
		t.Errorf("first grid day = %d, want 732", first.Day)
	}

	// On an exact line every quantile predicts the same price.
	slope := math.Log(10) / math.Log(2)
	want := math.Pow(float64(first.Day)/365, slope)
	for i, p := range first.Prices {
		if math.Abs(p-want)/want > 1e-5 {
			t.Errorf("price[%d] at day %d = %.6f, want %.6f", i, first.Day, p, want)
		}
	}
	for i := 1; i < len(table.Rows); i++ {
		if table.Rows[i].Prices[1] <= table.Rows[i-1].Prices[1] {
			t.Errorf("median price did not grow from row %d to %d", i-1, i)
		}
	}
}

func TestBuildTable_PreStartGridFails(t *testing.T) {
	m, start := fittedModel(t)
	grid := Grid{Start: date(2019, 6, 1), End: date(2020, 6, 1), StepMonths: 6}

	_, err := BuildTable(m, start, grid, []float64{0.5})
	if !errors.Is(err, calculator.ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay for a grid before the series start, got %v", err)
	}
	if !strings.Contains(err.Error(), "2019-06-01") {
		t.Errorf("error should name the failing grid date: %v", err)
	}
}

func literalTable() *Table {
	return &Table{
		Quantiles: []float64{0.05, 0.5, 0.95},
		Rows: []model.ForecastRow{
			{Date: date(2024, 1, 1), Day: 1462, Prices: []float64{1234.56, 2345.67, 9876543.21}},
			{Date: date(2024, 7, 1), Day: 1644, Prices: []float64{1300, 2400.5, 9999999.99}},
			{Date: date(2025, 1, 1), Day: 1828, Prices: []float64{900.25, 2500.2, 10000000.3}},
		},
	}
}

func TestWriteCSV_LayoutAndDeterminism(t *testing.T) {
	table := literalTable()

	var first, second bytes.Buffer
	if err := table.WriteCSV(&first); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if err := table.WriteCSV(&second); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if first.String() != second.String() {
		t.Error("two writes of the same table produced different bytes")
	}

	lines := strings.Split(strings.TrimRight(first.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("csv has %d lines, want 4:\n%s", len(lines), first.String())
	}
	if lines[0] != "Date,5th,50th,95th" {
		t.Errorf("header = %q", lines[0])
	}
	if want := `2024-01-01,"$1,234.56","$2,345.67","$9,876,543.21"`; lines[1] != want {
		t.Errorf("row 1 = %q, want %q", lines[1], want)
	}
	if want := `2025-01-01,$900.25,"$2,500.20","$10,000,000.30"`; lines[3] != want {
		t.Errorf("row 3 = %q, want %q", lines[3], want)
	}
}

func TestPriceByYear_LastRowInYearWins(t *testing.T) {
	var buf bytes.Buffer
	if err := literalTable().WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	prices, err := PriceByYear(strings.NewReader(buf.String()), 0.05)
	if err != nil {
		t.Fatalf("PriceByYear: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("prices = %v, want 2 years", prices)
	}
	// 2024 has two grid rows; the July row replaces the January one.
	if prices[2024] != 1300 {
		t.Errorf("prices[2024] = %v, want 1300", prices[2024])
	}
	if prices[2025] != 900.25 {
		t.Errorf("prices[2025] = %v, want 900.25", prices[2025])
	}
}

func TestPriceByYear_MissingColumn(t *testing.T) {
	var buf bytes.Buffer
	if err := literalTable().WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	_, err := PriceByYear(strings.NewReader(buf.String()), 0.10)
	if err == nil || !strings.Contains(err.Error(), "10th") {
		t.Fatalf("expected a missing 10th column error, got %v", err)
	}
}

func TestPriceByYear_HeaderOnly(t *testing.T) {
	if _, err := PriceByYear(strings.NewReader("Date,50th\n"), 0.5); err == nil {
		t.Fatal("expected an error for a table without data rows")
	}
}

func TestTableFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.csv")
	if err := literalTable().WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	prices, err := LoadPriceByYear(path, 0.95)
	if err != nil {
		t.Fatalf("LoadPriceByYear: %v", err)
	}
	if prices[2025] != 10000000.30 {
		t.Errorf("prices[2025] = %v, want 10000000.30", prices[2025])
	}
}
