package collector

import (
	"math"
	"time"

	"pricebands/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// With no Data set it generates a deterministic power-law series with a mild
// alternating wobble, so downstream fits and tables are reproducible.
type MockFetcher struct {
	BasePrice float64 // price at day 365; defaults to 100
	Data      []model.PricePoint
	Err       error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailySeries(_ string, start, end time.Time) ([]model.PricePoint, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Data != nil {
		return m.Data, nil
	}
	base := m.BasePrice
	if base == 0 {
		base = 100
	}
	return generateMockSeries(base, start, end), nil
}

func generateMockSeries(base float64, start, end time.Time) []model.PricePoint {
	var points []model.PricePoint
	day := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day++
		price := base * math.Pow(float64(day)/365.0, 1.5)
		if day%2 == 0 {
			price *= 1.04
		} else {
			price /= 1.04
		}
		points = append(points, model.PricePoint{Time: d, Price: price})
	}
	return points
}
