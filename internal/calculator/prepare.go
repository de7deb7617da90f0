package calculator

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"pricebands/internal/model"
)

// ErrInsufficientData is returned when fewer than two usable observations
// remain after preparation.
var ErrInsufficientData = errors.New("insufficient data")

// PrepareSeries cleans a raw daily series into fitting coordinates.
//
// Observations before start are dropped. The rest are sorted by time and
// de-duplicated by calendar day, keeping the first occurrence. Each survivor
// gets a day coordinate (whole days since start, plus one); rows below the
// minDay floor or with a non-positive price are dropped. Fewer than two
// surviving rows is ErrInsufficientData.
func PrepareSeries(points []model.PricePoint, start time.Time, minDay int) (*model.PreparedSeries, error) {
	if minDay < 1 {
		minDay = 1
	}

	kept := make([]model.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Time.Before(start) {
			continue
		}
		kept = append(kept, p)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Time.Before(kept[j].Time) })

	series := &model.PreparedSeries{Start: start, Floor: minDay}
	lastDay := 0
	for _, p := range kept {
		day := model.DayCoordinate(start, p.Time)
		if day == lastDay {
			continue // duplicate date, first occurrence wins
		}
		lastDay = day
		if day < minDay || p.Price <= 0 {
			continue
		}
		series.Points = append(series.Points, model.Sample{Day: day, Date: p.Time, Price: p.Price})
	}

	if len(series.Points) < 2 {
		return nil, fmt.Errorf("%w: %d usable points after preparation", ErrInsufficientData, len(series.Points))
	}
	return series, nil
}
