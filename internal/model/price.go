package model

import "time"

// PricePoint is a single daily close as reported by a provider.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// Sample is one cleaned observation of a prepared series. Day is the day
// coordinate: whole days since the series start date, plus one.
type Sample struct {
	Day   int
	Date  time.Time
	Price float64
}

// PreparedSeries holds a cleaned daily series ready for fitting. Points are
// sorted by Day, strictly increasing, with Day >= Floor and Price > 0.
type PreparedSeries struct {
	Start  time.Time
	Floor  int
	Points []Sample
}

// Days returns the day coordinates as floats, in order.
func (s *PreparedSeries) Days() []float64 {
	days := make([]float64, len(s.Points))
	for i, p := range s.Points {
		days[i] = float64(p.Day)
	}
	return days
}

// Prices returns the prices, in order.
func (s *PreparedSeries) Prices() []float64 {
	prices := make([]float64, len(s.Points))
	for i, p := range s.Points {
		prices[i] = p.Price
	}
	return prices
}

// DayCoordinate maps a calendar date onto the day axis of a series starting
// at start: whole days between the two dates, plus one. Both instants are
// compared at UTC midnight, so intraday timestamps land on their calendar day.
func DayCoordinate(start, date time.Time) int {
	return int(midnightUTC(date).Sub(midnightUTC(start))/(24*time.Hour)) + 1
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
