package model

import "time"

// QuantileFit is one fitted power law on log-log coordinates:
// log(price) = Intercept + Slope*log(day).
type QuantileFit struct {
	Q         float64
	Intercept float64
	Slope     float64
}

// ForecastRow is one date of a forecast table. Prices align with the table's
// quantile column order.
type ForecastRow struct {
	Date   time.Time
	Day    int
	Prices []float64
}
