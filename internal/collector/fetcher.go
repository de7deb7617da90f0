package collector

import (
	"errors"
	"time"

	"pricebands/internal/model"
)

// ErrDataUnavailable is returned when a provider cannot deliver the requested
// series: transport failure, an error payload, or an empty result. Fetches are
// not retried; the caller decides whether to re-run.
var ErrDataUnavailable = errors.New("price data unavailable")

// Fetcher retrieves a daily close series for a symbol over a date range.
type Fetcher interface {
	FetchDailySeries(symbol string, start, end time.Time) ([]model.PricePoint, error)
	Name() string
}
