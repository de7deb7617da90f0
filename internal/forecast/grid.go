package forecast

import "time"

// Grid is a calendar date grid from Start to End inclusive, stepping a fixed
// number of months. A semiannual forecast grid is {Start, End, 6}.
type Grid struct {
	Start      time.Time
	End        time.Time
	StepMonths int
}

// Dates expands the grid in chronological order.
func (g Grid) Dates() []time.Time {
	step := g.StepMonths
	if step < 1 {
		step = 6
	}
	var dates []time.Time
	for d := g.Start; !d.After(g.End); d = d.AddDate(0, step, 0) {
		dates = append(dates, d)
	}
	return dates
}
