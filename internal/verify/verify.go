// Package verify recomputes published "BTC needed to retire" tables from a
// price forecast and reports whether the published numbers hold up.
package verify

import (
	"math"
	"sort"

	"pricebands/internal/model"
)

// Run checks every cell of the scenario's reference table against the
// forecast prices. Checks come back in ascending (current age, retirement
// year) order so reports and persisted runs stay deterministic.
func Run(prices map[int]float64, sc *Scenario) []model.RetirementCheck {
	ages := make([]int, 0, len(sc.Reference))
	for age := range sc.Reference {
		ages = append(ages, age)
	}
	sort.Ints(ages)

	var checks []model.RetirementCheck
	for _, age := range ages {
		years := make([]int, 0, len(sc.Reference[age]))
		for year := range sc.Reference[age] {
			years = append(years, year)
		}
		sort.Ints(years)
		for _, year := range years {
			checks = append(checks, sc.check(prices, age, year))
		}
	}
	return checks
}

// check prices one table cell: a withdrawal for every year from retirement
// to the end of the lifespan, each grown by inflation and bought at that
// year's forecast price. Retiring at or past the lifespan needs 0 BTC.
func (sc *Scenario) check(prices map[int]float64, age, year int) model.RetirementCheck {
	c := model.RetirementCheck{
		CurrentAge:     age,
		RetirementYear: year,
		ReferenceBTC:   sc.Reference[age][year],
		Complete:       true,
	}

	retirementAge := age + (year - sc.CurrentYear)
	yearsInRetirement := sc.Lifespan - retirementAge
	for i := 0; i < yearsInRetirement; i++ {
		price, ok := prices[year+i]
		if !ok {
			// The forecast ends before the lifespan does. Keep the partial
			// sum but never call it a match.
			c.Complete = false
			return c
		}
		withdrawal := sc.InitialWithdrawal * math.Pow(1+sc.InflationRate, float64(i))
		c.ComputedBTC += withdrawal / price
	}
	c.Match = math.Abs(c.ReferenceBTC-c.ComputedBTC) < sc.ToleranceBTC
	return c
}
