package model

// RetirementCheck is the outcome of one reference-table cell: the BTC needed
// to fund a lifetime of withdrawals for someone of CurrentAge retiring in
// RetirementYear, compared against the published reference value.
//
// Complete is false when the forecast prices end before the lifespan does;
// such rows carry the partial sum and are never a match.
type RetirementCheck struct {
	CurrentAge     int
	RetirementYear int
	ReferenceBTC   float64
	ComputedBTC    float64
	Complete       bool
	Match          bool
}
