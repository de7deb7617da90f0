package recorder

import "pricebands/internal/model"

// RunRecord summarizes one completed forecast run for an asset.
type RunRecord struct {
	Asset     string
	Source    string
	Points    int
	FirstDay  int
	LastDay   int
	R2        float64
	Fits      []model.QuantileFit
	TableFile string
}

// Recorder persists run summaries for later inspection. The pipeline itself
// stays stateless; recording is a side channel.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	Close() error
}
