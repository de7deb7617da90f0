// Package pipeline runs a full refresh: fetch each configured asset, fit the
// quantile models, write the forecast tables, verify retirement references
// against the written tables, and render the interactive charts.
package pipeline

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pricebands/internal/calculator"
	"pricebands/internal/chart"
	"pricebands/internal/collector"
	"pricebands/internal/config"
	"pricebands/internal/forecast"
	"pricebands/internal/model"
	"pricebands/internal/recorder"
	"pricebands/internal/verify"
)

// Pipeline wires fetchers, the recorder and the output writers for one run.
type Pipeline struct {
	Config   *config.Config
	Fetchers map[string]collector.Fetcher
	Recorder recorder.Recorder

	// ReportWriter receives the plain-text retirement reports. Defaults to
	// os.Stdout.
	ReportWriter io.Writer
}

// NewPipeline creates a Pipeline. A nil recorder is replaced with a noop one.
func NewPipeline(cfg *config.Config, fetchers map[string]collector.Fetcher, rec recorder.Recorder) *Pipeline {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Pipeline{Config: cfg, Fetchers: fetchers, Recorder: rec}
}

// assetResult keeps what the later stages need from a processed asset.
type assetResult struct {
	series    *model.PreparedSeries
	fit       *calculator.QuantileModel
	tablePath string
}

// Run processes every configured asset in order. A failure aborts that asset
// only; all failures are joined into the returned error so the caller can
// report them at exit.
func (p *Pipeline) Run() error {
	if err := os.MkdirAll(p.Config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", p.Config.OutputDir, err)
	}

	var failures []error
	results := make(map[string]*assetResult, len(p.Config.Assets))

	for i := range p.Config.Assets {
		a := &p.Config.Assets[i]
		res, err := p.runAsset(a)
		if err != nil {
			log.Printf("[ERROR] asset %s: %v", a.Name, err)
			failures = append(failures, fmt.Errorf("asset %s: %w", a.Name, err))
			continue
		}
		results[a.Name] = res
	}

	fragments, err := p.runVerification(results)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		failures = append(failures, err)
	}

	for i := range p.Config.Assets {
		a := &p.Config.Assets[i]
		res := results[a.Name]
		if res == nil {
			continue
		}
		var extra []template.HTML
		if p.embedInto(a.Name) {
			extra = fragments
		}
		if err := p.renderChart(a, res, extra); err != nil {
			log.Printf("[ERROR] chart %s: %v", a.Name, err)
			failures = append(failures, fmt.Errorf("chart %s: %w", a.Name, err))
		}
	}

	return errors.Join(failures...)
}

// runAsset takes one asset from raw history to a written forecast table.
func (p *Pipeline) runAsset(a *config.AssetConfig) (*assetResult, error) {
	f := p.Fetchers[a.Source]
	if f == nil {
		return nil, fmt.Errorf("no fetcher wired for source %q", a.Source)
	}

	log.Printf("[INFO] %s: fetching %s daily history from %s", a.Name, a.Symbol, f.Name())
	points, err := f.FetchDailySeries(a.Symbol, a.StartDate, p.Config.EndDate)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", a.Symbol, err)
	}

	series, err := calculator.PrepareSeries(points, a.StartDate, a.MinDay)
	if err != nil {
		return nil, fmt.Errorf("prepare series: %w", err)
	}
	first := series.Points[0].Day
	last := series.Points[len(series.Points)-1].Day
	log.Printf("[INFO] %s: %d usable samples, day %d through %d", a.Name, len(series.Points), first, last)

	fit, err := calculator.FitQuantileModel(series, a.Quantiles)
	if err != nil {
		return nil, fmt.Errorf("fit quantile model: %w", err)
	}
	log.Printf("[INFO] %s: fitted %d quantile lines, median R²=%.4f", a.Name, len(fit.Fits), fit.R2)

	grid := forecast.Grid{Start: a.TableStart, End: a.TableEnd, StepMonths: a.TableStepMonths}
	table, err := forecast.BuildTable(fit, a.StartDate, grid, a.Quantiles)
	if err != nil {
		return nil, fmt.Errorf("build forecast table: %w", err)
	}
	tablePath := filepath.Join(p.Config.OutputDir, a.TableFile)
	if err := table.WriteFile(tablePath); err != nil {
		return nil, err
	}
	log.Printf("[INFO] %s: forecast table written to %s", a.Name, tablePath)

	rec := &recorder.RunRecord{
		Asset:     a.Name,
		Source:    f.Name(),
		Points:    len(series.Points),
		FirstDay:  first,
		LastDay:   last,
		R2:        fit.R2,
		Fits:      fit.Fits,
		TableFile: a.TableFile,
	}
	if err := p.Recorder.RecordRun(rec); err != nil {
		log.Printf("[WARN] record run for %s: %v", a.Name, err)
	}

	return &assetResult{series: series, fit: fit, tablePath: tablePath}, nil
}

// runVerification recomputes the retirement scenarios against the forecast
// table written this run and returns HTML fragments for chart embedding.
// Reading the file back, rather than reusing the in-memory table, checks the
// same artifact a downstream consumer would.
func (p *Pipeline) runVerification(results map[string]*assetResult) ([]template.HTML, error) {
	r := &p.Config.Retirement
	if !r.Enabled {
		return nil, nil
	}
	res := results[r.Asset]
	if res == nil {
		return nil, fmt.Errorf("retirement verification: asset %q produced no forecast table this run", r.Asset)
	}

	prices, err := forecast.LoadPriceByYear(res.tablePath, r.Quantile)
	if err != nil {
		return nil, fmt.Errorf("retirement verification: %w", err)
	}

	scenarios, err := p.loadScenarios()
	if err != nil {
		return nil, fmt.Errorf("retirement verification: %w", err)
	}

	out := p.ReportWriter
	if out == nil {
		out = os.Stdout
	}

	var fragments []template.HTML
	for _, sc := range scenarios {
		checks := verify.Run(prices, sc)
		if err := verify.WriteReport(out, sc, checks); err != nil {
			return nil, fmt.Errorf("retirement report %s: %w", sc.Name, err)
		}
		matches := 0
		for _, c := range checks {
			if c.Match {
				matches++
			}
		}
		log.Printf("[INFO] retirement scenario %s: %d/%d reference cells match", sc.Name, matches, len(checks))

		if r.EmbedInChart {
			frag, err := verify.HTMLTable(sc, checks)
			if err != nil {
				return nil, fmt.Errorf("retirement table %s: %w", sc.Name, err)
			}
			fragments = append(fragments, frag)
		}
	}
	return fragments, nil
}

// loadScenarios resolves built-in scenario names first, then scenario files,
// in config order.
func (p *Pipeline) loadScenarios() ([]*verify.Scenario, error) {
	var scenarios []*verify.Scenario
	for _, name := range p.Config.Retirement.Scenarios {
		sc, err := verify.BuiltinScenario(name)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	for _, path := range p.Config.Retirement.ScenarioFiles {
		sc, err := verify.LoadScenarioFile(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// embedInto reports whether verification fragments belong in this asset's page.
func (p *Pipeline) embedInto(asset string) bool {
	r := &p.Config.Retirement
	return r.Enabled && r.EmbedInChart && r.Asset == asset
}

func (p *Pipeline) renderChart(a *config.AssetConfig, res *assetResult, extra []template.HTML) error {
	events := make([]chart.Event, 0, len(a.Events))
	for _, ev := range a.Events {
		events = append(events, chart.Event{Name: ev.Name, Date: ev.Date})
	}
	c := &chart.Chart{
		Title:   chartTitle(a.Name),
		Series:  res.series,
		Model:   res.fit,
		Bands:   a.ChartBands,
		Horizon: a.Horizon,
		Events:  events,
	}
	path := filepath.Join(p.Config.OutputDir, a.ChartFile)
	if err := c.WriteHTML(path, extra...); err != nil {
		return err
	}
	log.Printf("[INFO] %s: chart written to %s", a.Name, path)
	return nil
}

// chartTitle renders the page title used by the published charts, with the
// asset name capitalized word by word.
func chartTitle(asset string) string {
	words := strings.Fields(asset)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	name := strings.Join(words, " ")
	return fmt.Sprintf("Interactive %s Price History - Log-Log Scale with Quantile Regression", name)
}
