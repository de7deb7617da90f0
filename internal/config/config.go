package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EventConfig is a dated annotation drawn on the chart, such as a halving.
type EventConfig struct {
	Name string    `yaml:"name"`
	Date time.Time `yaml:"date"`
}

// AssetConfig describes one asset end to end: where its history comes from,
// how the model is fitted, and which forecast artifacts get written.
type AssetConfig struct {
	Name            string        `yaml:"name"`
	Source          string        `yaml:"source"`
	Symbol          string        `yaml:"symbol"`
	StartDate       time.Time     `yaml:"start_date"`
	MinDay          int           `yaml:"min_day"`
	Quantiles       []float64     `yaml:"quantiles"`
	ChartBands      []float64     `yaml:"chart_bands"`
	Horizon         time.Time     `yaml:"horizon"`
	TableStart      time.Time     `yaml:"table_start"`
	TableEnd        time.Time     `yaml:"table_end"`
	TableStepMonths int           `yaml:"table_step_months"`
	Events          []EventConfig `yaml:"events"`
	ChartFile       string        `yaml:"chart_file"`
	TableFile       string        `yaml:"table_file"`
}

// RetirementConfig wires the verification step to one asset's forecast table.
// When the whole section is omitted the built-in scenarios run against the
// bitcoin table and land inside its chart page.
type RetirementConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Asset         string   `yaml:"asset"`
	Quantile      float64  `yaml:"quantile"`
	Scenarios     []string `yaml:"scenarios"`
	ScenarioFiles []string `yaml:"scenario_files"`
	EmbedInChart  bool     `yaml:"embed_in_chart"`
}

// Config holds all application configuration.
type Config struct {
	OutputDir  string           `yaml:"output_dir"`
	Proxy      string           `yaml:"proxy"`
	EndDate    time.Time        `yaml:"end_date"`
	Assets     []AssetConfig    `yaml:"assets"`
	Retirement RetirementConfig `yaml:"retirement"`
	Database   struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"schedule"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and fills the remaining gaps with built-in defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("END_DATE"); v != "" {
		if end, err := time.Parse("2006-01-02", v); err == nil {
			cfg.EndDate = end
		}
	}

	// Defaults
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.EndDate.IsZero() {
		now := time.Now().UTC()
		cfg.EndDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if len(cfg.Assets) == 0 {
		cfg.Assets = defaultAssets()
	}
	for i := range cfg.Assets {
		applyAssetDefaults(&cfg.Assets[i])
	}
	if retirementUnset(cfg.Retirement) {
		cfg.Retirement = defaultRetirement()
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("at least one asset is required")
	}

	seen := make(map[string]bool, len(c.Assets))
	for i := range c.Assets {
		if err := c.Assets[i].validate(); err != nil {
			return err
		}
		if seen[c.Assets[i].Name] {
			return fmt.Errorf("asset %q is configured twice", c.Assets[i].Name)
		}
		seen[c.Assets[i].Name] = true
	}

	if c.Retirement.Enabled {
		asset := c.Asset(c.Retirement.Asset)
		if asset == nil {
			return fmt.Errorf("retirement.asset %q is not a configured asset", c.Retirement.Asset)
		}
		if !hasQuantile(asset.Quantiles, c.Retirement.Quantile) {
			return fmt.Errorf("retirement.quantile %g is not fitted for asset %q", c.Retirement.Quantile, asset.Name)
		}
		if len(c.Retirement.Scenarios)+len(c.Retirement.ScenarioFiles) == 0 {
			return fmt.Errorf("retirement verification needs at least one scenario")
		}
	}
	return nil
}

// Asset returns the configured asset with the given name, or nil.
func (c *Config) Asset(name string) *AssetConfig {
	for i := range c.Assets {
		if c.Assets[i].Name == name {
			return &c.Assets[i]
		}
	}
	return nil
}

func (a *AssetConfig) validate() error {
	if a.Name == "" {
		return fmt.Errorf("asset name is required")
	}
	switch a.Source {
	case "cryptocompare", "yahoo", "mock":
	default:
		return fmt.Errorf("asset %q: unknown source %q", a.Name, a.Source)
	}
	if a.Symbol == "" {
		return fmt.Errorf("asset %q: symbol is required", a.Name)
	}
	if a.StartDate.IsZero() {
		return fmt.Errorf("asset %q: start_date is required", a.Name)
	}
	if a.Horizon.IsZero() || !a.Horizon.After(a.StartDate) {
		return fmt.Errorf("asset %q: horizon must be after start_date", a.Name)
	}
	if a.TableStart.IsZero() || a.TableEnd.Before(a.TableStart) {
		return fmt.Errorf("asset %q: table grid must run forward from table_start", a.Name)
	}
	if !a.TableStart.After(a.StartDate) {
		return fmt.Errorf("asset %q: table_start must be after start_date", a.Name)
	}
	if len(a.Quantiles) == 0 {
		return fmt.Errorf("asset %q: at least one quantile is required", a.Name)
	}
	for _, q := range a.Quantiles {
		if q <= 0 || q >= 1 {
			return fmt.Errorf("asset %q: quantile %g is outside (0, 1)", a.Name, q)
		}
	}
	for _, b := range a.ChartBands {
		if b != 0.5 && !hasQuantile(a.Quantiles, b) {
			return fmt.Errorf("asset %q: chart band %g is not among the fitted quantiles", a.Name, b)
		}
	}
	return nil
}

func applyAssetDefaults(a *AssetConfig) {
	if a.MinDay < 1 {
		a.MinDay = 1
	}
	if a.TableStepMonths < 1 {
		a.TableStepMonths = 6
	}
	if len(a.Quantiles) == 0 {
		a.Quantiles = []float64{0.05, 0.50, 0.95}
	}
	if len(a.ChartBands) == 0 {
		for _, q := range a.Quantiles {
			if q != 0.5 {
				a.ChartBands = append(a.ChartBands, q)
			}
		}
	}
	if a.ChartFile == "" {
		a.ChartFile = "interactive_" + a.Name + "_chart.html"
	}
	if a.TableFile == "" {
		a.TableFile = a.Name + "_price_predictions.csv"
	}
}

func retirementUnset(r RetirementConfig) bool {
	return !r.Enabled && !r.EmbedInChart && r.Asset == "" && r.Quantile == 0 &&
		len(r.Scenarios) == 0 && len(r.ScenarioFiles) == 0
}

func defaultRetirement() RetirementConfig {
	return RetirementConfig{
		Enabled:      true,
		Asset:        "bitcoin",
		Quantile:     0.05,
		Scenarios:    []string{"100k", "500k"},
		EmbedInChart: true,
	}
}

func defaultAssets() []AssetConfig {
	return []AssetConfig{
		{
			Name:            "bitcoin",
			Source:          "cryptocompare",
			Symbol:          "BTC",
			StartDate:       date(2010, 7, 17),
			MinDay:          365,
			Quantiles:       []float64{0.05, 0.10, 0.30, 0.50, 0.90, 0.95, 0.99},
			ChartBands:      []float64{0.05, 0.95, 0.99},
			Horizon:         date(2120, 1, 1),
			TableStart:      date(2024, 1, 1),
			TableEnd:        date(2120, 1, 1),
			TableStepMonths: 6,
			Events: []EventConfig{
				{Name: "Halving 2012", Date: date(2012, 11, 28)},
				{Name: "Halving 2016", Date: date(2016, 7, 9)},
				{Name: "Halving 2020", Date: date(2020, 5, 11)},
				{Name: "Halving 2024", Date: date(2024, 4, 20)},
			},
			ChartFile: "interactive_bitcoin_chart.html",
			TableFile: "bitcoin_price_predictions.csv",
		},
		{
			Name:            "gold",
			Source:          "yahoo",
			Symbol:          "GC=F",
			StartDate:       date(1950, 1, 1),
			MinDay:          1,
			Quantiles:       []float64{0.05, 0.50, 0.95},
			ChartBands:      []float64{0.05, 0.95},
			Horizon:         date(2030, 1, 1),
			TableStart:      date(2024, 1, 1),
			TableEnd:        date(2030, 1, 1),
			TableStepMonths: 6,
			ChartFile:       "interactive_gold_chart.html",
			TableFile:       "gold_price_predictions.csv",
		},
	}
}

func hasQuantile(quantiles []float64, q float64) bool {
	for _, v := range quantiles {
		if v == q {
			return true
		}
	}
	return false
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
