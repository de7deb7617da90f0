package verify

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios/*.yaml
var builtinFS embed.FS

// Scenario describes one published retirement reference table together with
// the withdrawal model behind it. Reference maps current age to retirement
// year to the published BTC requirement for that cell.
//
// Label, when set, tags report sections with the lifestyle the table was
// published for (for example "500k/year").
type Scenario struct {
	Name              string                  `yaml:"name"`
	Label             string                  `yaml:"label"`
	InflationRate     float64                 `yaml:"inflation_rate"`
	InitialWithdrawal float64                 `yaml:"initial_withdrawal"`
	Lifespan          int                     `yaml:"lifespan"`
	CurrentYear       int                     `yaml:"current_year"`
	ToleranceBTC      float64                 `yaml:"tolerance_btc"`
	Reference         map[int]map[int]float64 `yaml:"reference"`
}

// BuiltinNames lists the scenarios compiled into the binary, sorted.
func BuiltinNames() []string {
	matches, _ := fs.Glob(builtinFS, "scenarios/*.yaml")
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(path.Base(m), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// BuiltinScenario loads a compiled-in scenario by name.
func BuiltinScenario(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile("scenarios/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown built-in scenario %q (have: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return parseScenario(data, name)
}

// LoadScenarioFile reads a scenario from an external YAML file. The file name
// doubles as the scenario name when the document does not set one.
func LoadScenarioFile(filename string) (*Scenario, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	base := filepath.Base(filename)
	return parseScenario(data, strings.TrimSuffix(base, filepath.Ext(base)))
}

func parseScenario(data []byte, fallbackName string) (*Scenario, error) {
	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Name == "" {
		sc.Name = fallbackName
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	return sc, nil
}

func (sc *Scenario) validate() error {
	switch {
	case sc.InflationRate < 0:
		return fmt.Errorf("inflation_rate must not be negative")
	case sc.InitialWithdrawal <= 0:
		return fmt.Errorf("initial_withdrawal must be positive")
	case sc.Lifespan <= 0:
		return fmt.Errorf("lifespan must be positive")
	case sc.CurrentYear <= 0:
		return fmt.Errorf("current_year must be set")
	case sc.ToleranceBTC <= 0:
		return fmt.Errorf("tolerance_btc must be positive")
	case len(sc.Reference) == 0:
		return fmt.Errorf("reference table is empty")
	}
	return nil
}
