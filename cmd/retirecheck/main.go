package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"pricebands/internal/forecast"
	"pricebands/internal/verify"
)

// retirecheck re-runs the retirement verification against a forecast table
// that an earlier pricebands run already wrote. Table path, quantile column
// and scenario set come from the environment:
//
//	TABLE_FILE     forecast CSV (default bitcoin_price_predictions.csv)
//	QUANTILE       column to price withdrawals from (default 0.05)
//	SCENARIOS      comma-separated built-in scenario names
//	SCENARIO_FILES comma-separated scenario YAML paths
//
// With no scenario selection every built-in scenario runs.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	tableFile := "bitcoin_price_predictions.csv"
	if v := os.Getenv("TABLE_FILE"); v != "" {
		tableFile = v
	}
	quantile := 0.05
	if v := os.Getenv("QUANTILE"); v != "" {
		q, err := strconv.ParseFloat(v, 64)
		if err != nil || q <= 0 || q >= 1 {
			log.Fatalf("[FATAL] QUANTILE %q is not a quantile in (0, 1)", v)
		}
		quantile = q
	}

	prices, err := forecast.LoadPriceByYear(tableFile, quantile)
	if err != nil {
		log.Fatalf("[FATAL] load forecast table: %v", err)
	}
	log.Printf("[INFO] loaded %d forecast years from %s (quantile %g)", len(prices), tableFile, quantile)

	names := splitList(os.Getenv("SCENARIOS"))
	files := splitList(os.Getenv("SCENARIO_FILES"))
	if len(names) == 0 && len(files) == 0 {
		names = verify.BuiltinNames()
	}

	var scenarios []*verify.Scenario
	for _, name := range names {
		sc, err := verify.BuiltinScenario(name)
		if err != nil {
			log.Fatalf("[FATAL] %v", err)
		}
		scenarios = append(scenarios, sc)
	}
	for _, path := range files {
		sc, err := verify.LoadScenarioFile(path)
		if err != nil {
			log.Fatalf("[FATAL] %v", err)
		}
		scenarios = append(scenarios, sc)
	}

	for _, sc := range scenarios {
		checks := verify.Run(prices, sc)
		if err := verify.WriteReport(os.Stdout, sc, checks); err != nil {
			log.Fatalf("[FATAL] write report: %v", err)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
