package verify

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"pricebands/internal/model"
)

// WriteReport prints the verification outcome as fixed-width text, one
// section per current age, mirroring the layout of the published tables.
func WriteReport(w io.Writer, sc *Scenario, checks []model.RetirementCheck) error {
	rule := strings.Repeat("-", 80)

	age := -1
	for _, c := range checks {
		if c.CurrentAge != age {
			age = c.CurrentAge
			title := fmt.Sprintf("--- Verification for Current Age: %d ---", age)
			if sc.Label != "" {
				title = fmt.Sprintf("--- Verification for Current Age: %d (%s) ---", age, sc.Label)
			}
			if _, err := fmt.Fprintf(w, "\n%s\n%s\n%-18s %-18s %-25s %-10s\n%s\n",
				title, rule, "Retirement Year", "Reference BTC", "Calculated BTC Needed", "Match", rule); err != nil {
				return err
			}
		}

		var err error
		if c.Complete {
			match := "No"
			if c.Match {
				match = "Yes"
			}
			_, err = fmt.Fprintf(w, "%-18d %-18.2f %-25.2f %-10s\n",
				c.RetirementYear, c.ReferenceBTC, c.ComputedBTC, match)
		} else {
			_, err = fmt.Fprintf(w, "%-18d %-18.2f %-25s %-10s\n",
				c.RetirementYear, c.ReferenceBTC, fmt.Sprintf("(Data ends before %d)", sc.Lifespan), "N/A")
		}
		if err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\nNote: 'Calculated BTC Needed' is the total BTC required to fund withdrawals\nfrom retirement until age %d, with %s annual inflation%s.\n",
		sc.Lifespan, percent(sc.InflationRate), lifestyle(sc.Label))
	return err
}

var reportTable = template.Must(template.New("verification").Parse(`<div style="margin:24px auto;max-width:960px;font-family:sans-serif">
<h2>Retirement Verification ({{.Name}})</h2>
<p>{{.Note}}</p>
<table style="border-collapse:collapse;width:100%" border="1" cellpadding="4">
<tr><th>Current Age</th><th>Retirement Year</th><th>Reference BTC</th><th>Calculated BTC</th><th>Match</th></tr>
{{- range .Rows}}
<tr><td>{{.CurrentAge}}</td><td>{{.RetirementYear}}</td><td>{{.Reference}}</td><td>{{.Computed}}</td><td>{{.Match}}</td></tr>
{{- end}}
</table>
</div>
`))

type reportRow struct {
	CurrentAge     int
	RetirementYear int
	Reference      string
	Computed       string
	Match          string
}

// HTMLTable renders the verification outcome as a fragment suitable for
// embedding into a chart page.
func HTMLTable(sc *Scenario, checks []model.RetirementCheck) (template.HTML, error) {
	rows := make([]reportRow, 0, len(checks))
	for _, c := range checks {
		row := reportRow{
			CurrentAge:     c.CurrentAge,
			RetirementYear: c.RetirementYear,
			Reference:      fmt.Sprintf("%.2f", c.ReferenceBTC),
			Computed:       fmt.Sprintf("%.2f", c.ComputedBTC),
			Match:          "No",
		}
		if c.Match {
			row.Match = "Yes"
		}
		if !c.Complete {
			row.Computed = fmt.Sprintf("(Data ends before %d)", sc.Lifespan)
			row.Match = "N/A"
		}
		rows = append(rows, row)
	}

	data := struct {
		Name string
		Note string
		Rows []reportRow
	}{
		Name: sc.Name,
		Note: fmt.Sprintf("Calculated BTC is the total required to fund withdrawals from retirement until age %d, with %s annual inflation%s.",
			sc.Lifespan, percent(sc.InflationRate), lifestyle(sc.Label)),
		Rows: rows,
	}

	var b strings.Builder
	if err := reportTable.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render verification table: %w", err)
	}
	return template.HTML(b.String()), nil
}

func percent(rate float64) string {
	return fmt.Sprintf("%.4g%%", rate*100)
}

func lifestyle(label string) string {
	if label == "" {
		return ""
	}
	return " for a " + label + " lifestyle"
}
