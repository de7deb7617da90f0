// Package chart renders interactive log-log price charts with fitted
// quantile bands to self-contained HTML pages.
package chart

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"

	"pricebands/internal/calculator"
	"pricebands/internal/forecast"
	"pricebands/internal/model"
)

const defaultFitSamples = 400

// Event marks a notable date with a vertical line, for example a halving.
type Event struct {
	Name string
	Date time.Time
}

// Chart describes one price history page: the observed series, the fitted
// model drawn as a median line plus Bands envelopes, projected out to
// Horizon. Both axes are logarithmic, with day coordinates on X relabelled
// as calendar dates in the browser.
type Chart struct {
	Title   string
	Series  *model.PreparedSeries
	Model   *calculator.QuantileModel
	Bands   []float64
	Horizon time.Time
	Events  []Event

	// FitSamples is the number of log-spaced points each fitted line is
	// drawn with. Zero means a sensible default.
	FitSamples int
}

// Render writes the chart as a full HTML page.
func (c *Chart) Render(w io.Writer) error {
	line, err := c.build()
	if err != nil {
		return err
	}
	return line.Render(w)
}

// WriteHTML renders the page to path, injecting any extra fragments just
// before </body> so reports can ride along on the chart page.
func (c *Chart) WriteHTML(path string, fragments ...template.HTML) error {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return err
	}
	page := InjectHTML(buf.Bytes(), fragments...)
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

// InjectHTML splices fragments into a rendered page before the closing body
// tag. Pages without one get the fragments appended.
func InjectHTML(page []byte, fragments ...template.HTML) []byte {
	var extra bytes.Buffer
	for _, f := range fragments {
		extra.WriteString(string(f))
		extra.WriteString("\n")
	}
	if extra.Len() == 0 {
		return page
	}
	idx := bytes.LastIndex(page, []byte("</body>"))
	if idx < 0 {
		return append(page, extra.Bytes()...)
	}
	out := make([]byte, 0, len(page)+extra.Len())
	out = append(out, page[:idx]...)
	out = append(out, extra.Bytes()...)
	out = append(out, page[idx:]...)
	return out
}

func (c *Chart) build() (*charts.Line, error) {
	if c.Series == nil || len(c.Series.Points) == 0 {
		return nil, fmt.Errorf("chart: no price series")
	}
	if c.Model == nil {
		return nil, fmt.Errorf("chart: no fitted model")
	}

	firstDay := float64(c.Series.Points[0].Day)
	horizonDay := float64(model.DayCoordinate(c.Series.Start, c.Horizon))
	if horizonDay <= firstDay {
		return nil, fmt.Errorf("chart: horizon %s is not beyond the first observation", c.Horizon.Format("2006-01-02"))
	}

	samples := c.FitSamples
	if samples < 2 {
		samples = defaultFitSamples
	}
	days := floats.LogSpan(make([]float64, samples), firstDay, horizonDay)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: c.Title,
			Width:     "1200px",
			Height:    "700px",
		}),
		charts.WithTitleOpts(opts.Title{Title: c.Title}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      opts.Bool(true),
			Trigger:   "axis",
			Formatter: opts.FuncOpts(c.tooltipFormatter()),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Date",
			Type: "log",
			AxisLabel: &opts.AxisLabel{
				Show:      opts.Bool(true),
				Formatter: opts.FuncOpts(c.dayLabelFormatter()),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Price (USD)",
			Type: "log",
		}),
	)

	line.AddSeries("Price", observedData(c.Series), c.priceSeriesOpts()...)

	median, err := fitData(c.Model, 0.5, days)
	if err != nil {
		return nil, err
	}
	line.AddSeries(fmt.Sprintf("Median Fit (R²=%.2f)", c.Model.R2), median,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}),
	)

	for _, q := range c.Bands {
		if q == 0.5 {
			continue
		}
		data, err := fitData(c.Model, q, days)
		if err != nil {
			return nil, err
		}
		line.AddSeries(forecast.QuantileLabel(q)+" Percentile", data,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dotted"}),
		)
	}

	return line, nil
}

// priceSeriesOpts hides point symbols on the dense observed trace and hangs
// the event mark lines off it so they render once, not once per series.
func (c *Chart) priceSeriesOpts() []charts.SeriesOpts {
	so := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	}

	marked := 0
	for _, ev := range c.Events {
		day := model.DayCoordinate(c.Series.Start, ev.Date)
		if day <= 0 {
			continue
		}
		so = append(so, charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
			Name:  ev.Name,
			XAxis: day,
		}))
		marked++
	}
	if marked > 0 {
		so = append(so, charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
			Symbol: []string{"none", "none"},
			Label:  &opts.Label{Show: opts.Bool(true), Formatter: "{b}", Position: "insideEndTop"},
			LineStyle: &opts.LineStyle{
				Type:  "dashed",
				Color: "grey",
				Width: 1,
			},
		}))
	}
	return so
}

// dayLabelFormatter turns day coordinates back into calendar dates in the
// browser; the data itself stays numeric so the log axis works.
func (c *Chart) dayLabelFormatter() string {
	return fmt.Sprintf(
		"function (value) { return new Date(%d + (value - 1) * 86400000).toISOString().slice(0, 10); }",
		c.startMillis())
}

func (c *Chart) tooltipFormatter() string {
	return fmt.Sprintf(`function (params) {
  var p = Array.isArray(params) ? params : [params];
  var day = p[0].value[0];
  var out = [new Date(%d + (day - 1) * 86400000).toISOString().slice(0, 10)];
  for (var i = 0; i < p.length; i++) {
    out.push(p[i].marker + p[i].seriesName + ': $' +
      Number(p[i].value[1]).toLocaleString('en-US', {maximumFractionDigits: 2}));
  }
  return out.join('<br/>');
}`, c.startMillis())
}

func (c *Chart) startMillis() int64 {
	start := c.Series.Start.UTC()
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
}

func observedData(s *model.PreparedSeries) []opts.LineData {
	data := make([]opts.LineData, 0, len(s.Points))
	for _, p := range s.Points {
		data = append(data, opts.LineData{Value: []interface{}{p.Day, p.Price}})
	}
	return data
}

func fitData(m *calculator.QuantileModel, q float64, days []float64) ([]opts.LineData, error) {
	data := make([]opts.LineData, 0, len(days))
	for _, d := range days {
		price, err := m.Predict(q, d)
		if err != nil {
			return nil, fmt.Errorf("chart %s line: %w", forecast.QuantileLabel(q), err)
		}
		data = append(data, opts.LineData{Value: []interface{}{d, price}})
	}
	return data, nil
}
