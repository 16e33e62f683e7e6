// Package diagplot renders per-round convergence summaries recorded by
// diagstore as a static PNG (gonum/plot) or an interactive HTML page
// (go-echarts).
package diagplot

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/particle.refine/internal/diagstore"
	"github.com/banshee-data/particle.refine/internal/monitoring"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("diagplot: no round summaries")

// series is one plotted quantity over rounds.
type series struct {
	name  string
	value func(diagstore.RoundSummary) float64
}

var diffSeries = []series{
	{"class change rate", func(s diagstore.RoundSummary) float64 { return s.ClassChangeRate }},
	{"rotation diff (rad)", func(s diagstore.RoundSummary) float64 { return s.MeanRotationDiff }},
	{"translation diff", func(s diagstore.RoundSummary) float64 { return s.MeanTranslationDiff }},
	{"defocus diff", func(s diagstore.RoundSummary) float64 { return s.MeanDefocusDiff }},
}

var scoreSeries = []series{
	{"score", func(s diagstore.RoundSummary) float64 { return s.MeanScore }},
	{"rotation peak factor", func(s diagstore.RoundSummary) float64 { return s.MeanRotationPeak }},
}

// WriteConvergencePNG writes two stacked line plots to dir: the mean
// per-axis rank-1 changes and the mean score per round. It returns the
// paths written.
func WriteConvergencePNG(dir string, summaries []diagstore.RoundSummary) ([]string, error) {
	if len(summaries) == 0 {
		return nil, ErrNoData
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	pDiff := plot.New()
	pDiff.Title.Text = "Rank-1 change per round"
	pDiff.X.Label.Text = "Round"
	pDiff.Y.Label.Text = "Mean change"

	pScore := plot.New()
	pScore.Title.Text = "Compression per round"
	pScore.X.Label.Text = "Round"
	pScore.Y.Label.Text = "Mean value"

	if err := addLines(pDiff, diffSeries, summaries); err != nil {
		return nil, err
	}
	if err := addLines(pScore, scoreSeries, summaries); err != nil {
		return nil, err
	}

	var paths []string
	for _, out := range []struct {
		name string
		p    *plot.Plot
	}{{"convergence_diff.png", pDiff}, {"convergence_score.png", pScore}} {
		name, p := out.name, out.p
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10
		path := filepath.Join(dir, name)
		if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
			return nil, fmt.Errorf("save %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	monitoring.Logf("diagplot: wrote %d plots for %d rounds to %s", len(paths), len(summaries), dir)
	return paths, nil
}

func addLines(p *plot.Plot, ss []series, summaries []diagstore.RoundSummary) error {
	colors := palette(len(ss))
	for i, s := range ss {
		pts := make(plotter.XYs, len(summaries))
		for k, r := range summaries {
			pts[k] = plotter.XY{X: float64(r.Round), Y: s.value(r)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	return nil
}

// WriteConvergenceHTML renders the same series as WriteConvergencePNG as a
// single go-echarts page.
func WriteConvergenceHTML(w io.Writer, title string, summaries []diagstore.RoundSummary) error {
	if len(summaries) == 0 {
		return ErrNoData
	}
	rounds := make([]string, len(summaries))
	for i, s := range summaries {
		rounds[i] = fmt.Sprintf("%d", s.Round)
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(
		lineChart(title, "Rank-1 change per round", rounds, diffSeries, summaries),
		lineChart(title, "Compression per round", rounds, scoreSeries, summaries),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render convergence page: %w", err)
	}
	return nil
}

func lineChart(title, subtitle string, rounds []string, ss []series, summaries []diagstore.RoundSummary) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Round", NameLocation: "middle", NameGap: 25}),
	)
	line.SetXAxis(rounds)
	for _, s := range ss {
		data := make([]opts.LineData, len(summaries))
		for i, r := range summaries {
			data[i] = opts.LineData{Value: s.value(r)}
		}
		line.AddSeries(s.name, data)
	}
	return line
}

// palette spreads n hues evenly around the colour wheel.
func palette(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
