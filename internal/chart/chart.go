// Package chart renders a commune's price charts as PNG images.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/evcraddock/immo/internal/metrics"
)

// ErrNoData means there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

// Default image size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

var (
	lineColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	medianColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Trend writes a line chart of the quarterly median price per m² to w.
func Trend(w io.Writer, title string, points []metrics.QuarterPoint) error {
	if len(points) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Quarter"
	p.Y.Label.Text = "Median price (€/m²)"

	xys := make(plotter.XYs, len(points))
	labels := make([]string, len(points))
	for i, pt := range points {
		xys[i].X = float64(i)
		xys[i].Y = pt.MedianPricePerArea
		labels[i] = pt.Quarter
	}

	line, marks, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("building trend line: %w", err)
	}
	line.Color = lineColor
	line.Width = vg.Points(2)
	marks.GlyphStyle.Color = lineColor

	p.Add(plotter.NewGrid(), line, marks)
	p.NominalX(labels...)

	return write(w, p)
}

// Histogram writes a bar chart of the price per m² distribution to w,
// with a dashed marker at median when it is positive.
func Histogram(w io.Writer, title string, bins []metrics.Bin, median float64) error {
	if len(bins) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Price (€/m²)"
	p.Y.Label.Text = "Sales"

	values := make(plotter.Values, len(bins))
	labels := make([]string, len(bins))
	top := 0.0
	for i, b := range bins {
		values[i] = float64(b.Count)
		labels[i] = fmt.Sprintf("%.0f", b.Lower)
		top = math.Max(top, values[i])
	}

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return fmt.Errorf("building histogram: %w", err)
	}
	bars.Color = lineColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(plotter.NewGrid(), bars)

	if x, ok := medianX(bins, median); ok {
		marker, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: top}})
		if err != nil {
			return fmt.Errorf("building median marker: %w", err)
		}
		marker.Color = medianColor
		marker.Width = vg.Points(2)
		marker.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		p.Add(marker)
		p.Legend.Add(fmt.Sprintf("Median %.0f €/m²", median), marker)
		p.Legend.Top = true
	}

	p.NominalX(labels...)
	return write(w, p)
}

// medianX maps a price onto the bar axis, where bar i spans [i-0.5, i+0.5].
func medianX(bins []metrics.Bin, median float64) (float64, bool) {
	if median <= 0 || len(bins) == 0 {
		return 0, false
	}
	width := bins[0].Upper - bins[0].Lower
	if width <= 0 {
		return 0, true
	}
	x := (median-bins[0].Lower)/width - 0.5
	last := float64(len(bins)) - 0.5
	return math.Min(math.Max(x, -0.5), last), true
}

func write(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, "png")
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing chart: %w", err)
	}
	return nil
}
