package render

import (
	"errors"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// barSeries draws one filled rectangle per point, centred on the point's x
// value with a fixed width in x units. An infinite height fills the canvas.
type barSeries struct {
	name   string
	xs     []float64
	height func(i int) (float64, bool)
	width  float64
	color  drawing.Color
	axis   chart.YAxisType
}

var _ chart.Series = barSeries{}

func (b barSeries) GetName() string { return b.name }
func (b barSeries) GetYAxis() chart.YAxisType { return b.axis }
func (b barSeries) GetStyle() chart.Style { return chart.Style{FillColor: b.color} }

func (b barSeries) Validate() error {
	if b.height == nil {
		return errors.New("bar series has no height function")
	}
	return nil
}

func (b barSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	r.SetFillColor(b.color)
	r.SetStrokeColor(b.color)
	r.SetStrokeWidth(0)
	for i, x := range b.xs {
		h, ok := b.height(i)
		if !ok {
			continue
		}
		left := canvasBox.Left + xrange.Translate(x-b.width/2)
		right := canvasBox.Left + xrange.Translate(x+b.width/2)
		top := canvasBox.Top
		if !math.IsInf(h, 1) {
			top = canvasBox.Bottom - yrange.Translate(h)
		}
		left = max(left, canvasBox.Left)
		right = min(right, canvasBox.Right)
		top = max(top, canvasBox.Top)
		if right <= left || top >= canvasBox.Bottom {
			continue
		}
		r.MoveTo(left, top)
		r.LineTo(right, top)
		r.LineTo(right, canvasBox.Bottom)
		r.LineTo(left, canvasBox.Bottom)
		r.Close()
		r.Fill()
	}
}

type legendEntry struct {
	label string
	color drawing.Color
}

// legend draws one swatch per entry along the top edge of the canvas.
func legend(entries []legendEntry) chart.Renderable {
	return func(r chart.Renderer, canvasBox chart.Box, defaults chart.Style) {
		style := chart.Style{FontSize: 8, FontColor: drawing.ColorBlack}.InheritFrom(defaults)
		style.WriteTextOptionsToRenderer(r)

		x := canvasBox.Left + 8
		y := canvasBox.Top + 12
		for _, e := range entries {
			r.SetStrokeColor(e.color)
			r.SetStrokeWidth(3)
			r.MoveTo(x, y-3)
			r.LineTo(x+14, y-3)
			r.Stroke()

			r.Text(e.label, x+18, y)
			x += 18 + r.MeasureText(e.label).Width() + 14
		}
	}
}

func (r *Renderer) legend(fields []string) chart.Renderable {
	entries := make([]legendEntry, 0, len(fields)+1)
	for _, f := range fields {
		entries = append(entries, legendEntry{label: metricLabels[f], color: r.palette.metric(f)})
	}
	entries = append(entries, legendEntry{label: "count", color: r.palette.Count})
	return legend(entries)
}

func (r *Renderer) comparisonLegend() chart.Renderable {
	return legend([]legendEntry{
		{label: "primary", color: r.palette.Primary},
		{label: "comparison", color: r.palette.Secondary},
	})
}
