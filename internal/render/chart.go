package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/couchcryptid/speed-report-prep/internal/domain"
	"github.com/couchcryptid/speed-report-prep/internal/observability"
	"github.com/samber/lo"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Errors returned for input a chart cannot be drawn from.
var (
	ErrEmptySeries    = errors.New("series has no points")
	ErrEmptyHistogram = errors.New("histogram has no rows")
)

const (
	kindSeries     = "series"
	kindHistogram  = "histogram"
	kindComparison = "comparison"

	defaultWidth  = 1024
	defaultHeight = 480

	// minPad keeps the x range open when every point shares one instant.
	minPad = 30 * time.Minute
)

// Palette holds the colours used by every chart.
type Palette struct {
	P50       drawing.Color
	P85       drawing.Color
	P98       drawing.Color
	MaxSpeed  drawing.Color
	Count     drawing.Color
	LowSample drawing.Color
	DayLine   drawing.Color
	Primary   drawing.Color
	Secondary drawing.Color
}

// DefaultPalette returns the report colours.
func DefaultPalette() Palette {
	return Palette{
		P50:       chart.ColorBlue,
		P85:       chart.ColorGreen,
		P98:       chart.ColorOrange,
		MaxSpeed:  chart.ColorRed,
		Count:     drawing.Color{R: 180, G: 180, B: 180, A: 255},
		LowSample: drawing.Color{R: 240, G: 228, B: 200, A: 255},
		DayLine:   chart.ColorAlternateGray,
		Primary:   chart.ColorBlue,
		Secondary: chart.ColorOrange,
	}
}

func (p Palette) metric(field string) drawing.Color {
	switch field {
	case domain.FieldP50:
		return p.P50
	case domain.FieldP85:
		return p.P85
	case domain.FieldP98:
		return p.P98
	default:
		return p.MaxSpeed
	}
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSize sets the canvas size in pixels. Non-positive values are ignored.
func WithSize(width, height int) Option {
	return func(r *Renderer) {
		if width > 0 {
			r.width = width
		}
		if height > 0 {
			r.height = height
		}
	}
}

// WithPalette replaces the default colours.
func WithPalette(p Palette) Option {
	return func(r *Renderer) { r.palette = p }
}

// WithMetrics records render timings and failures.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

// Renderer draws prepared series and bucket tables as SVG charts. It holds
// no per-call state and is safe for concurrent use.
type Renderer struct {
	width   int
	height  int
	palette Palette
	metrics *observability.Metrics
}

// New returns a Renderer with the default size and palette.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		width:   defaultWidth,
		height:  defaultHeight,
		palette: DefaultPalette(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var metricLabels = map[string]string{
	domain.FieldP50:      "p50",
	domain.FieldP85:      "p85",
	domain.FieldP98:      "p98",
	domain.FieldMaxSpeed: "max",
}

// RenderSeries draws the percentile lines over the interval counts. Each
// metric is split into its drawable segments so gaps and masked points stay
// broken; masked points that still carry a value are drawn as muted dots.
func (r *Renderer) RenderSeries(w io.Writer, s domain.PreparedSeries, title string) error {
	return r.observe(kindSeries, func() error {
		if s.Len() == 0 {
			return ErrEmptySeries
		}
		ch := r.seriesChart(s, title)
		return ch.Render(chart.SVG, w)
	})
}

func (r *Renderer) seriesChart(s domain.PreparedSeries, title string) chart.Chart {
	xs := lo.Map(s.Times, func(t time.Time, _ int) float64 { return chart.TimeToFloat64(t) })
	pad := max(s.BarWidths.Background/2, minPad)
	xMin := lo.Min(xs) - float64(pad)
	xMax := lo.Max(xs) + float64(pad)

	series := []chart.Series{
		barSeries{
			name:   "low sample",
			xs:     xs,
			height: func(i int) (float64, bool) { return math.Inf(1), s.LowSample[i] },
			width:  float64(s.BarWidths.Background),
			color:  r.palette.LowSample,
			axis:   chart.YAxisPrimary,
		},
		barSeries{
			name:   "count",
			xs:     xs,
			height: func(i int) (float64, bool) { return float64(s.Counts[i]), s.Counts[i] > 0 },
			width:  float64(s.BarWidths.Foreground),
			color:  r.palette.Count,
			axis:   chart.YAxisSecondary,
		},
	}

	yMax := 0.0
	for _, field := range domain.ChartMetrics {
		line := s.Metric(field)
		values := line.PlotValues()
		color := r.palette.metric(field)
		for _, seg := range domain.Segments(line, s.Runs) {
			series = append(series, chart.TimeSeries{
				Name:    metricLabels[field],
				XValues: s.Times[seg.Start:seg.End],
				YValues: values[seg.Start:seg.End],
				Style:   chart.Style{StrokeColor: color, StrokeWidth: 2, DotColor: color, DotWidth: 2},
			})
		}
		if dots := lowSampleDots(s, line); len(dots.XValues) > 0 {
			dots.Name = metricLabels[field] + " (low sample)"
			dots.Style = chart.Style{StrokeWidth: chart.Disabled, DotColor: r.palette.Count, DotWidth: 3}
			series = append(series, dots)
		}
		for _, p := range line {
			if !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) {
				yMax = max(yMax, p.Value)
			}
		}
	}

	ticks, grid := dayTicks(s)
	ch := chart.Chart{
		Title:      title,
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 28}},
		XAxis: chart.XAxis{
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
			Ticks:          ticks,
			GridLines:      grid,
			GridMajorStyle: chart.Style{StrokeColor: r.palette.DayLine, StrokeWidth: 1},
		},
		YAxis: chart.YAxis{
			Name:  "speed",
			Range: &chart.ContinuousRange{Min: 0, Max: niceCeil(yMax)},
		},
		YAxisSecondary: chart.YAxis{
			Name:           "count",
			Range:          &chart.ContinuousRange{Min: 0, Max: niceCeil(float64(lo.Max(s.Counts)))},
			ValueFormatter: integerFormatter,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{r.legend(domain.ChartMetrics)}
	return ch
}

// lowSampleDots collects the masked points of a line that still have a
// finite value.
func lowSampleDots(s domain.PreparedSeries, line domain.MaskedSeries) chart.TimeSeries {
	var ts chart.TimeSeries
	for i, p := range line {
		if !s.LowSample[i] || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		ts.XValues = append(ts.XValues, s.Times[i])
		ts.YValues = append(ts.YValues, p.Value)
	}
	return ts
}

// dayTicks labels every day boundary and draws a grid line at each one after
// the first.
func dayTicks(s domain.PreparedSeries) ([]chart.Tick, []chart.GridLine) {
	ticks := make([]chart.Tick, 0, len(s.DayBoundaries))
	grid := make([]chart.GridLine, 0, len(s.DayBoundaries))
	for n, i := range s.DayBoundaries {
		v := chart.TimeToFloat64(s.Times[i])
		ticks = append(ticks, chart.Tick{Value: v, Label: s.Times[i].Format("Mon Jan 2")})
		if n > 0 {
			grid = append(grid, chart.GridLine{Value: v})
		}
	}
	return ticks, grid
}

// RenderHistogram draws a bucket table as a percentage bar chart.
func (r *Renderer) RenderHistogram(w io.Writer, rows []domain.TableRow, title string) error {
	return r.observe(kindHistogram, func() error {
		if len(rows) == 0 {
			return ErrEmptyHistogram
		}
		bars := lo.Map(rows, func(row domain.TableRow, _ int) chart.Value {
			return chart.Value{
				Label: row.Label,
				Value: row.Percent,
				Style: chart.Style{FillColor: r.palette.Primary, StrokeColor: r.palette.Primary},
			}
		})
		bc := r.barChart(title, bars)
		return bc.Render(chart.SVG, w)
	})
}

// RenderComparison draws both distributions of a comparison side by side,
// one primary and one secondary bar per range.
func (r *Renderer) RenderComparison(w io.Writer, c domain.Comparison, title string) error {
	return r.observe(kindComparison, func() error {
		n := min(len(c.Primary), len(c.Secondary))
		if n == 0 {
			return ErrEmptyHistogram
		}
		bars := make([]chart.Value, 0, 2*n)
		for i := range n {
			bars = append(bars,
				chart.Value{
					Label: c.Primary[i].Label,
					Value: c.Primary[i].Percent,
					Style: chart.Style{FillColor: r.palette.Primary, StrokeColor: r.palette.Primary},
				},
				chart.Value{
					Value: c.Secondary[i].Percent,
					Style: chart.Style{FillColor: r.palette.Secondary, StrokeColor: r.palette.Secondary},
				},
			)
		}
		bc := r.barChart(title, bars)
		bc.Elements = []chart.Renderable{r.comparisonLegend()}
		return bc.Render(chart.SVG, w)
	})
}

func (r *Renderer) barChart(title string, bars []chart.Value) chart.BarChart {
	top := lo.MaxBy(bars, func(a, b chart.Value) bool { return a.Value > b.Value }).Value
	barWidth := max(4, (r.width-120)*2/(len(bars)*3))
	return chart.BarChart{
		Title:      title,
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		BarWidth:   barWidth,
		BarSpacing: max(2, barWidth/2),
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: niceCeil(top)},
			ValueFormatter: percentFormatter,
		},
		Bars: bars,
	}
}

func (r *Renderer) observe(kind string, render func() error) error {
	start := time.Now()
	if err := render(); err != nil {
		if r.metrics != nil {
			r.metrics.RenderErrors.WithLabelValues(kind).Inc()
		}
		return fmt.Errorf("render %s chart: %w", kind, err)
	}
	if r.metrics != nil {
		r.metrics.RenderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
	return nil
}

// niceCeil rounds v up to one significant step so axes end on a round value.
// Non-positive input yields 1.
func niceCeil(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	step := math.Pow(10, math.Floor(math.Log10(v)))
	if v/step < 2 {
		step /= 5
	}
	return math.Ceil(v*1.05/step) * step
}

func integerFormatter(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

func percentFormatter(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f%%", f)
	}
	return ""
}
