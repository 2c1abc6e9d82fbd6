package domain

import (
	"encoding/json"
	"math"
	"slices"
	"time"
)

// MaskedPoint is one sample of a percentile line. Masked points keep their
// value for tooltips and tables but must not be joined to their neighbours.
type MaskedPoint struct {
	Index  int
	Value  float64
	Masked bool
}

// MarshalJSON writes non-finite values as null; encoding/json rejects NaN.
func (p MaskedPoint) MarshalJSON() ([]byte, error) {
	var value *float64
	if isFinite(p.Value) {
		value = &p.Value
	}
	return json.Marshal(struct {
		Index  int      `json:"index"`
		Value  *float64 `json:"value"`
		Masked bool     `json:"masked"`
	}{p.Index, value, p.Masked})
}

// UnmarshalJSON reverses MarshalJSON, reading null as NaN.
func (p *MaskedPoint) UnmarshalJSON(data []byte) error {
	var aux struct {
		Index  int      `json:"index"`
		Value  *float64 `json:"value"`
		Masked bool     `json:"masked"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Index, p.Masked = aux.Index, aux.Masked
	p.Value = math.NaN()
	if aux.Value != nil {
		p.Value = *aux.Value
	}
	return nil
}

// MaskedSeries is an ordered percentile line.
type MaskedSeries []MaskedPoint

// PlotValues returns the series values with masked points replaced by NaN.
func (s MaskedSeries) PlotValues() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		if p.Masked {
			out[i] = math.NaN()
			continue
		}
		out[i] = p.Value
	}
	return out
}

// Masks returns the mask flag of every point.
func (s MaskedSeries) Masks() []bool {
	out := make([]bool, len(s))
	for i, p := range s {
		out[i] = p.Masked
	}
	return out
}

// Run is a half-open index range [Start, End) with no internal sampling gap.
type Run struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of points in the run.
func (r Run) Len() int { return r.End - r.Start }

// BarWidths are the widths of the low-sample highlight bars (background) and
// the count bars (foreground), in time units of the x axis.
type BarWidths struct {
	Background time.Duration `json:"background_ns"`
	Foreground time.Duration `json:"foreground_ns"`
}

// PreparedSeries is the chart-ready form of a row set.
type PreparedSeries struct {
	Times []time.Time  `json:"times"`
	P50   MaskedSeries `json:"p50"`
	P85   MaskedSeries `json:"p85"`
	P98   MaskedSeries `json:"p98"`
	Max   MaskedSeries `json:"max_speed"`

	Counts []int `json:"counts"`
	// LowSample flags intervals whose count is below the chart threshold.
	LowSample []bool `json:"low_sample"`

	DayBoundaries []int     `json:"day_boundaries"`
	Runs          []Run     `json:"runs"`
	BarWidths     BarWidths `json:"bar_widths"`

	// Skipped is the number of input rows dropped for unparsable timestamps.
	Skipped int `json:"skipped"`
}

// Len returns the number of points in the series.
func (s PreparedSeries) Len() int { return len(s.Times) }

// Metric returns the line for a canonical metric field, or nil.
func (s PreparedSeries) Metric(field string) MaskedSeries {
	switch field {
	case FieldP50:
		return s.P50
	case FieldP85:
		return s.P85
	case FieldP98:
		return s.P98
	case FieldMaxSpeed:
		return s.Max
	default:
		return nil
	}
}

// MaskedCount returns how many points of the metric line are masked.
func (s PreparedSeries) MaskedCount(field string) int {
	n := 0
	for _, p := range s.Metric(field) {
		if p.Masked {
			n++
		}
	}
	return n
}

// ChartMetrics lists the lines drawn on a series chart, in legend order.
var ChartMetrics = []string{FieldP50, FieldP85, FieldP98, FieldMaxSpeed}

// PrepareSeries converts upstream rows into a gap-aware, day-segmented,
// sample-size-masked series. Instants are shown in loc (UTC when nil).
func (p *Preparer) PrepareSeries(rows []MetricRow, loc *time.Location) PreparedSeries {
	if loc == nil {
		loc = time.UTC
	}

	out := PreparedSeries{
		Times:     make([]time.Time, 0, len(rows)),
		P50:       make(MaskedSeries, 0, len(rows)),
		P85:       make(MaskedSeries, 0, len(rows)),
		P98:       make(MaskedSeries, 0, len(rows)),
		Max:       make(MaskedSeries, 0, len(rows)),
		Counts:    make([]int, 0, len(rows)),
		LowSample: make([]bool, 0, len(rows)),
	}

	for _, row := range rows {
		n := NormalizeRow(row)
		ts, ok := ParseTimestamp(n.Timestamp)
		if !ok {
			out.Skipped++
			continue
		}

		i := len(out.Times)
		low := n.Count < p.cfg.ChartLowCountThreshold
		out.Times = append(out.Times, ts.In(loc))
		out.Counts = append(out.Counts, n.Count)
		out.LowSample = append(out.LowSample, low)
		out.P50 = append(out.P50, maskPoint(i, n.P50, low))
		out.P85 = append(out.P85, maskPoint(i, n.P85, low))
		out.P98 = append(out.P98, maskPoint(i, n.P98, low))
		out.Max = append(out.Max, maskPoint(i, n.MaxSpeed, low))
	}

	out.DayBoundaries = DayBoundaries(out.Times)
	out.Runs = SplitRuns(out.Times, p.cfg.GapMultiplier)
	out.BarWidths = p.barWidths(out.Times)
	return out
}

func maskPoint(i int, v float64, lowSample bool) MaskedPoint {
	return MaskedPoint{Index: i, Value: v, Masked: lowSample || !isFinite(v)}
}

// DayBoundaries returns index 0 plus every index whose calendar date, in the
// times' own location, differs from the previous index.
func DayBoundaries(times []time.Time) []int {
	out := make([]int, 0, 1)
	for i, t := range times {
		if i == 0 {
			out = append(out, 0)
			continue
		}
		py, pm, pd := times[i-1].Date()
		y, m, d := t.Date()
		if y != py || m != pm || d != pd {
			out = append(out, i)
		}
	}
	return out
}

// SplitRuns partitions [0, len(times)) into runs, starting a new run wherever
// the spacing exceeds multiplier times the median spacing. Fewer than three
// points are never split.
func SplitRuns(times []time.Time, multiplier float64) []Run {
	n := len(times)
	if n == 0 {
		return []Run{}
	}
	if n < 3 {
		return []Run{{Start: 0, End: n}}
	}

	med := medianDuration(deltas(times))
	if med <= 0 {
		return []Run{{Start: 0, End: n}}
	}
	threshold := float64(med) * multiplier

	runs := make([]Run, 0, 1)
	start := 0
	for i := 1; i < n; i++ {
		if float64(times[i].Sub(times[i-1])) > threshold {
			runs = append(runs, Run{Start: start, End: i})
			start = i
		}
	}
	return append(runs, Run{Start: start, End: n})
}

// Segments returns the drawable pieces of a line: maximal stretches of
// unmasked points that stay inside a single run.
func Segments(series MaskedSeries, runs []Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		start := -1
		for i := r.Start; i < r.End && i < len(series); i++ {
			if series[i].Masked {
				if start >= 0 {
					out = append(out, Run{Start: start, End: i})
					start = -1
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			out = append(out, Run{Start: start, End: min(r.End, len(series))})
		}
	}
	return out
}

func (p *Preparer) barWidths(times []time.Time) BarWidths {
	switch len(times) {
	case 0:
		return BarWidths{}
	case 1:
		return p.singlePointWidths()
	}
	spacing := medianDuration(deltas(times))
	if spacing <= 0 {
		return p.singlePointWidths()
	}
	return BarWidths{
		Background: time.Duration(float64(spacing) * p.cfg.BackgroundBarFraction),
		Foreground: time.Duration(float64(spacing) * p.cfg.ForegroundBarFraction),
	}
}

func (p *Preparer) singlePointWidths() BarWidths {
	return BarWidths{
		Background: p.cfg.SinglePointBackgroundWidth,
		Foreground: p.cfg.SinglePointForegroundWidth,
	}
}

func deltas(times []time.Time) []time.Duration {
	if len(times) < 2 {
		return nil
	}
	out := make([]time.Duration, len(times)-1)
	for i := 1; i < len(times); i++ {
		out[i-1] = times[i].Sub(times[i-1])
	}
	return out
}

// medianDuration returns the median, averaging the middle pair for even
// lengths. Empty input yields 0.
func medianDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	sorted := slices.Clone(ds)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
