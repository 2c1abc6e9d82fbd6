package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPreparer(mutate func(*PrepConfig)) *Preparer {
	cfg := DefaultPrepConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewPreparer(cfg, nil)
}

func hourlyRows(start time.Time, counts ...int) []MetricRow {
	rows := make([]MetricRow, 0, len(counts))
	for i, c := range counts {
		rows = append(rows, MetricRow{
			"timestamp": start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			"p50":       25.0 + float64(i),
			"p85":       30.0 + float64(i),
			"p98":       36.0 + float64(i),
			"max_speed": 45.0 + float64(i),
			"count":     c,
		})
	}
	return rows
}

func TestPrepareSeries_LowSampleMasking(t *testing.T) {
	p := testPreparer(func(c *PrepConfig) { c.ChartLowCountThreshold = 10 })
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	s := p.PrepareSeries(hourlyRows(start, 100, 5, 100), time.UTC)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []bool{false, true, false}, s.P50.Masks())
	assert.Equal(t, []bool{false, true, false}, s.Max.Masks())
	assert.Equal(t, []bool{false, true, false}, s.LowSample)
	assert.Equal(t, []int{100, 5, 100}, s.Counts)

	// Masked points keep their value for tables and tooltips.
	assert.Equal(t, 26.0, s.P50[1].Value)
	plot := s.P50.PlotValues()
	assert.Equal(t, 25.0, plot[0])
	assert.True(t, math.IsNaN(plot[1]))
	assert.Equal(t, 27.0, plot[2])
	assert.Equal(t, 1, s.MaskedCount(FieldP50))
}

func TestPrepareSeries_InvalidValueMasked(t *testing.T) {
	p := testPreparer(nil)
	rows := []MetricRow{
		{"timestamp": "2024-06-01T08:00:00Z", "p50": "n/a", "p85": 30.0, "count": 500},
	}

	s := p.PrepareSeries(rows, time.UTC)

	require.Equal(t, 1, s.Len())
	assert.True(t, s.P50[0].Masked)
	assert.False(t, s.P85[0].Masked)
	assert.True(t, s.P98[0].Masked)
	assert.False(t, s.LowSample[0])
}

func TestPrepareSeries_AllInvalidValues(t *testing.T) {
	p := testPreparer(nil)
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	rows := make([]MetricRow, 0, 4)
	want := make([]time.Time, 0, 4)
	for i := range 4 {
		ts := start.Add(time.Duration(i) * time.Hour)
		want = append(want, ts)
		rows = append(rows, MetricRow{
			"timestamp": ts.Format(time.RFC3339),
			"p50":       math.NaN(),
			"p85":       "n/a",
			"p98":       math.Inf(1),
			"count":     500,
		})
	}
	rows[1]["count"] = 1e30

	s := p.PrepareSeries(rows, time.UTC)

	require.Equal(t, 4, s.Len())
	assert.Equal(t, want, s.Times)
	allMasked := []bool{true, true, true, true}
	for _, field := range ChartMetrics {
		assert.Equal(t, allMasked, s.Metric(field).Masks(), field)
		assert.Empty(t, Segments(s.Metric(field), s.Runs), field)
	}
	assert.Equal(t, []bool{false, false, false, false}, s.LowSample)
	assert.Equal(t, []int{500, math.MaxInt, 500, 500}, s.Counts)
	assert.Equal(t, []Run{{Start: 0, End: 4}}, s.Runs)
}

func TestPrepareSeries_GapAndDayBoundary(t *testing.T) {
	p := testPreparer(func(c *PrepConfig) { c.ChartLowCountThreshold = 0 })
	first := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	resumed := first.Add(3*time.Hour + 26*time.Hour)

	rows := append(hourlyRows(first, 10, 10, 10, 10), hourlyRows(resumed, 10, 10, 10)...)
	s := p.PrepareSeries(rows, time.UTC)

	require.Equal(t, 7, s.Len())
	if diff := cmp.Diff([]Run{{Start: 0, End: 4}, {Start: 4, End: 7}}, s.Runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{0, 4}, s.DayBoundaries)
	assert.Equal(t, 57*time.Minute, s.BarWidths.Background)
	assert.Equal(t, 42*time.Minute, s.BarWidths.Foreground)
}

func TestPrepareSeries_DayBoundaryFollowsLocation(t *testing.T) {
	p := testPreparer(nil)
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	// 06:00 and 08:00 UTC straddle midnight in Los Angeles (PDT, UTC-7).
	rows := []MetricRow{
		{"timestamp": "2024-06-01T06:00:00Z", "count": 100},
		{"timestamp": "2024-06-01T08:00:00Z", "count": 100},
	}

	utc := p.PrepareSeries(rows, time.UTC)
	local := p.PrepareSeries(rows, la)

	assert.Equal(t, []int{0}, utc.DayBoundaries)
	assert.Equal(t, []int{0, 1}, local.DayBoundaries)
	assert.Equal(t, la, local.Times[0].Location())
}

func TestPrepareSeries_SkipsUnparsableTimestamps(t *testing.T) {
	p := testPreparer(nil)
	rows := []MetricRow{
		{"timestamp": "2024-06-01T08:00:00Z", "count": 100},
		{"timestamp": "soon", "count": 100},
		{"count": 100},
		{"timestamp": "2024-06-01T09:00:00Z", "count": 100},
	}

	s := p.PrepareSeries(rows, time.UTC)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, 0, s.P50[0].Index)
	assert.Equal(t, 1, s.P50[1].Index)
}

func TestPrepareSeries_PreservesInputOrder(t *testing.T) {
	p := testPreparer(nil)
	rows := []MetricRow{
		{"timestamp": "2024-06-01T10:00:00Z", "count": 100},
		{"timestamp": "2024-06-01T08:00:00Z", "count": 100},
	}

	s := p.PrepareSeries(rows, nil)

	require.Equal(t, 2, s.Len())
	assert.Equal(t, 10, s.Times[0].Hour())
	assert.Equal(t, 8, s.Times[1].Hour())
}

func TestPrepareSeries_Empty(t *testing.T) {
	p := testPreparer(nil)

	for name, rows := range map[string][]MetricRow{
		"nil":         nil,
		"all invalid": {{"timestamp": "bad"}, {"p50": 30.0}},
	} {
		t.Run(name, func(t *testing.T) {
			s := p.PrepareSeries(rows, time.UTC)

			assert.Equal(t, 0, s.Len())
			assert.NotNil(t, s.Times)
			assert.NotNil(t, s.P50)
			assert.Empty(t, s.Runs)
			assert.Empty(t, s.DayBoundaries)
			assert.Equal(t, BarWidths{}, s.BarWidths)
		})
	}
}

func TestPrepareSeries_SinglePoint(t *testing.T) {
	p := testPreparer(nil)
	rows := hourlyRows(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), 120)

	s := p.PrepareSeries(rows, time.UTC)

	assert.Equal(t, []Run{{Start: 0, End: 1}}, s.Runs)
	assert.Equal(t, []int{0}, s.DayBoundaries)
	assert.Equal(t, 57*time.Minute, s.BarWidths.Background)
	assert.Equal(t, 42*time.Minute, s.BarWidths.Foreground)
}

func TestSplitRuns(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	at := func(offsets ...time.Duration) []time.Time {
		out := make([]time.Time, len(offsets))
		for i, o := range offsets {
			out[i] = base.Add(o)
		}
		return out
	}
	h := time.Hour

	tests := []struct {
		name     string
		times    []time.Time
		expected []Run
	}{
		{"empty", nil, []Run{}},
		{"one point", at(0), []Run{{0, 1}}},
		{"two points far apart", at(0, 100*h), []Run{{0, 2}}},
		{"regular spacing", at(0, h, 2*h, 3*h), []Run{{0, 4}}},
		{"gap at threshold stays joined", at(0, h, 2*h, 4*h+30*time.Minute), []Run{{0, 4}}},
		{"gap past threshold splits", at(0, h, 2*h, 5*h), []Run{{0, 3}, {3, 4}}},
		{"two gaps", at(0, h, 2*h, 10*h, 11*h, 20*h, 21*h), []Run{{0, 3}, {3, 5}, {5, 7}}},
		{"duplicate timestamps disable splitting", at(0, 0, 0, 0, 9*h), []Run{{0, 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitRuns(tt.times, 2.5)
			assert.Equal(t, tt.expected, got)
			assertPartition(t, got, len(tt.times))
		})
	}
}

// assertPartition checks that runs cover [0, n) contiguously without overlap.
func assertPartition(t *testing.T, runs []Run, n int) {
	t.Helper()
	next := 0
	for _, r := range runs {
		assert.Equal(t, next, r.Start)
		assert.Greater(t, r.End, r.Start)
		next = r.End
	}
	assert.Equal(t, n, next)
}

func TestDayBoundaries(t *testing.T) {
	d := func(day, hour int) time.Time { return time.Date(2024, 6, day, hour, 0, 0, 0, time.UTC) }

	assert.Equal(t, []int{}, DayBoundaries(nil))
	assert.Equal(t, []int{0}, DayBoundaries([]time.Time{d(1, 5)}))
	assert.Equal(t, []int{0, 2, 3}, DayBoundaries([]time.Time{d(1, 5), d(1, 23), d(2, 0), d(4, 1)}))
}

func TestSegments(t *testing.T) {
	series := func(masks ...bool) MaskedSeries {
		s := make(MaskedSeries, len(masks))
		for i, m := range masks {
			s[i] = MaskedPoint{Index: i, Value: float64(i), Masked: m}
		}
		return s
	}

	tests := []struct {
		name     string
		series   MaskedSeries
		runs     []Run
		expected []Run
	}{
		{"all visible", series(false, false, false), []Run{{0, 3}}, []Run{{0, 3}}},
		{"masked point breaks line", series(false, true, false, false), []Run{{0, 4}}, []Run{{0, 1}, {2, 4}}},
		{"run boundary breaks line", series(false, false, false, false), []Run{{0, 2}, {2, 4}}, []Run{{0, 2}, {2, 4}}},
		{"all masked", series(true, true), []Run{{0, 2}}, []Run{}},
		{"trailing mask", series(false, false, true), []Run{{0, 3}}, []Run{{0, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Segments(tt.series, tt.runs)
			assert.Equal(t, tt.expected, got)
			for _, seg := range got {
				for i := seg.Start; i < seg.End; i++ {
					assert.False(t, tt.series[i].Masked, "segment %v bridges masked point %d", seg, i)
				}
			}
		})
	}
}

func TestMedianDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), medianDuration(nil))
	assert.Equal(t, 2*time.Minute, medianDuration([]time.Duration{3 * time.Minute, time.Minute, 2 * time.Minute}))
	assert.Equal(t, 90*time.Second, medianDuration([]time.Duration{time.Minute, 2 * time.Minute}))
}

func TestMaskedPoint_JSON(t *testing.T) {
	data, err := json.Marshal(MaskedSeries{
		{Index: 0, Value: 31.5},
		{Index: 1, Value: math.NaN(), Masked: true},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"index":0,"value":31.5,"masked":false},{"index":1,"value":null,"masked":true}]`, string(data))

	var back MaskedSeries
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 2)
	assert.Equal(t, 31.5, back[0].Value)
	assert.True(t, math.IsNaN(back[1].Value))
	assert.True(t, back[1].Masked)
}
