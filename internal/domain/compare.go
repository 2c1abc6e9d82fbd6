package domain

import (
	"math"
	"slices"

	"github.com/samber/lo"
)

// changeEpsilon is the smallest primary magnitude a percent change is
// computed against.
const changeEpsilon = 1e-9

// Comparison places two histograms side by side over shared ranges. Each
// side is a percentage of its own total, so the shapes stay comparable when
// the sample sizes differ.
type Comparison struct {
	Ranges         []BucketRange `json:"ranges"`
	Width          float64       `json:"width"`
	PrimaryTotal   int64         `json:"primary_total"`
	SecondaryTotal int64         `json:"secondary_total"`

	// Primary, Secondary and Deltas are parallel: row i of each describes the
	// same speed range. Deltas are secondary minus primary, in percentage points.
	Primary   []TableRow `json:"primary"`
	Secondary []TableRow `json:"secondary"`
	Deltas    []float64  `json:"deltas"`
}

// CompareHistograms normalizes two histograms independently over ranges
// inferred from the union of their keys.
func (p *Preparer) CompareHistograms(primary, secondary map[string]int64, opts HistogramOptions) Comparison {
	pCounts, _, pUnparsed := coerceKeys(primary)
	sCounts, _, sUnparsed := coerceKeys(secondary)

	keys := lo.Uniq(lo.Keys(pCounts, sCounts))
	slices.Sort(keys)
	width := bucketWidth(keys, opts)
	ranges := BuildRanges(keys, opts.Cutoff, width)

	pTotal := lo.Sum(lo.Values(pCounts))
	sTotal := lo.Sum(lo.Values(sCounts))
	if p.cfg.IncludeUnparsedInTotal {
		pTotal += pUnparsed
		sTotal += sUnparsed
	}

	pRows := tableRows(pCounts, ranges, opts.Cutoff, pTotal)
	sRows := tableRows(sCounts, ranges, opts.Cutoff, sTotal)
	pRows, sRows = alignBelowRows(pRows, sRows, ranges, opts.Cutoff)

	deltas := make([]float64, len(pRows))
	for i := range pRows {
		deltas[i] = sRows[i].Percent - pRows[i].Percent
	}

	return Comparison{
		Ranges:         ranges,
		Width:          width,
		PrimaryTotal:   pTotal,
		SecondaryTotal: sTotal,
		Primary:        pRows,
		Secondary:      sRows,
		Deltas:         deltas,
	}
}

// alignBelowRows adds an empty "<start" row to the side that lacks one so
// both tables stay row-parallel.
func alignBelowRows(a, b []TableRow, ranges []BucketRange, cutoff float64) ([]TableRow, []TableRow) {
	hasA := len(a) > 0 && a[0].Below
	hasB := len(b) > 0 && b[0].Below
	if hasA == hasB {
		return a, b
	}
	edge := cutoff
	if len(ranges) > 0 {
		edge = ranges[0].Start
	}
	empty := TableRow{Label: "<" + formatEdge(edge), Below: true}
	if hasA {
		return a, append([]TableRow{empty}, b...)
	}
	return append([]TableRow{empty}, a...), b
}

// PercentChange returns (secondary - primary) / primary * 100. The change is
// unavailable when primary is missing or too close to zero.
func PercentChange(primary, secondary float64) (float64, bool) {
	if !isFinite(primary) || !isFinite(secondary) || math.Abs(primary) < changeEpsilon {
		return 0, false
	}
	return (secondary - primary) / primary * 100, true
}

// MetricDelta compares one scalar metric across two periods. Nil fields are
// missing values; a nil Change means the change is unavailable.
type MetricDelta struct {
	Metric    string   `json:"metric"`
	Primary   *float64 `json:"primary"`
	Secondary *float64 `json:"secondary"`
	Change    *float64 `json:"change_percent"`
}

// CompareMetrics computes the percent change of each chart metric between
// two summary rows.
func CompareMetrics(primary, secondary NormalizedRow) []MetricDelta {
	out := make([]MetricDelta, 0, len(ChartMetrics))
	for _, field := range ChartMetrics {
		a, b := primary.Metric(field), secondary.Metric(field)
		d := MetricDelta{
			Metric:    field,
			Primary:   finiteOrNil(a),
			Secondary: finiteOrNil(b),
		}
		if change, ok := PercentChange(a, b); ok {
			d.Change = &change
		}
		out = append(out, d)
	}
	return out
}

func finiteOrNil(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}
