package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/samber/lo"
)

// maxRanges bounds the number of ranges built for one histogram. Wider
// spans get a proportionally wider bucket instead of a truncated tail.
const maxRanges = 1000

// HistogramOptions controls bucket range construction for one histogram.
type HistogramOptions struct {
	// Cutoff is the lowest speed shown as a regular bucket; keys below it are
	// summed into a single "<start" row.
	Cutoff float64
	// BucketSize is the nominal bucket width, used when it cannot be inferred.
	BucketSize float64
	// NominalMax is the configured top speed. It is recorded but never moves
	// the open-ended tail, which always follows the observed data.
	NominalMax float64
}

// HistogramBucket is one coerced histogram key.
type HistogramBucket struct {
	Key     float64 `json:"key"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// BucketRange is a [Start, End) speed interval. The open-ended range covers
// every speed from Start upward.
type BucketRange struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	OpenEnded bool    `json:"open_ended"`
}

// Label renders the range as "5-10", or "15+" when open-ended.
func (r BucketRange) Label() string {
	if r.OpenEnded {
		return formatEdge(r.Start) + "+"
	}
	return formatEdge(r.Start) + "-" + formatEdge(r.End)
}

// BucketSet is a processed histogram.
type BucketSet struct {
	Buckets []HistogramBucket `json:"buckets"`
	Ranges  []BucketRange     `json:"ranges"`
	Width   float64           `json:"width"`
	Cutoff  float64           `json:"cutoff"`
	Total   int64             `json:"total"`

	// Unparsed lists keys that are not numbers; UnparsedCount is their
	// combined count.
	Unparsed      []string `json:"unparsed,omitempty"`
	UnparsedCount int64    `json:"unparsed_count"`

	NominalMax float64 `json:"nominal_max"`
}

// TableRow is one rendered histogram row.
type TableRow struct {
	Label     string  `json:"label"`
	Count     int64   `json:"count"`
	Percent   float64 `json:"percent"`
	Below     bool    `json:"below,omitempty"`
	OpenEnded bool    `json:"open_ended,omitempty"`
}

// PercentLabel renders the percentage with one decimal, e.g. "20.0%".
func (r TableRow) PercentLabel() string {
	return fmt.Sprintf("%.1f%%", r.Percent)
}

// ProcessHistogram coerces keys, infers the bucket width and builds the
// contiguous ranges of a raw histogram.
func (p *Preparer) ProcessHistogram(hist map[string]int64, opts HistogramOptions) BucketSet {
	counts, unparsed, unparsedCount := coerceKeys(hist)
	keys := sortedKeys(counts)

	total := lo.Sum(lo.Values(counts))
	if p.cfg.IncludeUnparsedInTotal {
		total += unparsedCount
	}

	width := bucketWidth(keys, opts)
	set := BucketSet{
		Buckets:       make([]HistogramBucket, 0, len(keys)),
		Ranges:        BuildRanges(keys, opts.Cutoff, width),
		Width:         width,
		Cutoff:        opts.Cutoff,
		Total:         total,
		Unparsed:      unparsed,
		UnparsedCount: unparsedCount,
		NominalMax:    opts.NominalMax,
	}
	for _, k := range keys {
		set.Buckets = append(set.Buckets, HistogramBucket{
			Key:     k,
			Count:   counts[k],
			Percent: percent(counts[k], total),
		})
	}
	return set
}

// FormatTable renders a processed histogram as table rows: an optional
// "<start" row, one row per range, the last one open-ended.
func FormatTable(set BucketSet) []TableRow {
	counts := make(map[float64]int64, len(set.Buckets))
	for _, b := range set.Buckets {
		counts[b.Key] = b.Count
	}
	return tableRows(counts, set.Ranges, set.Cutoff, set.Total)
}

// InferBucketWidth returns the smallest positive spacing between sorted
// distinct keys, or fallback when there is none.
func InferBucketWidth(sortedKeys []float64, fallback float64) float64 {
	width := math.Inf(1)
	for i := 1; i < len(sortedKeys); i++ {
		if d := sortedKeys[i] - sortedKeys[i-1]; d > 0 && d < width {
			width = d
		}
	}
	if math.IsInf(width, 1) {
		return fallback
	}
	return width
}

// bucketWidth infers the width from the keys, falling back to the configured
// bucket size when the inferred spacing is jitter: too small to survive edge
// rounding, or so small the span would need more than maxRanges ranges.
func bucketWidth(sortedKeys []float64, opts HistogramOptions) float64 {
	width := InferBucketWidth(sortedKeys, opts.BucketSize)
	if roundEdge(width) > 0 && rangesNeeded(sortedKeys, opts.Cutoff, width) <= maxRanges {
		return width
	}
	fallback := opts.BucketSize
	if first, last, ok := keySpan(sortedKeys, opts.Cutoff); ok {
		fallback = fitWidth(first, last, fallback)
	}
	return fallback
}

// BuildRanges steps from the smallest key at or above cutoff by width until
// the largest key is reached. The final range is open-ended, so its start is
// the start of the bucket holding the largest observed key.
func BuildRanges(sortedKeys []float64, cutoff, width float64) []BucketRange {
	first, last, ok := keySpan(sortedKeys, cutoff)
	if !ok {
		return []BucketRange{}
	}

	if !isFinite(width) || roundEdge(width) <= 0 {
		return []BucketRange{{Start: first, End: first, OpenEnded: true}}
	}
	width = fitWidth(first, last, width)

	ranges := make([]BucketRange, 0, 8)
	for i := 0; i < maxRanges; i++ {
		start := roundEdge(first + float64(i)*width)
		if i > 0 && start >= last {
			break
		}
		ranges = append(ranges, BucketRange{Start: start, End: roundEdge(start + width)})
	}
	ranges[len(ranges)-1].OpenEnded = true
	return ranges
}

// keySpan returns the smallest key at or above cutoff and the largest key.
func keySpan(sortedKeys []float64, cutoff float64) (first, last float64, ok bool) {
	idx := slices.IndexFunc(sortedKeys, func(k float64) bool { return k >= cutoff })
	if idx < 0 {
		return 0, 0, false
	}
	return sortedKeys[idx], sortedKeys[len(sortedKeys)-1], true
}

func rangesNeeded(sortedKeys []float64, cutoff, width float64) float64 {
	first, last, ok := keySpan(sortedKeys, cutoff)
	if !ok {
		return 1
	}
	return max(1, math.Ceil((last-first)/width))
}

// fitWidth widens width by a whole multiple so [first, last] fits in
// maxRanges ranges. Non-positive widths are returned unchanged.
func fitWidth(first, last, width float64) float64 {
	if width <= 0 || !isFinite(width) {
		return width
	}
	if n := math.Ceil((last - first) / width); n > maxRanges {
		width *= math.Ceil(n / maxRanges)
	}
	return width
}

// tableRows tallies key counts into ranges. Keys below the first range are
// folded into a leading row that is omitted when its count is zero.
func tableRows(counts map[float64]int64, ranges []BucketRange, cutoff float64, total int64) []TableRow {
	below, perRange := tally(counts, ranges)
	rows := make([]TableRow, 0, len(ranges)+1)

	if below > 0 {
		edge := cutoff
		if len(ranges) > 0 {
			edge = ranges[0].Start
		}
		rows = append(rows, TableRow{
			Label:   "<" + formatEdge(edge),
			Count:   below,
			Percent: percent(below, total),
			Below:   true,
		})
	}
	for i, r := range ranges {
		rows = append(rows, TableRow{
			Label:     r.Label(),
			Count:     perRange[i],
			Percent:   percent(perRange[i], total),
			OpenEnded: r.OpenEnded,
		})
	}
	return rows
}

// tally assigns every key to a range index by its offset from the first
// range. Offsets past the last range go to the open-ended tail.
func tally(counts map[float64]int64, ranges []BucketRange) (below int64, perRange []int64) {
	perRange = make([]int64, len(ranges))
	if len(ranges) == 0 {
		return lo.Sum(lo.Values(counts)), perRange
	}

	first := ranges[0].Start
	width := ranges[0].End - ranges[0].Start
	for key, c := range counts {
		if key < first {
			below += c
			continue
		}
		idx := len(ranges) - 1
		if width > 0 {
			// The epsilon keeps keys sitting exactly on an edge out of the
			// bucket below it when width is not exactly representable.
			idx = min(int(math.Floor((key-first)/width+1e-9)), len(ranges)-1)
		}
		perRange[idx] += c
	}
	return below, perRange
}

// coerceKeys parses histogram keys, accumulating duplicates such as "5" and
// "5.0". Negative counts are treated as zero.
func coerceKeys(hist map[string]int64) (counts map[float64]int64, unparsed []string, unparsedCount int64) {
	counts = make(map[float64]int64, len(hist))
	for raw, c := range hist {
		c = max(c, 0)
		key, ok := parseFloat(raw)
		if !ok || !isFinite(key) {
			unparsed = append(unparsed, raw)
			unparsedCount += c
			continue
		}
		counts[key] += c
	}
	slices.Sort(unparsed)
	return counts, unparsed, unparsedCount
}

func sortedKeys(counts map[float64]int64) []float64 {
	keys := lo.Keys(counts)
	slices.Sort(keys)
	return keys
}

// percent returns count as a percentage of total; a zero total yields 0.
func percent(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// roundEdge drops accumulated float noise (0.30000000000000004) from edges.
func roundEdge(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

func formatEdge(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
