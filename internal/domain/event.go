package domain

import (
	"context"
	"time"
)

// MetricRow is one upstream statistics row. Keys vary by API version; see
// NormalizeRow for the canonical schema.
type MetricRow = map[string]any

// RawEvent represents an unprocessed report request from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ReportRequest is the decoded form of a RawEvent.
type ReportRequest struct {
	ReportID string
	SiteID   string
	Timezone string

	Rows []MetricRow

	Histogram        map[string]int64
	CompareHistogram map[string]int64

	// Summary and CompareSummary hold whole-period percentiles for the
	// primary and comparison periods. Either may be nil.
	Summary        MetricRow
	CompareSummary MetricRow

	// Per-request histogram overrides. Nil means the configured default.
	Cutoff     *float64
	BucketSize *float64
	MaxSpeed   *float64
}

// PreparedReport is everything a renderer or document assembler needs for
// one survey report. It is the payload written to the sink topic.
type PreparedReport struct {
	ReportID string `json:"report_id"`
	SiteID   string `json:"site_id,omitempty"`
	Timezone string `json:"timezone"`

	Series      PreparedSeries   `json:"series"`
	MetricTable []MetricTableRow `json:"metric_table"`
	Histogram   BucketSet        `json:"histogram"`
	Table       []TableRow       `json:"table"`

	// Comparison is present only when the request carried a second histogram.
	Comparison *Comparison `json:"comparison,omitempty"`
	// SummaryDeltas is present only when both summaries were supplied.
	SummaryDeltas []MetricDelta `json:"summary_deltas,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
