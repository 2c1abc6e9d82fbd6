// Package domain prepares speed survey telemetry for report charts and tables.
//
// # Data Source
//
// Rows originate from the upstream statistics API, which aggregates radar
// speed readings into fixed reporting intervals and publishes one JSON
// object per interval. A report request bundles those rows with a raw speed
// histogram (and optionally a second histogram for a comparison period) and
// arrives on the Kafka source topic or the HTTP prepare endpoint.
//
// # Upstream Conventions
//
// Field names vary by API version:
//
//	p50        →  "p50", "P50Speed", "p50speed", "p50_speed"
//	timestamp  →  "timestamp", "StartTime", "start_time", "period_start"
//	count      →  "count", "Count", "cnt", "n"
//
// The first alias present with a non-null value wins. See [NormalizeRow].
//
// Numbers may arrive as JSON numbers, numeric strings ("  42.5 ", "1e2") or
// booleans. Anything else is NaN, never an error.
//
// Timestamps are RFC3339 strings, naive "2006-01-02 15:04:05" strings or
// Unix epoch numbers (seconds; magnitudes ≥ 1e11 are milliseconds). Naive
// values are UTC. Rows with unusable timestamps are dropped, not fatal.
//
// Histogram keys are the lower edge of a speed bucket as a string
// ("5", "10.0"). Counts are non-negative integers.
//
// # Chart Preparation
//
// Percentile lines are masked wherever the value is invalid or the interval
// holds fewer than [PrepConfig.ChartLowCountThreshold] samples. Masked points
// stay in the series (the x axis keeps its timestamps) but are never joined
// to their neighbours. Sampling gaps larger than
// [PrepConfig.GapMultiplier] times the median spacing split the series into
// runs so an offline sensor does not draw a line across the night.
//
// # Histogram Tables
//
// Bucket width is inferred from the data (minimum positive spacing between
// keys). The final bucket is always open-ended and labelled by the start of
// the bucket that holds the highest observed key ("15+"), independent of the
// configured nominal maximum speed.
package domain
