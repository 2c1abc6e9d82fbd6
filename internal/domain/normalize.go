package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Canonical field names of a NormalizedRow.
const (
	FieldTimestamp = "timestamp"
	FieldP50       = "p50"
	FieldP85       = "p85"
	FieldP98       = "p98"
	FieldMaxSpeed  = "max_speed"
	FieldCount     = "count"
)

// fieldAliases lists, per canonical field, the upstream names in lookup order.
var fieldAliases = map[string][]string{
	FieldTimestamp: {"timestamp", "Timestamp", "time", "start_time", "StartTime", "period_start", "date"},
	FieldP50:       {"p50", "P50Speed", "p50speed", "p50_speed", "P50"},
	FieldP85:       {"p85", "P85Speed", "p85speed", "p85_speed", "P85"},
	FieldP98:       {"p98", "P98Speed", "p98speed", "p98_speed", "P98"},
	FieldMaxSpeed:  {"max_speed", "MaxSpeed", "maxspeed", "max", "Max"},
	FieldCount:     {"count", "Count", "cnt", "n", "samples"},
}

// NormalizedRow is a MetricRow resolved to the canonical schema.
// Missing or invalid metrics are NaN.
type NormalizedRow struct {
	Timestamp any
	P50       float64
	P85       float64
	P98       float64
	MaxSpeed  float64
	Count     int
}

// Metric returns the named percentile/max value, or NaN for unknown names.
func (r NormalizedRow) Metric(field string) float64 {
	switch field {
	case FieldP50:
		return r.P50
	case FieldP85:
		return r.P85
	case FieldP98:
		return r.P98
	case FieldMaxSpeed:
		return r.MaxSpeed
	default:
		return math.NaN()
	}
}

// NormalizeRow resolves an upstream row to the canonical schema.
func NormalizeRow(row MetricRow) NormalizedRow {
	ts, _ := lookupField(row, FieldTimestamp)
	return NormalizedRow{
		Timestamp: ts,
		P50:       GetNumeric(row, FieldP50, math.NaN()),
		P85:       GetNumeric(row, FieldP85, math.NaN()),
		P98:       GetNumeric(row, FieldP98, math.NaN()),
		MaxSpeed:  GetNumeric(row, FieldMaxSpeed, math.NaN()),
		Count:     coerceCount(GetNumeric(row, FieldCount, 0)),
	}
}

// GetNumeric resolves field through the alias table and coerces the value to
// float64. Missing or non-numeric values yield def.
func GetNumeric(row MetricRow, field string, def float64) float64 {
	v, ok := lookupField(row, field)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	return f
}

// lookupField returns the first alias of field present with a non-nil value.
// Fields without an alias entry are looked up verbatim.
func lookupField(row MetricRow, field string) (any, bool) {
	aliases, known := fieldAliases[field]
	if !known {
		aliases = []string{field}
	}
	for _, key := range aliases {
		if v, ok := row[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// toFloat coerces the scalar types produced by JSON decoding and hand-built
// rows. Strings are trimmed and may use scientific notation.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		return parseFloat(n.String())
	case string:
		return parseFloat(n)
	default:
		return 0, false
	}
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// coerceCount truncates a count toward zero; non-finite and negative values
// are 0 and values past the int range clamp to math.MaxInt.
func coerceCount(f float64) int {
	if !isFinite(f) || f < 0 {
		return 0
	}
	if f >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(f)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// timestampLayouts are tried in order for string timestamps. Layouts without
// a zone parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e11 seconds is the year 5138; 1e11 milliseconds is March 1973.
const epochMillisThreshold = 1e11

// ParseTimestamp converts a string or epoch value to an absolute instant.
func ParseTimestamp(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}

	f, ok := toFloat(v)
	if !ok || !isFinite(f) {
		return time.Time{}, false
	}
	if _, isBool := v.(bool); isBool {
		return time.Time{}, false
	}
	if math.Abs(f) >= epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
