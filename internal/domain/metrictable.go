package domain

import (
	"strconv"
	"time"
)

// MissingCell is shown in the metric table for invalid or under-sampled values.
const MissingCell = "--"

// MetricTableRow is one interval of the per-period statistics table.
type MetricTableRow struct {
	Period   string `json:"period"`
	Count    int    `json:"count"`
	P50      string `json:"p50"`
	P85      string `json:"p85"`
	P98      string `json:"p98"`
	MaxSpeed string `json:"max_speed"`
}

// MetricTable builds the statistics table. Rows with unparsable timestamps are
// dropped; cells are blanked when the value is invalid or the interval count
// is below TableCountMissingThreshold.
func (p *Preparer) MetricTable(rows []MetricRow, loc *time.Location) []MetricTableRow {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]MetricTableRow, 0, len(rows))
	for _, row := range rows {
		n := NormalizeRow(row)
		ts, ok := ParseTimestamp(n.Timestamp)
		if !ok {
			continue
		}
		missing := n.Count < p.cfg.TableCountMissingThreshold
		out = append(out, MetricTableRow{
			Period:   ts.In(loc).Format("2006-01-02 15:04"),
			Count:    n.Count,
			P50:      formatMetricCell(n.P50, missing),
			P85:      formatMetricCell(n.P85, missing),
			P98:      formatMetricCell(n.P98, missing),
			MaxSpeed: formatMetricCell(n.MaxSpeed, missing),
		})
	}
	return out
}

func formatMetricCell(v float64, missing bool) string {
	if missing || !isFinite(v) {
		return MissingCell
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
