package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/speed-report-prep/internal/domain"
	"github.com/couchcryptid/speed-report-prep/internal/observability"
)

// ReportTransformer implements Transformer with a domain.Preparer and records
// data quality metrics for every report it prepares.
type ReportTransformer struct {
	preparer *domain.Preparer
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a ReportTransformer.
func NewTransformer(preparer *domain.Preparer, logger *slog.Logger, metrics *observability.Metrics) *ReportTransformer {
	return &ReportTransformer{
		preparer: preparer,
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *ReportTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.PreparedReport, error) {
	req, err := domain.ParseReportRequest(raw)
	if err != nil {
		return domain.PreparedReport{}, err
	}

	report, err := t.preparer.PrepareReport(req)
	if err != nil {
		return domain.PreparedReport{}, err
	}

	t.observe(report)
	return report, nil
}

func (t *ReportTransformer) observe(report domain.PreparedReport) {
	s := report.Series
	t.metrics.RowsSkipped.Add(float64(s.Skipped))
	for _, field := range domain.ChartMetrics {
		t.metrics.PointsMasked.WithLabelValues(field).Add(float64(s.MaskedCount(field)))
	}
	t.metrics.UnparsedBuckets.Add(float64(len(report.Histogram.Unparsed)))
	if report.Comparison != nil {
		t.metrics.ReportsCompared.Inc()
	}

	if s.Skipped > 0 || len(report.Histogram.Unparsed) > 0 {
		t.logger.Warn("report input partially unusable",
			"report_id", report.ReportID,
			"rows_skipped", s.Skipped,
			"unparsed_keys", report.Histogram.Unparsed,
		)
	}
	t.logger.Debug("report prepared",
		"report_id", report.ReportID,
		"points", s.Len(),
		"runs", len(s.Runs),
		"histogram_total", report.Histogram.Total,
	)
}
