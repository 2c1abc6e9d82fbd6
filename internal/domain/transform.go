package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Request field aliases, in lookup order.
var (
	rowsPaths      = []string{"rows", "metrics", "data"}
	histogramPaths = []string{"histogram", "speed_histogram"}
)

// ParseReportRequest decodes a RawEvent's value into a ReportRequest.
// Only malformed JSON is an error; missing sections decode as empty.
func ParseReportRequest(raw RawEvent) (ReportRequest, error) {
	if !gjson.ValidBytes(raw.Value) {
		return ReportRequest{}, errors.New("parse report request: invalid JSON")
	}
	doc := gjson.ParseBytes(raw.Value)
	if !doc.IsObject() {
		return ReportRequest{}, fmt.Errorf("parse report request: expected object, got %s", doc.Type)
	}

	req := ReportRequest{
		ReportID:       doc.Get("report_id").String(),
		SiteID:         doc.Get("site_id").String(),
		Timezone:       doc.Get("timezone").String(),
		Rows:           decodeRows(firstOf(doc, rowsPaths)),
		Histogram:      decodeHistogram(firstOf(doc, histogramPaths)),
		Summary:        decodeObject(doc.Get("summary")),
		CompareSummary: decodeObject(doc.Get("compare_summary")),
		Cutoff:         optionalFloat(doc.Get("cutoff")),
		BucketSize:     optionalFloat(doc.Get("bucket_size")),
		MaxSpeed:       optionalFloat(doc.Get("max_speed")),
	}
	if c := doc.Get("compare_histogram"); c.IsObject() {
		req.CompareHistogram = decodeHistogram(c)
	}
	if req.ReportID == "" {
		req.ReportID = generateReportID(raw.Value)
	}
	return req, nil
}

func firstOf(doc gjson.Result, paths []string) gjson.Result {
	for _, p := range paths {
		if r := doc.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

// decodeRows keeps only object elements; anything else in the array is not a row.
func decodeRows(arr gjson.Result) []MetricRow {
	rows := make([]MetricRow, 0)
	if !arr.IsArray() {
		return rows
	}
	arr.ForEach(func(_, v gjson.Result) bool {
		if m, ok := v.Value().(map[string]any); ok {
			rows = append(rows, m)
		}
		return true
	})
	return rows
}

func decodeHistogram(obj gjson.Result) map[string]int64 {
	hist := make(map[string]int64)
	if !obj.IsObject() {
		return hist
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		hist[k.String()] += v.Int()
		return true
	})
	return hist
}

func decodeObject(obj gjson.Result) MetricRow {
	m, ok := obj.Value().(map[string]any)
	if !ok {
		return nil
	}
	return m
}

func optionalFloat(r gjson.Result) *float64 {
	if r.Type != gjson.Number {
		return nil
	}
	v := r.Float()
	return &v
}

// generateReportID derives a deterministic ID from the request payload so a
// replayed request produces the same sink key.
func generateReportID(payload []byte) string {
	hash := sha256.Sum256(payload)
	return "rpt-" + hex.EncodeToString(hash[:8])
}

// PrepareReport runs every preparation stage for one request. The only error
// is an unknown timezone.
func (p *Preparer) PrepareReport(req ReportRequest) (PreparedReport, error) {
	tz := req.Timezone
	if tz == "" {
		tz = p.cfg.DefaultTimezone
	}
	if tz == "" {
		tz = "UTC"
	}
	loc, err := p.locations.LoadLocation(tz)
	if err != nil {
		return PreparedReport{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	opts := p.histogramOptions(req)
	set := p.ProcessHistogram(req.Histogram, opts)

	report := PreparedReport{
		ReportID:    req.ReportID,
		SiteID:      req.SiteID,
		Timezone:    tz,
		Series:      p.PrepareSeries(req.Rows, loc),
		MetricTable: p.MetricTable(req.Rows, loc),
		Histogram:   set,
		Table:       FormatTable(set),
	}
	if req.CompareHistogram != nil {
		c := p.CompareHistograms(req.Histogram, req.CompareHistogram, opts)
		report.Comparison = &c
	}
	if req.Summary != nil && req.CompareSummary != nil {
		report.SummaryDeltas = CompareMetrics(NormalizeRow(req.Summary), NormalizeRow(req.CompareSummary))
	}
	report.ProcessedAt = clock.Now().UTC()
	return report, nil
}

func (p *Preparer) histogramOptions(req ReportRequest) HistogramOptions {
	opts := HistogramOptions{
		Cutoff:     p.cfg.HistogramCutoff,
		BucketSize: p.cfg.HistogramBucketSize,
		NominalMax: p.cfg.HistogramMaxSpeed,
	}
	if req.Cutoff != nil {
		opts.Cutoff = *req.Cutoff
	}
	if req.BucketSize != nil && *req.BucketSize > 0 {
		opts.BucketSize = *req.BucketSize
	}
	if req.MaxSpeed != nil {
		opts.NominalMax = *req.MaxSpeed
	}
	return opts
}
