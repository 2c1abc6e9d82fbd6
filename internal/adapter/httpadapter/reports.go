package httpadapter

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/couchcryptid/speed-report-prep/internal/domain"
	"github.com/couchcryptid/speed-report-prep/internal/render"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const maxRequestBytes = 10 << 20

// statusError carries the HTTP status a request failure maps to.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	report, err := s.prepare(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

func (s *Server) handleSeriesChart(w http.ResponseWriter, r *http.Request) {
	report, err := s.prepare(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSVG(w, r, func(out io.Writer) error {
		return s.renderer.RenderSeries(out, report.Series, chartTitle(r, report))
	})
}

// handleHistogramChart draws the bucket table, or both periods when the
// request carried a comparison histogram and ?compare=true is set.
func (s *Server) handleHistogramChart(w http.ResponseWriter, r *http.Request) {
	report, err := s.prepare(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	title := chartTitle(r, report)
	s.writeSVG(w, r, func(out io.Writer) error {
		if r.URL.Query().Get("compare") == "true" && report.Comparison != nil {
			return s.renderer.RenderComparison(out, *report.Comparison, title)
		}
		return s.renderer.RenderHistogram(out, report.Table, title)
	})
}

func (s *Server) prepare(w http.ResponseWriter, r *http.Request) (domain.PreparedReport, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		return domain.PreparedReport{}, &statusError{status: status, err: err}
	}
	req, err := domain.ParseReportRequest(domain.RawEvent{Value: body})
	if err != nil {
		return domain.PreparedReport{}, &statusError{status: http.StatusBadRequest, err: err}
	}
	report, err := s.preparer.PrepareReport(req)
	if err != nil {
		return domain.PreparedReport{}, &statusError{status: http.StatusUnprocessableEntity, err: err}
	}
	return report, nil
}

// writeSVG renders into a buffer first so a render failure can still be
// reported with a proper status code.
func (s *Server) writeSVG(w http.ResponseWriter, r *http.Request, draw func(io.Writer) error) {
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, render.ErrEmptySeries) || errors.Is(err, render.ErrEmptyHistogram) {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, r, &statusError{status: status, err: err})
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client went away
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var se *statusError
	if errors.As(err, &se) {
		status = se.status
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("report request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Warn("report request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

func chartTitle(r *http.Request, report domain.PreparedReport) string {
	if t := r.URL.Query().Get("title"); t != "" {
		return t
	}
	if report.SiteID != "" {
		return report.SiteID
	}
	return report.ReportID
}
