package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/speed-report-prep/internal/adapter/tzcache"
	"github.com/couchcryptid/speed-report-prep/internal/config"
	"github.com/couchcryptid/speed-report-prep/internal/domain"
	"github.com/couchcryptid/speed-report-prep/internal/render"
	"github.com/spf13/cobra"
)

const (
	kindSeries     = "series"
	kindHistogram  = "histogram"
	kindComparison = "comparison"
	kindMetrics    = "metrics"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "speedprep",
		Short: "Prepare speed survey report data",
		Long: `speedprep runs the report preparation stages over a request file
without Kafka. Thresholds come from the same environment variables as the
service (CHART_LOW_COUNT_THRESHOLD, HISTOGRAM_CUTOFF, ...).

Pass "-" as the file to read the request from stdin.`,
		SilenceUsage: true,
	}
	root.AddCommand(newPrepareCmd(), newRenderCmd(), newTableCmd())
	return root
}

func newPrepareCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "prepare <request.json>",
		Short: "Print the prepared report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := prepareFile(cmd, args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encode prepared report: %w", err)
			}
			return writeOutput(cmd, output, append(data, '\n'))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var (
		output string
		kind   string
		title  string
		width  int
		height int
	)
	cmd := &cobra.Command{
		Use:   "render <request.json>",
		Short: "Render a chart as SVG",
		Long: `Render one chart of the prepared report as SVG.

Examples:
  speedprep render survey.json --kind series -o series.svg
  speedprep render survey.json --kind comparison --title "Before and after"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := prepareFile(cmd, args[0])
			if err != nil {
				return err
			}
			if title == "" {
				title = report.ReportID
			}
			r := render.New(render.WithSize(width, height))

			var buf bytes.Buffer
			switch kind {
			case kindSeries:
				err = r.RenderSeries(&buf, report.Series, title)
			case kindHistogram:
				err = r.RenderHistogram(&buf, report.Table, title)
			case kindComparison:
				if report.Comparison == nil {
					return fmt.Errorf("request has no compare_histogram")
				}
				err = r.RenderComparison(&buf, *report.Comparison, title)
			default:
				return fmt.Errorf("unknown chart kind %q", kind)
			}
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, buf.Bytes())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&kind, "kind", kindSeries, "chart kind: series, histogram, comparison")
	cmd.Flags().StringVar(&title, "title", "", "chart title (default: report ID)")
	cmd.Flags().IntVar(&width, "width", 0, "canvas width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "canvas height in pixels")
	return cmd
}

func newTableCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "table <request.json>",
		Short: "Print a text table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := prepareFile(cmd, args[0])
			if err != nil {
				return err
			}
			var out string
			switch kind {
			case kindHistogram:
				out = render.Table(report.Table)
			case kindComparison:
				if report.Comparison == nil {
					return fmt.Errorf("request has no compare_histogram")
				}
				out = render.ComparisonTable(*report.Comparison)
			case kindMetrics:
				out = render.MetricTable(report.MetricTable)
			default:
				return fmt.Errorf("unknown table kind %q", kind)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", kindHistogram, "table kind: histogram, comparison, metrics")
	return cmd
}

// prepareFile reads, parses, and prepares one request using the
// environment's preparation settings.
func prepareFile(cmd *cobra.Command, path string) (domain.PreparedReport, error) {
	cfg, err := config.Load()
	if err != nil {
		return domain.PreparedReport{}, err
	}

	var data []byte
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.PreparedReport{}, fmt.Errorf("read request: %w", err)
	}

	req, err := domain.ParseReportRequest(domain.RawEvent{Value: data})
	if err != nil {
		return domain.PreparedReport{}, err
	}
	preparer := domain.NewPreparer(cfg.PrepConfig(), tzcache.NewCachedLoader(nil, cfg.TZCacheSize, nil))
	return preparer.PrepareReport(req)
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
