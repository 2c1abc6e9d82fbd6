package render

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/couchcryptid/speed-report-prep/internal/domain"
	"github.com/samber/lo"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
)

// newTable returns a bordered table whose first column is left aligned and
// whose remaining columns are right aligned.
func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return labelStyle
			default:
				return numberStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
}

// Table renders a bucket table with count and percentage columns.
func Table(rows []domain.TableRow) string {
	return newTable(
		[]string{"Speed", "Count", "Percent"},
		lo.Map(rows, func(r domain.TableRow, _ int) []string {
			return []string{r.Label, strconv.FormatInt(r.Count, 10), r.PercentLabel()}
		}),
	).String()
}

// ComparisonTable renders both periods of a comparison with the percentage
// point difference per range.
func ComparisonTable(c domain.Comparison) string {
	n := min(len(c.Primary), len(c.Secondary))
	rows := make([][]string, 0, n)
	for i := range n {
		delta := ""
		if i < len(c.Deltas) {
			delta = strconv.FormatFloat(c.Deltas[i], 'f', 1, 64)
		}
		rows = append(rows, []string{
			c.Primary[i].Label,
			c.Primary[i].PercentLabel(),
			c.Secondary[i].PercentLabel(),
			delta,
		})
	}
	return newTable([]string{"Speed", "Primary", "Comparison", "Delta"}, rows).String()
}

// MetricTable renders the per-interval statistics table.
func MetricTable(rows []domain.MetricTableRow) string {
	return newTable(
		[]string{"Period", "Count", "P50", "P85", "P98", "Max"},
		lo.Map(rows, func(r domain.MetricTableRow, _ int) []string {
			return []string{r.Period, strconv.Itoa(r.Count), r.P50, r.P85, r.P98, r.MaxSpeed}
		}),
	).String()
}
