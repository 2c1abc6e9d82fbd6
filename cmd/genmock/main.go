// Command genmock generates synthetic speed-survey report requests and the
// prepared reports the pipeline produces for them. It runs the real domain
// package so the prepared fixture matches pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -requests-out data/mock/report_requests.json \
//	  -prepared-out data/mock/prepared_reports.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/speed-report-prep/internal/domain"
	"github.com/jonboulle/clockwork"
)

var surveyStart = time.Date(2024, time.June, 3, 6, 0, 0, 0, time.UTC)

type siteDef struct {
	id       string
	timezone string
	limit    float64 // posted limit, centres the synthetic distribution
	gapAfter int     // hour index after which a recording gap starts; 0 for none
	compare  bool
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	requestsOut := flag.String("requests-out", "", "output path for the report request fixture")
	preparedOut := flag.String("prepared-out", "", "output path for the prepared report fixture")
	hours := flag.Int("hours", 48, "hourly intervals per site")
	seed := flag.Uint64("seed", 20240603, "random seed")
	flag.Parse()

	if *requestsOut == "" || *preparedOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -requests-out, -prepared-out")
	}

	sites := []siteDef{
		{id: "main-street", timezone: "America/Los_Angeles", limit: 25, gapAfter: 20, compare: true},
		{id: "county-road-9", timezone: "America/Chicago", limit: 45},
		{id: "school-zone-3", timezone: "America/New_York", limit: 20, compare: true},
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(surveyStart.Add(72 * time.Hour)))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewPCG(*seed, *seed>>1))
	preparer := domain.NewPreparer(domain.DefaultPrepConfig(), nil)

	requests := make([]map[string]any, 0, len(sites))
	prepared := make([]domain.PreparedReport, 0, len(sites))
	for _, site := range sites {
		req := generateRequest(rng, site, *hours)
		raw, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal request %s: %w", site.id, err)
		}
		parsed, err := domain.ParseReportRequest(domain.RawEvent{Value: raw})
		if err != nil {
			return fmt.Errorf("parse request %s: %w", site.id, err)
		}
		report, err := preparer.PrepareReport(parsed)
		if err != nil {
			return fmt.Errorf("prepare request %s: %w", site.id, err)
		}
		requests = append(requests, req)
		prepared = append(prepared, report)
		log.Printf("%s: %d rows", site.id, len(parsed.Rows))
	}

	if err := writeJSON(*requestsOut, requests); err != nil {
		return fmt.Errorf("writing request fixture: %w", err)
	}
	log.Printf("wrote request fixture: %s", *requestsOut)

	if err := writeJSON(*preparedOut, prepared); err != nil {
		return fmt.Errorf("writing prepared fixture: %w", err)
	}
	log.Printf("wrote prepared fixture: %s", *preparedOut)

	printStats(prepared)
	return nil
}

// generateRequest builds hourly rows with a daily traffic curve, so the
// overnight hours fall below the chart and table thresholds.
func generateRequest(rng *rand.Rand, site siteDef, hours int) map[string]any {
	rows := make([]map[string]any, 0, hours)
	offset := time.Duration(0)
	for h := range hours {
		if site.gapAfter > 0 && h == site.gapAfter {
			offset += 9 * time.Hour
		}
		ts := surveyStart.Add(time.Duration(h)*time.Hour + offset)
		count := trafficCount(rng, ts)
		p50 := site.limit + rng.NormFloat64()*1.5
		rows = append(rows, map[string]any{
			"timestamp": ts.Format(time.RFC3339),
			"p50":       round1(p50),
			"p85":       round1(p50 + 4 + rng.Float64()*2),
			"p98":       round1(p50 + 9 + rng.Float64()*3),
			"max_speed": round1(p50 + 16 + rng.Float64()*10),
			"count":     count,
		})
	}

	req := map[string]any{
		"report_id": "rpt-" + site.id + "-" + surveyStart.Format("2006-01"),
		"site_id":   site.id,
		"timezone":  site.timezone,
		"rows":      rows,
		"histogram": speedHistogram(rng, site.limit, 4000),
		"summary":   map[string]any{"p50": site.limit, "p85": site.limit + 5, "p98": site.limit + 11, "max_speed": site.limit + 24},
	}
	if site.compare {
		req["compare_histogram"] = speedHistogram(rng, site.limit-2, 2500)
		req["compare_summary"] = map[string]any{"p50": site.limit - 2, "p85": site.limit + 3, "p98": site.limit + 8, "max_speed": site.limit + 20}
	}
	return req
}

// trafficCount peaks at 08:00 and 17:00 UTC and drops near zero overnight.
func trafficCount(rng *rand.Rand, ts time.Time) int {
	h := float64(ts.Hour())
	curve := 0.1 + math.Exp(-math.Pow(h-8, 2)/6) + 0.9*math.Exp(-math.Pow(h-17, 2)/8)
	return int(curve*180) + rng.IntN(15)
}

// speedHistogram samples n vehicle speeds into 5-unit buckets keyed by
// bucket start, with a handful below the 5-unit cutoff.
func speedHistogram(rng *rand.Rand, centre float64, n int) map[string]int64 {
	hist := map[string]int64{}
	for range n {
		v := max(0, centre+rng.NormFloat64()*6)
		key := math.Floor(v/5) * 5
		hist[strconv.FormatFloat(key, 'f', -1, 64)]++
	}
	return hist
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// printStats reports the numbers test assertions are usually written against.
func printStats(reports []domain.PreparedReport) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	for i := range reports {
		r := &reports[i]
		s := r.Series
		fmt.Printf("\n%s (%s)\n", r.ReportID, r.Timezone)
		fmt.Printf("  Points: %d, skipped: %d\n", s.Len(), s.Skipped)
		fmt.Printf("  Runs: %v\n", s.Runs)
		fmt.Printf("  Day boundaries: %v\n", s.DayBoundaries)
		fmt.Printf("  Masked p50: %d\n", s.MaskedCount(domain.FieldP50))
		fmt.Printf("  Bar widths: background=%s foreground=%s\n", s.BarWidths.Background, s.BarWidths.Foreground)
		fmt.Printf("  Histogram: total=%d width=%g rows=%d\n", r.Histogram.Total, r.Histogram.Width, len(r.Table))
		if n := len(r.Table); n > 0 {
			fmt.Printf("  Tail: %s (%s)\n", r.Table[n-1].Label, r.Table[n-1].PercentLabel())
		}
		if r.Comparison != nil {
			fmt.Printf("  Comparison: primary=%d secondary=%d\n", r.Comparison.PrimaryTotal, r.Comparison.SecondaryTotal)
		}
		for _, d := range r.SummaryDeltas {
			if d.Change != nil {
				fmt.Printf("  %s change: %.2f%%\n", d.Metric, *d.Change)
			}
		}
	}
}
