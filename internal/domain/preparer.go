package domain

import "time"

// PrepConfig holds the chart and table thresholds. It is read-only once a
// Preparer is built.
type PrepConfig struct {
	// DefaultTimezone is used for requests that do not name one.
	DefaultTimezone string

	// ChartLowCountThreshold masks chart points whose interval count is below it.
	ChartLowCountThreshold int
	// TableCountMissingThreshold blanks metric table cells whose count is below it.
	TableCountMissingThreshold int

	// GapMultiplier times the median spacing is the largest delta that does
	// not split a run.
	GapMultiplier float64

	BackgroundBarFraction      float64
	ForegroundBarFraction      float64
	SinglePointBackgroundWidth time.Duration
	SinglePointForegroundWidth time.Duration

	// Histogram defaults, overridable per request.
	HistogramCutoff     float64
	HistogramBucketSize float64
	HistogramMaxSpeed   float64

	// IncludeUnparsedInTotal adds the counts of unparsable histogram keys to
	// the percentage denominator.
	IncludeUnparsedInTotal bool
}

// DefaultPrepConfig returns the thresholds used when nothing is configured.
func DefaultPrepConfig() PrepConfig {
	return PrepConfig{
		DefaultTimezone:            "UTC",
		ChartLowCountThreshold:     50,
		TableCountMissingThreshold: 5,
		GapMultiplier:              2.5,
		BackgroundBarFraction:      0.95,
		ForegroundBarFraction:      0.7,
		SinglePointBackgroundWidth: 57 * time.Minute,
		SinglePointForegroundWidth: 42 * time.Minute,
		HistogramCutoff:            5,
		HistogramBucketSize:        5,
		HistogramMaxSpeed:          50,
	}
}

// LocationLoader resolves IANA zone names for day boundaries and labels.
type LocationLoader interface {
	LoadLocation(name string) (*time.Location, error)
}

// StdLocationLoader loads zones from the system tz database on every call.
type StdLocationLoader struct{}

func (StdLocationLoader) LoadLocation(name string) (*time.Location, error) {
	return time.LoadLocation(name)
}

// Preparer turns upstream rows and histograms into render-ready bundles.
// It holds only immutable configuration and is safe for concurrent use.
type Preparer struct {
	cfg       PrepConfig
	locations LocationLoader
}

// NewPreparer creates a Preparer. A nil loader falls back to StdLocationLoader.
func NewPreparer(cfg PrepConfig, locations LocationLoader) *Preparer {
	if locations == nil {
		locations = StdLocationLoader{}
	}
	return &Preparer{cfg: cfg, locations: locations}
}

// Config returns the preparer's configuration.
func (p *Preparer) Config() PrepConfig {
	return p.cfg
}
