package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/speed-report-prep/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Report preparation thresholds.
	ReportTimezone             string
	ChartLowCountThreshold     int
	TableCountMissingThreshold int
	GapThresholdMultiplier     float64
	HistogramCutoff            float64
	HistogramBucketSize        float64
	HistogramMaxSpeed          float64
	HistogramIncludeUnparsed   bool

	// TZCacheSize bounds the number of resolved time zones kept in memory.
	TZCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	defaults := domain.DefaultPrepConfig()
	p := &parser{}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "speed-report-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "prepared-speed-reports"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "speed-report-prep"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		ReportTimezone:             sharedcfg.EnvOrDefault("REPORT_TIMEZONE", defaults.DefaultTimezone),
		ChartLowCountThreshold:     p.nonNegativeInt("CHART_LOW_COUNT_THRESHOLD", defaults.ChartLowCountThreshold),
		TableCountMissingThreshold: p.nonNegativeInt("TABLE_COUNT_MISSING_THRESHOLD", defaults.TableCountMissingThreshold),
		GapThresholdMultiplier:     p.positiveFloat("GAP_THRESHOLD_MULTIPLIER", defaults.GapMultiplier),
		HistogramCutoff:            p.float("HISTOGRAM_CUTOFF", defaults.HistogramCutoff),
		HistogramBucketSize:        p.positiveFloat("HISTOGRAM_BUCKET_SIZE", defaults.HistogramBucketSize),
		HistogramMaxSpeed:          p.positiveFloat("HISTOGRAM_MAX_SPEED", defaults.HistogramMaxSpeed),
		HistogramIncludeUnparsed:   p.bool("HISTOGRAM_INCLUDE_UNPARSED", false),
		TZCacheSize:                p.positiveInt("TZ_CACHE_SIZE", 64),
	}
	if p.err != nil {
		return nil, p.err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if _, err := time.LoadLocation(cfg.ReportTimezone); err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}

	return cfg, nil
}

// PrepConfig returns the domain thresholds, keeping the bar geometry defaults.
func (c *Config) PrepConfig() domain.PrepConfig {
	pc := domain.DefaultPrepConfig()
	pc.DefaultTimezone = c.ReportTimezone
	pc.ChartLowCountThreshold = c.ChartLowCountThreshold
	pc.TableCountMissingThreshold = c.TableCountMissingThreshold
	pc.GapMultiplier = c.GapThresholdMultiplier
	pc.HistogramCutoff = c.HistogramCutoff
	pc.HistogramBucketSize = c.HistogramBucketSize
	pc.HistogramMaxSpeed = c.HistogramMaxSpeed
	pc.IncludeUnparsedInTotal = c.HistogramIncludeUnparsed
	return pc
}

// parser reads typed variables and keeps the first failure.
type parser struct {
	err error
}

func (p *parser) fail(key string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s", key)
	}
}

func (p *parser) nonNegativeInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		p.fail(key)
		return def
	}
	return n
}

func (p *parser) positiveInt(key string, def int) int {
	n := p.nonNegativeInt(key, def)
	if n == 0 {
		p.fail(key)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(key)
		return def
	}
	return f
}

func (p *parser) positiveFloat(key string, def float64) float64 {
	f := p.float(key, def)
	if f <= 0 {
		p.fail(key)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key)
		return def
	}
	return b
}
