package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "speed-report-requests", cfg.KafkaSourceTopic)
	assert.Equal(t, "prepared-speed-reports", cfg.KafkaSinkTopic)
	assert.Equal(t, "speed-report-prep", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, "UTC", cfg.ReportTimezone)
	assert.Equal(t, 50, cfg.ChartLowCountThreshold)
	assert.Equal(t, 5, cfg.TableCountMissingThreshold)
	assert.Equal(t, 2.5, cfg.GapThresholdMultiplier)
	assert.Equal(t, 5.0, cfg.HistogramCutoff)
	assert.Equal(t, 5.0, cfg.HistogramBucketSize)
	assert.Equal(t, 50.0, cfg.HistogramMaxSpeed)
	assert.False(t, cfg.HistogramIncludeUnparsed)
	assert.Equal(t, 64, cfg.TZCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("REPORT_TIMEZONE", "America/Denver")
	t.Setenv("CHART_LOW_COUNT_THRESHOLD", "20")
	t.Setenv("TABLE_COUNT_MISSING_THRESHOLD", "0")
	t.Setenv("GAP_THRESHOLD_MULTIPLIER", "3")
	t.Setenv("HISTOGRAM_CUTOFF", "10")
	t.Setenv("HISTOGRAM_BUCKET_SIZE", "2.5")
	t.Setenv("HISTOGRAM_MAX_SPEED", "70")
	t.Setenv("HISTOGRAM_INCLUDE_UNPARSED", "true")
	t.Setenv("TZ_CACHE_SIZE", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "America/Denver", cfg.ReportTimezone)
	assert.Equal(t, 20, cfg.ChartLowCountThreshold)
	assert.Equal(t, 0, cfg.TableCountMissingThreshold)
	assert.Equal(t, 3.0, cfg.GapThresholdMultiplier)
	assert.Equal(t, 10.0, cfg.HistogramCutoff)
	assert.Equal(t, 2.5, cfg.HistogramBucketSize)
	assert.Equal(t, 70.0, cfg.HistogramMaxSpeed)
	assert.True(t, cfg.HistogramIncludeUnparsed)
	assert.Equal(t, 8, cfg.TZCacheSize)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidPrepSettings(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CHART_LOW_COUNT_THRESHOLD", "-1"},
		{"CHART_LOW_COUNT_THRESHOLD", "many"},
		{"TABLE_COUNT_MISSING_THRESHOLD", "2.5"},
		{"GAP_THRESHOLD_MULTIPLIER", "0"},
		{"GAP_THRESHOLD_MULTIPLIER", "NaN"},
		{"HISTOGRAM_CUTOFF", "Inf"},
		{"HISTOGRAM_BUCKET_SIZE", "-5"},
		{"HISTOGRAM_MAX_SPEED", "fast"},
		{"HISTOGRAM_INCLUDE_UNPARSED", "maybe"},
		{"TZ_CACHE_SIZE", "0"},
		{"REPORT_TIMEZONE", "Mars/Olympus_Mons"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestConfig_PrepConfig(t *testing.T) {
	t.Setenv("REPORT_TIMEZONE", "Europe/Berlin")
	t.Setenv("CHART_LOW_COUNT_THRESHOLD", "25")
	t.Setenv("HISTOGRAM_INCLUDE_UNPARSED", "1")

	cfg, err := Load()
	require.NoError(t, err)

	pc := cfg.PrepConfig()
	assert.Equal(t, "Europe/Berlin", pc.DefaultTimezone)
	assert.Equal(t, 25, pc.ChartLowCountThreshold)
	assert.Equal(t, 5, pc.TableCountMissingThreshold)
	assert.True(t, pc.IncludeUnparsedInTotal)
	assert.Equal(t, 0.95, pc.BackgroundBarFraction)
	assert.Equal(t, 57*time.Minute, pc.SinglePointBackgroundWidth)
}
