package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricTable(t *testing.T) {
	p := testPreparer(func(c *PrepConfig) { c.TableCountMissingThreshold = 5 })
	rows := []MetricRow{
		{"timestamp": "2024-06-01T08:00:00Z", "p50": 28.46, "p85": 34.0, "p98": 41.24, "max_speed": 52.0, "count": 120},
		{"timestamp": "2024-06-01T09:00:00Z", "p50": 27.0, "p85": 33.0, "p98": 40.0, "max_speed": 47.0, "count": 3},
		{"timestamp": "2024-06-01T10:00:00Z", "p50": "n/a", "p85": 35.0, "count": 80},
		{"timestamp": "garbage", "p50": 30.0, "count": 80},
	}

	table := p.MetricTable(rows, time.UTC)

	require.Len(t, table, 3)

	assert.Equal(t, MetricTableRow{
		Period: "2024-06-01 08:00", Count: 120,
		P50: "28.5", P85: "34.0", P98: "41.2", MaxSpeed: "52.0",
	}, table[0])

	assert.Equal(t, MetricTableRow{
		Period: "2024-06-01 09:00", Count: 3,
		P50: MissingCell, P85: MissingCell, P98: MissingCell, MaxSpeed: MissingCell,
	}, table[1])

	assert.Equal(t, MissingCell, table[2].P50)
	assert.Equal(t, "35.0", table[2].P85)
	assert.Equal(t, MissingCell, table[2].P98)
}

func TestMetricTable_Timezone(t *testing.T) {
	p := testPreparer(nil)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	table := p.MetricTable([]MetricRow{{"timestamp": "2024-06-01T20:30:00Z", "count": 10}}, tokyo)

	require.Len(t, table, 1)
	assert.Equal(t, "2024-06-02 05:30", table[0].Period)
}

func TestMetricTable_Empty(t *testing.T) {
	p := testPreparer(nil)

	table := p.MetricTable(nil, nil)

	assert.NotNil(t, table)
	assert.Empty(t, table)
}
