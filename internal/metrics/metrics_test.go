package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCount(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.PingRecorded("singles")
	m.PingRecorded("singles")
	m.PingRecorded("ranked")
	m.PingsCleared(4)
	m.TierChanged("up")
	m.StorageError("report_match")

	count, err := testutil.GatherAndCount(registry)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	pm, ok := m.(prometheusMetrics)
	require.True(t, ok)
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.pingsRecorded.WithLabelValues("singles")))
	assert.Equal(t, 4.0, testutil.ToFloat64(pm.pingsCleared))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.tierChanges.WithLabelValues("up")))
}

func TestMetricsRegisterOncePerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
