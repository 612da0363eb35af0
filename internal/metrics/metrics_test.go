package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheusMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()
	require.NotNil(t, pm)
	require.NotNil(t, pm.Registry())

	families, err := pm.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families, "registry should carry the runtime collectors")
}

func TestSessionMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementSessionsTotal("discovery", "completed")
	pm.IncrementSessionsTotal("discovery", "completed")
	pm.IncrementSessionsTotal("local", "failed")
	pm.RecordSessionDuration("discovery", 12*time.Second)
	pm.IncrementHostsScanned("discovery", "up")
	pm.IncrementHostsScanned("discovery", "down")

	assert.Equal(t, float64(2),
		testutil.ToFloat64(pm.sessionsTotal.WithLabelValues("discovery", "completed")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(pm.sessionsTotal.WithLabelValues("local", "failed")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(pm.hostsScanned.WithLabelValues("discovery", "up")))
}

func TestProbeMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.ProbeStarted()
	pm.ProbeStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(pm.activeProbes))

	pm.ProbeFinished()
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.activeProbes))

	pm.IncrementProbeRetries()
	pm.IncrementProbeRetries()
	pm.IncrementProbeRetries()
	assert.Equal(t, float64(3), testutil.ToFloat64(pm.probeRetries))

	pm.RecordProbeDuration("local", 500*time.Millisecond)
}

func TestVendorMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementVendorLookups("local")
	pm.IncrementVendorLookups("remote")
	pm.IncrementVendorLookups("remote")

	assert.Equal(t, float64(1), testutil.ToFloat64(pm.vendorLookups.WithLabelValues("local")))
	assert.Equal(t, float64(2), testutil.ToFloat64(pm.vendorLookups.WithLabelValues("remote")))
}

func TestGetGlobalMetricsSingleton(t *testing.T) {
	first := GetGlobalMetrics()
	second := GetGlobalMetrics()
	assert.Same(t, first, second)
}
