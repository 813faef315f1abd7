package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewWithRegistry(registry)
	require.NoError(t, err)

	m.RegisterRun(RunMetric{
		HostsScanned:  2,
		HostsSkipped:  1,
		ImagesScanned: 7,
		ImagesUnsafe:  3,
		ScanFailures:  1,
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.hostsScanned))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.imagesScanned))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.imagesUnsafe))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hostsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scanFailures))

	// gauges reflect the last run, counters accumulate
	m.RegisterRun(RunMetric{HostsScanned: 1, ImagesScanned: 2})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hostsScanned))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.imagesScanned))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hostsSkipped))
}

func TestNewWithRegistryDuplicate(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewWithRegistry(registry)
	require.NoError(t, err)

	_, err = NewWithRegistry(registry)
	assert.Error(t, err)
}
