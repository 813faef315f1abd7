package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xazziri/Trivy-dashboard/pkg/connector"
	"github.com/Xazziri/Trivy-dashboard/pkg/enumerate"
	"github.com/Xazziri/Trivy-dashboard/pkg/metrics"
	"github.com/Xazziri/Trivy-dashboard/pkg/report"
	"github.com/Xazziri/Trivy-dashboard/pkg/runner"
	"github.com/Xazziri/Trivy-dashboard/pkg/scan"
	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// loopExecutor scripts a one-host fleet with a single running image so
// scheduled runs complete without any real docker or trivy.
type loopExecutor struct{}

func (f *loopExecutor) ExecuteCommand(_ context.Context, name string, args []string,
	_ []string) (string, string, error) {
	switch {
	case name == "docker" && args[0] == "ps":
		return "nginx:latest|web\n", "", nil
	case name == "docker" && args[0] == "images":
		return "nginx:latest\n", "", nil
	case name == "docker" && args[0] == "inspect":
		return time.Now().UTC().Add(-10 * 24 * time.Hour).Format(time.RFC3339Nano), "", nil
	case name == "trivy":
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				content := []byte(`{"Results":[]}`)
				if strings.HasSuffix(args[i+1], ".html") {
					content = []byte("<html><body></body></html>")
				}
				if err := os.WriteFile(args[i+1], content, 0o600); err != nil {
					return "", "", err
				}
			}
		}
		return "", "", nil
	}
	return "", "", nil
}

// TestScanLoopRecordsMetrics checks that scheduled scans under serve
// feed the registry the /metrics endpoint serves: after at least one
// iteration the run series carry the run's values, in the same process
// that exposes them.
func TestScanLoopRecordsMetrics(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "web")
	logger := &types.MockLogger{}
	conn := connector.New(&loopExecutor{}, logger, "localhost", "", time.Second)
	enum := enumerate.New(conn, logger)
	scanner := scan.NewExecutor(conn, logger, outputDir, filepath.Join(filepath.Dir(outputDir), "html.tpl"))
	renderer, err := report.NewRenderer(logger, outputDir)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m, err := metrics.NewWithRegistry(reg)
	require.NoError(t, err)
	run := runner.New(conn, enum, scanner, renderer, logger, m, outputDir)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	scanLoop(ctx, logger, run, []string{"localhost"}, 20*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	var runs, scanned float64
	for _, mf := range families {
		switch mf.GetName() {
		case "trivy_dashboard_runs_total":
			runs = mf.GetMetric()[0].GetCounter().GetValue()
		case "trivy_dashboard_images_scanned":
			scanned = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.GreaterOrEqual(t, runs, 1.0)
	assert.Equal(t, 1.0, scanned)

	assert.FileExists(t, filepath.Join(outputDir, report.DocumentName))
}

// TestServeIntervalFlagDefault pins the serve schedule default so a
// plain `serve` exposes live metrics rather than a dead registry.
func TestServeIntervalFlagDefault(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	interval, err := cmd.Flags().GetDuration("interval")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, interval)
}
