package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xazziri/Trivy-dashboard/pkg/connector"
	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// fakeExecutor scripts command execution and records every invocation.
// Trivy invocations write a stub report to the -o path so the scan flow
// sees the files a real scanner would produce.
type fakeExecutor struct {
	calls   [][]string
	trivyed int
}

func (f *fakeExecutor) ExecuteCommand(_ context.Context, name string, args []string,
	_ []string) (string, string, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	switch name {
	case "trivy":
		f.trivyed++
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				if err := os.WriteFile(args[i+1], []byte(`{"Results":[]}`), 0o600); err != nil {
					return "", "", err
				}
			}
		}
		return "", "", nil
	case "docker":
		// docker inspect creation timestamp
		return "2024-01-05T10:30:00.000000000Z\n", "", nil
	default:
		return "", "", nil
	}
}

func newTestExecutor(t *testing.T, fake *fakeExecutor) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	tpl := filepath.Join(dir, "html.tpl")
	require.NoError(t, os.WriteFile(tpl, []byte("{{- /* template */ -}}"), 0o600))
	logger := &types.MockLogger{}
	conn := connector.New(fake, logger, "localhost", "", 5*time.Second)
	e := NewExecutor(conn, logger, dir, tpl)
	e.now = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }
	return e, dir
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		host  string
		image string
		want  string
	}{
		{"localhost", "nginx:latest", "localhost_nginx_latest"},
		{"10.0.0.5", "registry.example.com/team/app:v3", "10.0.0.5_registry.example.com_team_app_v3"},
		{"host one", "a@b", "host_one_a_b"},
	}
	for _, tt := range tests {
		got := SafeName(tt.host, tt.image)
		assert.Equal(t, tt.want, got)
		// stable across calls
		assert.Equal(t, got, SafeName(tt.host, tt.image))
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		created string
		want    int
	}{
		{"full timestamp", "2024-01-05T10:30:00.000000000Z", 10},
		{"date only", "2024-01-15", 0},
		{"empty", "", -1},
		{"garbage", "not-a-date", -1},
		{"future date", "2024-02-01T00:00:00Z", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeDays(tt.created, now))
		})
	}
}

// TestAgeDaysZoneIndependent pins the age to the UTC date: the same
// instant expressed in different zones must land in the same age
// bucket, including right at a bucket boundary.
func TestAgeDaysZoneIndependent(t *testing.T) {
	// 2024-01-31 01:00 in UTC+13 is still 2024-01-30 in UTC.
	auckland := time.Date(2024, 1, 31, 1, 0, 0, 0, time.FixedZone("NZDT", 13*3600))
	utc := auckland.UTC()
	require.Equal(t, 30, utc.Day())

	assert.Equal(t, AgeDays("2024-01-01", utc), AgeDays("2024-01-01", auckland))
	assert.Equal(t, 29, AgeDays("2024-01-01", auckland))

	// Exactly 30 whole days keeps the image in the fresh bucket on
	// either side of UTC midnight.
	assert.Equal(t, 30, AgeDays("2024-01-01", time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 30, AgeDays("2024-01-01", time.Date(2024, 1, 31, 0, 1, 0, 0, time.UTC)))
}

func TestEnsureScannedProducesReports(t *testing.T) {
	fake := &fakeExecutor{}
	e, dir := newTestExecutor(t, fake)

	target := types.ScanTarget{
		Host:   types.Host{Address: "localhost", Kind: types.HostLocal, Reachable: true},
		Image:  types.ImageRef{Repository: "nginx", Tag: "latest"},
		Status: types.TargetActive,
	}
	reports, err := e.EnsureScanned(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "localhost_nginx_latest.json"), reports.JSONPath)
	assert.Equal(t, filepath.Join(dir, "localhost_nginx_latest.html"), reports.HTMLPath)
	assert.Equal(t, 10, reports.AgeDays)
	assert.FileExists(t, reports.JSONPath)
	assert.FileExists(t, reports.HTMLPath)
	// one structured scan plus one template render
	assert.Equal(t, 2, fake.trivyed)
}

// TestEnsureScannedIdempotent checks the scan-once invariant: a second
// call for the same (host, image) identifier within a run performs no
// further scanner invocation.
func TestEnsureScannedIdempotent(t *testing.T) {
	fake := &fakeExecutor{}
	e, _ := newTestExecutor(t, fake)

	target := types.ScanTarget{
		Host:   types.Host{Address: "localhost", Kind: types.HostLocal, Reachable: true},
		Image:  types.ImageRef{Repository: "nginx", Tag: "latest"},
		Status: types.TargetActive,
	}
	_, err := e.EnsureScanned(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, 2, fake.trivyed)

	_, err = e.EnsureScanned(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.trivyed, "second call must not invoke the scanner")
}

func TestRefreshDBOncePerHost(t *testing.T) {
	fake := &fakeExecutor{}
	e, _ := newTestExecutor(t, fake)

	host := types.Host{Address: "localhost", Kind: types.HostLocal, Reachable: true}
	e.RefreshDB(context.Background(), host)
	e.RefreshDB(context.Background(), host)

	refreshes := 0
	for _, call := range fake.calls {
		if call[0] == "trivy" && call[2] == "--download-db-only" {
			refreshes++
		}
	}
	assert.Equal(t, 1, refreshes)
}
