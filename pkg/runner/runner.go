package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Xazziri/Trivy-dashboard/pkg/connector"
	"github.com/Xazziri/Trivy-dashboard/pkg/enumerate"
	"github.com/Xazziri/Trivy-dashboard/pkg/metrics"
	"github.com/Xazziri/Trivy-dashboard/pkg/report"
	"github.com/Xazziri/Trivy-dashboard/pkg/scan"
	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// Runner drives one full dashboard run: for each configured host it
// classifies, enumerates active then inactive targets, scans each
// target once, aggregates, and finally emits the dashboard document.
// Execution is strictly sequential.
type Runner struct {
	conn      *connector.Connector
	enum      *enumerate.Enumerator
	scanner   *scan.Executor
	renderer  *report.Renderer
	logger    types.Logger
	metrics   *metrics.Metrics
	outputDir string
	now       func() time.Time
}

// New creates a Runner. The metrics handler may be nil when no metrics
// endpoint is wanted.
func New(conn *connector.Connector, enum *enumerate.Enumerator, scanner *scan.Executor,
	renderer *report.Renderer, logger types.Logger, m *metrics.Metrics, outputDir string) *Runner {
	return &Runner{
		conn:      conn,
		enum:      enum,
		scanner:   scanner,
		renderer:  renderer,
		logger:    logger,
		metrics:   m,
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Run executes one full scan over the given host addresses and returns
// the path of the written dashboard document.
func (r *Runner) Run(ctx context.Context, addresses []string) (string, error) {
	if err := r.purgeOutputDir(); err != nil {
		return "", err
	}
	r.scanner.ResetRefresh()

	var summaries []types.HostSummary
	var run metrics.RunMetric
	for _, address := range addresses {
		host := r.conn.Classify(ctx, address)
		if !host.Reachable {
			r.logger.Warn("host unreachable, skipping", "host", address)
			run.HostsSkipped++
			continue
		}
		summary := r.processHost(ctx, host, &run)
		summaries = append(summaries, summary)
		if summary.TotalImages > 0 {
			run.HostsScanned++
		}
		run.ImagesScanned += summary.TotalImages
		run.ImagesUnsafe += summary.UnsafeImages
	}

	path, err := r.renderer.Render(summaries, r.now())
	if err != nil {
		return "", err
	}
	r.renderer.InjectBackLinks(summaries)

	if r.metrics != nil {
		r.metrics.RegisterRun(run)
	}
	r.logger.Info("dashboard written", "path", path)
	return path, nil
}

// processHost scans a single reachable host: vulnerability database
// refresh first, then active targets, then the remaining images as
// inactive targets. Per-target failures are logged and the host
// continues with its next target.
func (r *Runner) processHost(ctx context.Context, host types.Host, run *metrics.RunMetric) types.HostSummary {
	summary := types.HostSummary{Host: host}

	r.scanner.RefreshDB(ctx, host)

	active, err := r.enum.ListActiveTargets(ctx, host)
	if err != nil {
		r.logger.Error("failed to enumerate running containers", "host", host.Address, "error", err)
		return summary
	}
	for _, target := range active {
		r.processTarget(ctx, target, &summary, run)
	}

	inactive, err := r.enum.ListInactiveTargets(ctx, host, active)
	if err != nil {
		r.logger.Error("failed to enumerate images", "host", host.Address, "error", err)
		return summary
	}
	for _, target := range inactive {
		r.processTarget(ctx, target, &summary, run)
	}
	return summary
}

// processTarget scans one target and folds the aggregated result into
// the summary. Inactive targets lose their structured report right
// after aggregation; only the rendered report is kept for the
// dashboard link.
func (r *Runner) processTarget(ctx context.Context, target types.ScanTarget,
	summary *types.HostSummary, run *metrics.RunMetric) {
	reports, err := r.scanner.EnsureScanned(ctx, target)
	if err != nil {
		r.logger.Error("scan failed", "host", target.Host.Address,
			"image", target.Image.String(), "error", err)
		run.ScanFailures++
		return
	}

	critical, high, err := report.CountSeverities(reports.JSONPath)
	if err != nil {
		r.logger.Error("failed to aggregate scan result", "host", target.Host.Address,
			"image", target.Image.String(), "error", err)
		run.ScanFailures++
		return
	}

	result := types.ScanResult{
		Target:        target,
		CriticalCount: critical,
		HighCount:     high,
		AgeDays:       reports.AgeDays,
		JSONPath:      reports.JSONPath,
		HTMLPath:      reports.HTMLPath,
	}
	if target.Status == types.TargetInactive {
		if err := os.Remove(reports.JSONPath); err != nil {
			r.logger.Warn("failed to remove structured report", "path", reports.JSONPath, "error", err)
		}
		result.JSONPath = ""
	}

	summary.Add(result, report.BuildRow(result))
}

// purgeOutputDir deletes the generated report and structured-data files
// from the previous run so accumulation starts from a clean slate.
// Other files in the directory are left alone.
func (r *Runner) purgeOutputDir() error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, pattern := range []string{"*.json", "*.html"} {
		matches, err := filepath.Glob(filepath.Join(r.outputDir, pattern))
		if err != nil {
			return fmt.Errorf("failed to list output directory: %w", err)
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove stale file %s: %w", path, err)
			}
		}
	}
	return nil
}
