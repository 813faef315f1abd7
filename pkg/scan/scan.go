package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Xazziri/Trivy-dashboard/pkg/connector"
	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// trivyBase holds the flags shared by every per-image invocation. The
// database is refreshed separately, once per host, before any image on
// that host is scanned.
var trivyBase = []string{"image", "--ignore-unfixed", "--scanners", "vuln", "--skip-db-update"}

// remoteTmpDir is where working files live on remote hosts during a
// scan. Files placed there are removed after use.
const remoteTmpDir = "/tmp"

// Reports names the report files produced for one scanned target.
type Reports struct {
	// JSONPath is the structured report used for severity aggregation.
	JSONPath string
	// HTMLPath is the rendered report linked from the dashboard.
	HTMLPath string
	// AgeDays is the whole-day image age, -1 when unknown.
	AgeDays int
}

// Executor invokes trivy on scan targets through the host connector
// and persists one structured and one rendered report per
// (host, image) identifier.
type Executor struct {
	conn         *connector.Connector
	logger       types.Logger
	outputDir    string
	templatePath string
	refreshed    map[string]struct{}
	now          func() time.Time
}

// NewExecutor creates an Executor writing reports into outputDir and
// rendering with the trivy template at templatePath.
func NewExecutor(conn *connector.Connector, logger types.Logger,
	outputDir, templatePath string) *Executor {
	return &Executor{
		conn:         conn,
		logger:       logger,
		outputDir:    outputDir,
		templatePath: templatePath,
		refreshed:    make(map[string]struct{}),
		now:          time.Now,
	}
}

// SafeName derives the file-system-safe identifier for a (host, image)
// pair. Path-unsafe characters are replaced with underscores; the same
// pair always yields the same identifier.
func SafeName(hostAddress, image string) string {
	return transliterate(hostAddress) + "_" + transliterate(image)
}

func transliterate(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

// RefreshDB downloads the vulnerability database on the target's host.
// It runs at most once per host per run and is best-effort: a failure
// is logged and scanning proceeds with whatever database is present.
func (e *Executor) RefreshDB(ctx context.Context, host types.Host) {
	if _, ok := e.refreshed[host.Address]; ok {
		return
	}
	e.refreshed[host.Address] = struct{}{}
	if _, err := e.conn.Run(ctx, host, "trivy", "image", "--download-db-only"); err != nil {
		e.logger.Warn("vulnerability database refresh failed", "host", host.Address, "error", err)
	}
}

// ResetRefresh forgets which hosts already refreshed the vulnerability
// database, so the next scan on each host refreshes again. Called at
// the start of every run when one process runs repeatedly.
func (e *Executor) ResetRefresh() {
	e.refreshed = make(map[string]struct{})
}

// EnsureScanned produces the structured and rendered reports for the
// target, scanning at most once per run: when the structured report
// file for the target's identifier already exists, the invocation is
// skipped entirely. Inactive targets never benefit from that skip
// across runs because their structured report is deleted right after
// aggregation.
func (e *Executor) EnsureScanned(ctx context.Context, target types.ScanTarget) (Reports, error) {
	id := SafeName(target.Host.Address, target.Image.String())
	reports := Reports{
		JSONPath: filepath.Join(e.outputDir, id+".json"),
		HTMLPath: filepath.Join(e.outputDir, id+".html"),
		AgeDays:  e.imageAge(ctx, target.Host, target.Image),
	}

	if _, err := os.Stat(reports.JSONPath); err == nil {
		e.logger.Debug("structured report already present, skipping scan",
			"host", target.Host.Address, "image", target.Image.String())
		return reports, nil
	}

	var err error
	if target.Host.Kind == types.HostLocal {
		err = e.scanLocal(ctx, target, reports)
	} else {
		err = e.scanRemote(ctx, target, id, reports)
	}
	if err != nil {
		return Reports{}, err
	}
	return reports, nil
}

func (e *Executor) scanLocal(ctx context.Context, target types.ScanTarget, reports Reports) error {
	image := target.Image.String()

	args := append(append([]string{}, trivyBase...),
		"-f", "json", "-o", reports.JSONPath, image)
	if _, err := e.conn.Run(ctx, target.Host, append([]string{"trivy"}, args...)...); err != nil {
		return fmt.Errorf("failed to scan image %s: %w", image, err)
	}

	args = append(append([]string{}, trivyBase...),
		"-f", "template", "--template", "@"+e.templatePath, "-o", reports.HTMLPath, image)
	if _, err := e.conn.Run(ctx, target.Host, append([]string{"trivy"}, args...)...); err != nil {
		return fmt.Errorf("failed to render report for image %s: %w", image, err)
	}
	return nil
}

// scanRemote runs trivy on the remote host against files under the
// remote temp dir, then copies the reports back. The remote template
// and report files are removed even when a step fails.
func (e *Executor) scanRemote(ctx context.Context, target types.ScanTarget, id string, reports Reports) error {
	image := target.Image.String()
	remoteJSON := remoteTmpDir + "/" + id + ".json"
	remoteHTML := remoteTmpDir + "/" + id + ".html"
	remoteTpl := remoteTmpDir + "/" + id + ".tpl"

	if err := e.conn.CopyTo(ctx, target.Host, e.templatePath, remoteTpl); err != nil {
		return fmt.Errorf("failed to stage template on %s: %w", target.Host.Address, err)
	}
	defer e.conn.Remove(ctx, target.Host, remoteTpl)
	defer e.conn.Remove(ctx, target.Host, remoteJSON)
	defer e.conn.Remove(ctx, target.Host, remoteHTML)

	args := append(append([]string{}, trivyBase...),
		"-f", "json", "-o", remoteJSON, image)
	if _, err := e.conn.Run(ctx, target.Host, append([]string{"trivy"}, args...)...); err != nil {
		return fmt.Errorf("failed to scan image %s on %s: %w", image, target.Host.Address, err)
	}

	args = append(append([]string{}, trivyBase...),
		"-f", "template", "--template", "@"+remoteTpl, "-o", remoteHTML, image)
	if _, err := e.conn.Run(ctx, target.Host, append([]string{"trivy"}, args...)...); err != nil {
		return fmt.Errorf("failed to render report for image %s on %s: %w", image, target.Host.Address, err)
	}

	if err := e.conn.CopyFrom(ctx, target.Host, remoteJSON, reports.JSONPath); err != nil {
		return fmt.Errorf("failed to fetch structured report from %s: %w", target.Host.Address, err)
	}
	if err := e.conn.CopyFrom(ctx, target.Host, remoteHTML, reports.HTMLPath); err != nil {
		return fmt.Errorf("failed to fetch rendered report from %s: %w", target.Host.Address, err)
	}
	return nil
}

// imageAge inspects the image's creation timestamp on its host and
// returns the whole-day age, or -1 when the timestamp is missing or
// unparsable.
func (e *Executor) imageAge(ctx context.Context, host types.Host, image types.ImageRef) int {
	out, err := e.conn.Run(ctx, host, "docker", "inspect", "-f", "{{.Created}}", image.String())
	if err != nil {
		e.logger.Warn("failed to inspect image creation time",
			"host", host.Address, "image", image.String(), "error", err)
		return -1
	}
	return AgeDays(out, e.now())
}

// AgeDays computes the calendar-day difference between the date portion
// of an ISO-8601-like creation timestamp and now's UTC date. Both sides
// are UTC dates, so the result does not depend on the time of day or on
// the zone now carries. Unparsable input yields -1, which renders as
// "unknown" rather than a negative age.
func AgeDays(created string, now time.Time) int {
	created = strings.TrimSpace(created)
	datePart, _, found := strings.Cut(created, "T")
	if !found {
		datePart = created
	}
	t, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return -1
	}
	year, month, day := now.UTC().Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(t).Hours() / 24)
	if days < 0 {
		return -1
	}
	return days
}
