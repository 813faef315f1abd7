package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// Severity values counted for the safe/unsafe classification.
const (
	severityCritical = "CRITICAL"
	severityHigh     = "HIGH"
)

// CountSeverities decodes the structured report at jsonPath and counts
// its critical and high findings. Result blocks without a vulnerability
// list contribute zero.
func CountSeverities(jsonPath string) (critical, high int, err error) {
	file, err := os.Open(jsonPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open structured report: %w", err)
	}
	defer file.Close()

	var report types.TrivyReport
	if err := json.NewDecoder(file).Decode(&report); err != nil {
		return 0, 0, fmt.Errorf("failed to decode structured report %s: %w", jsonPath, err)
	}
	for _, result := range report.Results {
		for _, vuln := range result.Vulnerabilities {
			switch vuln.Severity {
			case severityCritical:
				critical++
			case severityHigh:
				high++
			}
		}
	}
	return critical, high, nil
}

// BuildRow derives the dashboard row for one scan result. The report
// link is the rendered report's file name, relative to the dashboard
// document which lives in the same directory.
func BuildRow(result types.ScanResult) types.Row {
	return types.Row{
		Status:        result.Target.Status,
		ContainerName: result.Target.ContainerName,
		Image:         result.Target.Image.String(),
		AgeDays:       result.AgeDays,
		CriticalCount: result.CriticalCount,
		HighCount:     result.HighCount,
		ReportLink:    filepath.Base(result.HTMLPath),
	}
}

// AgeBucket maps a whole-day image age onto a display bucket. The
// boundaries are lower-inclusive: exactly 30 is fresh, exactly 90 is
// medium, exactly 180 is old. -1 means the age is unknown.
func AgeBucket(days int) string {
	switch {
	case days < 0:
		return "unknown"
	case days <= 30:
		return "fresh"
	case days <= 90:
		return "medium"
	case days <= 180:
		return "old"
	default:
		return "ancient"
	}
}

// HostColorClass deterministically assigns one of paletteSize color
// classes to a host address by summing its byte values. The same
// address maps to the same class within and across runs.
func HostColorClass(address string) int {
	sum := 0
	for _, b := range []byte(address) {
		sum += int(b)
	}
	return sum % paletteSize
}

// paletteSize is the number of host label colors in the stylesheet.
const paletteSize = 10
