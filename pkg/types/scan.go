package types

// ImageRef is a normalized image reference. References without a tag
// are normalized to the "latest" tag before an ImageRef is built, so
// Tag is never empty.
type ImageRef struct {
	Repository string
	Tag        string
}

// String returns the canonical "repository:tag" form.
func (r ImageRef) String() string {
	return r.Repository + ":" + r.Tag
}

// TargetStatus classifies a scan target by container usage.
type TargetStatus int

const (
	// TargetActive marks an image backing a currently running container.
	TargetActive TargetStatus = iota
	// TargetInactive marks an image present on the host but not backing
	// any running container.
	TargetInactive
)

// String returns the lowercase name of the target status.
func (s TargetStatus) String() string {
	if s == TargetActive {
		return "active"
	}
	return "inactive"
}

// ScanTarget is one (host, image) unit of scan work. Within a run each
// (host, image) pair is scanned at most once regardless of how many
// containers reference the image.
type ScanTarget struct {
	Host Host
	// Image is the normalized image reference.
	Image ImageRef
	// ContainerName is the referencing container for active targets and
	// empty for inactive ones.
	ContainerName string
	Status        TargetStatus
}

// ScanResult holds the aggregated findings for one scanned target.
// It is immutable once created.
type ScanResult struct {
	Target        ScanTarget
	CriticalCount int
	HighCount     int
	// AgeDays is the whole-day age of the image, or -1 when the creation
	// timestamp is missing or unparsable.
	AgeDays int
	// JSONPath is the structured report file, empty once it has been
	// deleted for inactive targets.
	JSONPath string
	// HTMLPath is the rendered report file.
	HTMLPath string
}

// Safe reports whether the image carries no critical and no high findings.
func (r ScanResult) Safe() bool {
	return r.CriticalCount == 0 && r.HighCount == 0
}

// Row is the presentation data for one dashboard table row.
type Row struct {
	Status        TargetStatus
	ContainerName string
	Image         string
	AgeDays       int
	CriticalCount int
	HighCount     int
	// ReportLink is the rendered report file name relative to the
	// dashboard document.
	ReportLink string
}

// HostSummary accumulates the results for one host. It is built
// incrementally while the host's targets are scanned and finalized once
// both enumeration phases complete.
type HostSummary struct {
	Host         Host
	TotalImages  int
	SafeImages   int
	UnsafeImages int
	Rows         []Row
}

// Add folds one scan result into the summary, keeping
// TotalImages = SafeImages + UnsafeImages.
func (s *HostSummary) Add(result ScanResult, row Row) {
	s.TotalImages++
	if result.Safe() {
		s.SafeImages++
	} else {
		s.UnsafeImages++
	}
	s.Rows = append(s.Rows, row)
}
