package types

// VulnerabilityInfo represents information about a vulnerability found in a scanned image.
type VulnerabilityInfo struct {
	VulnerabilityID  string `json:"VulnerabilityID"`
	PkgName          string `json:"PkgName"`
	InstalledVersion string `json:"InstalledVersion"`
	FixedVersion     string `json:"FixedVersion"`
	Severity         string `json:"Severity"`
	Description      string `json:"Description"`
}

// TrivyResult is one result block of a trivy report. Targets without
// findings omit the vulnerability list entirely.
type TrivyResult struct {
	Target          string              `json:"Target"`
	Vulnerabilities []VulnerabilityInfo `json:"Vulnerabilities"`
}

// TrivyReport represents the structured (JSON) report trivy writes for
// one image.
type TrivyReport struct {
	ArtifactName string        `json:"ArtifactName"`
	Results      []TrivyResult `json:"Results"`
}
