package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

//go:embed dashboard.tmpl
var dashboardTemplate string

// DocumentName is the dashboard file name inside the output directory.
const DocumentName = "index.html"

// backLinkFragment is inserted into each rendered per-image report so
// readers can navigate back to the dashboard.
const backLinkFragment = "\n<p class=\"back-link\"><a href=\"" + DocumentName + "\">&larr; back to dashboard</a></p>"

// dashboardData is the root object handed to the template.
type dashboardData struct {
	GeneratedAt time.Time
	Hosts       []types.HostSummary
}

// Renderer writes the dashboard document and post-processes the
// per-image rendered reports.
type Renderer struct {
	logger    types.Logger
	outputDir string
	tmpl      *template.Template
}

// NewRenderer creates a Renderer for the given output directory.
func NewRenderer(logger types.Logger, outputDir string) (*Renderer, error) {
	tmpl, err := template.New("dashboard").Funcs(template.FuncMap{
		"hostColor": HostColorClass,
		"ageBucket": AgeBucket,
		"ageLabel":  ageLabel,
	}).Parse(dashboardTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}
	return &Renderer{logger: logger, outputDir: outputDir, tmpl: tmpl}, nil
}

func ageLabel(days int) string {
	if days < 0 {
		return "unknown"
	}
	if days == 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}

// Render composes the dashboard from the host summaries, in order.
// Hosts without a single scanned image are omitted entirely. It
// returns the path of the written document.
func (r *Renderer) Render(summaries []types.HostSummary, generatedAt time.Time) (string, error) {
	data := dashboardData{GeneratedAt: generatedAt}
	for _, s := range summaries {
		if s.TotalImages > 0 {
			data.Hosts = append(data.Hosts, s)
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render dashboard: %w", err)
	}

	path := filepath.Join(r.outputDir, DocumentName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write dashboard document: %w", err)
	}
	return path, nil
}

// InjectBackLinks inserts the dashboard navigation fragment into every
// rendered report referenced by the summaries. Reports missing from
// disk are skipped silently.
func (r *Renderer) InjectBackLinks(summaries []types.HostSummary) {
	for _, s := range summaries {
		for _, row := range s.Rows {
			path := filepath.Join(r.outputDir, row.ReportLink)
			if err := InjectBackLink(path); err != nil {
				r.logger.Debug("skipping back-link injection", "path", path, "error", err)
			}
		}
	}
}

// InjectBackLink inserts the navigation fragment immediately after the
// opening body tag of the rendered report at path. A missing file or a
// report without a body tag is left untouched.
func InjectBackLink(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rendered report: %w", err)
	}
	idx := bytes.Index(content, []byte("<body>"))
	if idx < 0 {
		return fmt.Errorf("no body tag in %s", path)
	}
	insertAt := idx + len("<body>")
	patched := make([]byte, 0, len(content)+len(backLinkFragment))
	patched = append(patched, content[:insertAt]...)
	patched = append(patched, []byte(backLinkFragment)...)
	patched = append(patched, content[insertAt:]...)
	if err := os.WriteFile(path, patched, 0o644); err != nil {
		return fmt.Errorf("failed to write patched report: %w", err)
	}
	return nil
}
