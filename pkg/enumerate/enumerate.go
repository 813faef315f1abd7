package enumerate

import (
	"context"
	"fmt"
	"strings"

	"github.com/distribution/reference"

	"github.com/Xazziri/Trivy-dashboard/pkg/connector"
	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// Docker CLI format strings used for enumeration. The pipe separator
// never appears in image references or container names.
const (
	psFormat     = "{{.Image}}|{{.Names}}"
	imagesFormat = "{{.Repository}}:{{.Tag}}"
)

// Enumerator lists scan targets for a host through the connector.
type Enumerator struct {
	conn   *connector.Connector
	logger types.Logger
}

// New creates an Enumerator.
func New(conn *connector.Connector, logger types.Logger) *Enumerator {
	return &Enumerator{conn: conn, logger: logger}
}

// ParseImageRef normalizes an image reference string into an ImageRef.
// References without a tag get the "latest" tag; everything else is
// preserved in its familiar short form.
func ParseImageRef(s string) (types.ImageRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.ImageRef{}, fmt.Errorf("empty image reference")
	}
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return types.ImageRef{}, fmt.Errorf("invalid image reference %q: %w", s, err)
	}
	named = reference.TagNameOnly(named)
	ref := types.ImageRef{Repository: reference.FamiliarName(named), Tag: "latest"}
	if tagged, ok := named.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	return ref, nil
}

// isPlaceholderImage reports whether the docker CLI printed a
// placeholder instead of a usable reference.
func isPlaceholderImage(image string) bool {
	if image == "" {
		return true
	}
	lower := strings.ToLower(image)
	return strings.Contains(lower, "<none>") || strings.Contains(lower, "<missing>")
}

// ListActiveTargets enumerates the images backing currently running
// containers on the host, paired with their container names. Exact
// duplicate (image, name) pairs are dropped; malformed lines are
// rejected with a logged error rather than mis-split.
func (e *Enumerator) ListActiveTargets(ctx context.Context, host types.Host) ([]types.ScanTarget, error) {
	out, err := e.conn.Run(ctx, host, "docker", "ps", "--format", psFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to list running containers on %s: %w", host.Address, err)
	}

	var targets []types.ScanTarget
	seen := make(map[string]struct{})
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		image, name, ok := strings.Cut(line, "|")
		if !ok || strings.Contains(name, "|") {
			e.logger.Error("malformed container listing line", "host", host.Address, "line", line)
			continue
		}
		if isPlaceholderImage(strings.TrimSpace(image)) {
			continue
		}
		ref, err := ParseImageRef(image)
		if err != nil {
			e.logger.Error("skipping container with unparsable image", "host", host.Address, "error", err)
			continue
		}
		name = strings.TrimSpace(name)
		key := ref.String() + "|" + name
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		targets = append(targets, types.ScanTarget{
			Host:          host,
			Image:         ref,
			ContainerName: name,
			Status:        types.TargetActive,
		})
	}
	return targets, nil
}

// ListAllImages enumerates every tagged image present on the host,
// deduplicated, with placeholder entries excluded.
func (e *Enumerator) ListAllImages(ctx context.Context, host types.Host) ([]types.ImageRef, error) {
	out, err := e.conn.Run(ctx, host, "docker", "images", "--format", imagesFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to list images on %s: %w", host.Address, err)
	}

	var images []types.ImageRef
	seen := make(map[string]struct{})
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isPlaceholderImage(line) {
			continue
		}
		ref, err := ParseImageRef(line)
		if err != nil {
			e.logger.Error("skipping unparsable image", "host", host.Address, "error", err)
			continue
		}
		if _, ok := seen[ref.String()]; ok {
			continue
		}
		seen[ref.String()] = struct{}{}
		images = append(images, ref)
	}
	return images, nil
}

// ListInactiveTargets enumerates the host's images not covered by the
// given active targets, each wrapped as an inactive target with no
// container name. The active and inactive image sets for a host are
// disjoint and together cover all images on the host.
func (e *Enumerator) ListInactiveTargets(ctx context.Context, host types.Host,
	active []types.ScanTarget) ([]types.ScanTarget, error) {
	all, err := e.ListAllImages(ctx, host)
	if err != nil {
		return nil, err
	}

	activeImages := make(map[string]struct{}, len(active))
	for _, t := range active {
		activeImages[t.Image.String()] = struct{}{}
	}

	var targets []types.ScanTarget
	for _, ref := range all {
		if _, ok := activeImages[ref.String()]; ok {
			continue
		}
		targets = append(targets, types.ScanTarget{
			Host:   host,
			Image:  ref,
			Status: types.TargetInactive,
		})
	}
	return targets, nil
}
