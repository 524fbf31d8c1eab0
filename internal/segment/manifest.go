package segment

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// Segment is one contiguous chunk of media data within a manifest
type Segment struct {
	Index    int
	URL      string
	Duration float64 // seconds
}

// Manifest is the ordered segment list for one piece of content. HasMore is
// true while the track is still live and more segments may appear.
type Manifest struct {
	Segments []Segment
	HasMore  bool
}

// TotalDuration sums the listed segment durations in seconds
func (m *Manifest) TotalDuration() float64 {
	var total float64
	for _, seg := range m.Segments {
		total += seg.Duration
	}
	return total
}

// ParseManifest reads a media playlist and returns the ordered segment list.
// Segment URIs are resolved against baseURL when relative. The manifest is
// considered finished once it carries an end marker.
func ParseManifest(baseURL string, r io.Reader) (*Manifest, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("segment: parse base url: %w", err)
	}

	manifest := &Manifest{HasMore: true}
	duration := 0.0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-ENDLIST"):
			manifest.HasMore = false
		case strings.HasPrefix(line, "#EXTINF:"):
			value := strings.TrimSuffix(strings.TrimPrefix(line, "#EXTINF:"), ",")
			if idx := strings.Index(value, ","); idx >= 0 {
				value = value[:idx]
			}
			if parsed, err := strconv.ParseFloat(value, 64); err == nil {
				duration = parsed
			}
		case strings.HasPrefix(line, "#"):
			continue
		default:
			ref, err := url.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("segment: parse segment uri %q: %w", line, err)
			}
			manifest.Segments = append(manifest.Segments, Segment{
				Index:    len(manifest.Segments),
				URL:      base.ResolveReference(ref).String(),
				Duration: duration,
			})
			duration = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("segment: read manifest: %w", err)
	}
	return manifest, nil
}
