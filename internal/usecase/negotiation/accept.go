package negotiation

import (
	"math"
	"strconv"
	"strings"
)

// AcceptEntry is one media range from an Accept header.
type AcceptEntry struct {
	MediaType string
	Q         float64
}

// ParseAccept splits Accept header values into entries, keeping their order.
// A missing or unparseable q counts as 1.
func ParseAccept(values ...string) []AcceptEntry {
	var entries []AcceptEntry
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			segments := strings.Split(part, ";")
			mediaType := strings.ToLower(strings.TrimSpace(segments[0]))
			if mediaType == "" {
				continue
			}

			entries = append(entries, AcceptEntry{
				MediaType: mediaType,
				Q:         parseQ(segments[1:]),
			})
		}
	}
	return entries
}

func parseQ(params []string) float64 {
	for _, p := range params {
		name, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 1
		}
		return clamp(q)
	}
	return 1
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func (e AcceptEntry) matches(mediaType string) bool {
	if e.MediaType == "*/*" || e.MediaType == "*" {
		return true
	}
	if strings.EqualFold(e.MediaType, mediaType) {
		return true
	}

	typ, sub, ok := strings.Cut(e.MediaType, "/")
	if !ok || sub != "*" {
		return false
	}
	candidateType, _, _ := strings.Cut(mediaType, "/")
	return strings.EqualFold(typ, candidateType)
}
