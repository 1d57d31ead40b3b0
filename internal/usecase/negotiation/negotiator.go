// Package negotiation picks the served image format that best satisfies a
// client's Accept header.
package negotiation

import (
	"strings"

	"image-variants/internal/config"
	"image-variants/internal/domain"
)

// Negotiator scores every (Accept entry, enabled format) match as
// q * server weight. The highest score wins and ties go to the format
// declared first.
type Negotiator struct {
	formats []config.FormatConfig
}

func NewNegotiator(formats []config.FormatConfig) *Negotiator {
	return &Negotiator{formats: formats}
}

// Negotiate returns the winning format. An empty entry list is treated as */*.
func (n *Negotiator) Negotiate(entries []AcceptEntry) (config.FormatConfig, error) {
	enabled := n.enabled()
	if len(enabled) == 0 {
		return config.FormatConfig{}, ErrNoFormatsServed
	}
	if len(entries) == 0 {
		entries = []AcceptEntry{{MediaType: "*/*", Q: 1}}
	}

	best := -1
	bestScore := -1.0
	for i, f := range enabled {
		for _, e := range entries {
			// q=0 means "not acceptable".
			if e.Q <= 0 || !e.matches(f.MediaType) {
				continue
			}
			if score := e.Q * clamp(f.Weight); score > bestScore {
				best, bestScore = i, score
			}
		}
	}

	if best < 0 {
		return config.FormatConfig{}, n.noMatch(entries)
	}
	return enabled[best], nil
}

func (n *Negotiator) enabled() []config.FormatConfig {
	enabled := make([]config.FormatConfig, 0, len(n.formats))
	for _, f := range n.formats {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}
	return enabled
}

// noMatch names the requested media types when every one of them is a
// format this server knows but has switched off.
func (n *Negotiator) noMatch(entries []AcceptEntry) error {
	var disabled []string
	for _, e := range entries {
		if e.Q <= 0 {
			continue
		}
		if !n.isDisabled(e.MediaType) {
			return ErrNoMatchingFormat
		}
		disabled = append(disabled, e.MediaType)
	}

	if len(disabled) == 0 {
		return ErrNoMatchingFormat
	}
	return &NotServedError{MediaTypes: disabled}
}

func (n *Negotiator) isDisabled(mediaType string) bool {
	for _, f := range n.formats {
		if !f.Enabled && strings.EqualFold(f.MediaType, mediaType) {
			return true
		}
	}
	for _, k := range domain.KnownFormats {
		if strings.EqualFold(k.DefaultMediaType(), mediaType) && !n.configured(k) {
			return true
		}
	}
	return false
}

func (n *Negotiator) configured(format domain.ImageFormat) bool {
	for _, f := range n.formats {
		if f.Key == format {
			return true
		}
	}
	return false
}
