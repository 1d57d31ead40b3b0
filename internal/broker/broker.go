package broker

import (
	"context"

	"image-variants/internal/domain"
)

// Publisher announces image lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event domain.ImageEvent) error
	Close() error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, domain.ImageEvent) error { return nil }

func (Nop) Close() error { return nil }
