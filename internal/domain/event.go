package domain

import "time"

type EventType string

const (
	EventImageUploaded EventType = "image.uploaded"
	EventImageDeleted  EventType = "image.deleted"
)

type ImageEvent struct {
	Type       EventType     `json:"type"`
	ImageID    string        `json:"image_id"`
	OwnerID    string        `json:"owner_id"`
	Formats    []ImageFormat `json:"formats,omitempty"`
	DeletedBy  string        `json:"deleted_by,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
