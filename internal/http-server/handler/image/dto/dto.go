package dto

import "time"

type ImageIDRequest struct {
	ID string `validate:"required,uuid"`
}

type UploadResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type ImageResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ImageListResponse struct {
	Images []ImageResponse `json:"images"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
