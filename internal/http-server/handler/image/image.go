package image

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"image-variants/internal/domain"
	"image-variants/internal/http-server/handler/image/dto"
	"image-variants/internal/http-server/middleware"
	image_uc "image-variants/internal/usecase/image"
	"image-variants/internal/usecase/negotiation"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/zlog"
)

const (
	maxMemory    = 32 << 20
	cacheControl = "public, max-age=3600"
)

type ImageHandler struct {
	usecase       imageUsecase
	validate      *validator.Validate
	maxUploadSize int64
	logger        *zlog.Zerolog
}

func NewImageHandler(usecase imageUsecase, maxUploadSize int64, logger *zlog.Zerolog) *ImageHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = domain.DefaultMaxUploadSize
	}

	return &ImageHandler{
		usecase:       usecase,
		validate:      validator.New(),
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// UploadImage accepts either a multipart form with a "file" field or the raw
// image as the request body.
func (h *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, ErrUnauthorized.Error(), nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	data, err := h.readUpload(r)
	if err != nil {
		h.handleError(w, err, "", "upload")
		return
	}

	meta, err := h.usecase.UploadImage(ctx, data, principal.UserID)
	if err != nil {
		h.handleError(w, err, "", "upload")
		return
	}

	w.Header().Set("Location", "/api/images/"+meta.ID)
	h.respondJSON(w, http.StatusCreated, dto.UploadResponse{
		ID:        meta.ID,
		CreatedAt: meta.CreatedAt,
	})
}

func (h *ImageHandler) readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return readBody(r.Body)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, wrapBodyError(err)
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, ErrFileRequired
	}
	defer file.Close()

	return readBody(file)
}

func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapBodyError(err)
	}
	if len(data) == 0 {
		return nil, ErrFileRequired
	}
	return data, nil
}

func wrapBodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxErr.Limit)
	}
	return fmt.Errorf("%w: %v", image_uc.ErrBadUpload, err)
}

// GetImage serves the stored variant that best matches the Accept header.
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	variant, err := h.usecase.GetBestSuitedImage(ctx, id, negotiation.ParseAccept(r.Header.Values("Accept")...))
	if err != nil {
		h.handleError(w, err, id, "retrieve")
		return
	}

	etag := fmt.Sprintf(`"%s-%s"`, id, variant.Format)
	w.Header().Set("Vary", "Accept")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", cacheControl)

	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", variant.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(variant.Data)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(variant.Data); err != nil {
		h.logger.Error().
			Err(err).
			Str("image_id", id).
			Str("format", string(variant.Format)).
			Msg("Failed to stream image")
	}
}

// HeadImage reports whether the image is known without sending it.
func (h *ImageHandler) HeadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	exists, err := h.usecase.DoesImageExist(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("image_id", id).Msg("Failed to check image existence")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Vary", "Accept")
	w.WriteHeader(http.StatusOK)
}

func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, ErrUnauthorized.Error(), nil)
		return
	}

	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	if err := h.usecase.DeleteImage(ctx, id, principal.UserID, principal.IsAdmin); err != nil {
		h.handleError(w, err, id, "delete")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListImages lists the caller's own images.
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, ErrUnauthorized.Error(), nil)
		return
	}

	images, err := h.usecase.ListImages(ctx, principal.UserID)
	if err != nil {
		h.handleError(w, err, "", "list")
		return
	}

	response := dto.ImageListResponse{Images: make([]dto.ImageResponse, 0, len(images))}
	for _, img := range images {
		response.Images = append(response.Images, dto.ImageResponse{
			ID:        img.ID,
			OwnerID:   img.OwnerID,
			CreatedAt: img.CreatedAt,
		})
	}

	h.respondJSON(w, http.StatusOK, response)
}

// imageID validates the {id} path parameter. Malformed ids cannot name a
// stored image, so they are answered with 404.
func (h *ImageHandler) imageID(w http.ResponseWriter, r *http.Request) (string, bool) {
	req := dto.ImageIDRequest{ID: chi.URLParam(r, "id")}

	if err := h.validate.Struct(req); err != nil {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
		} else {
			h.respondError(w, http.StatusNotFound, "Image not found", nil)
		}
		return "", false
	}
	return req.ID, true
}

func (h *ImageHandler) handleError(w http.ResponseWriter, err error, imageID, operation string) {
	switch {
	case errors.Is(err, ErrFileRequired):
		h.respondError(w, http.StatusBadRequest, "File is required", nil)
	case errors.Is(err, ErrFileTooLarge), errors.Is(err, image_uc.ErrImageTooLarge):
		h.logger.Warn().Err(err).Msg("Upload too large")
		h.respondError(w, http.StatusRequestEntityTooLarge, "File too large", nil)
	case errors.Is(err, image_uc.ErrBadUpload):
		h.respondError(w, http.StatusBadRequest, "File is not a supported image", nil)
	case errors.Is(err, image_uc.ErrImageNotFound):
		h.respondError(w, http.StatusNotFound, "Image not found", nil)
	case errors.Is(err, image_uc.ErrForbidden):
		h.respondError(w, http.StatusForbidden, "Not allowed to delete this image", nil)
	case errors.Is(err, image_uc.ErrNotAcceptable):
		h.respondError(w, http.StatusNotAcceptable, "No acceptable image format", err)
	default:
		h.logger.Error().
			Err(err).
			Str("image_id", imageID).
			Str("operation", operation).
			Msg("Request failed")
		h.respondError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func (h *ImageHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ImageHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}

	if err != nil {
		response.Details = err.Error()
	}

	h.respondJSON(w, status, response)
}
