package minio

import (
	"context"
	"errors"
	"testing"

	"image-variants/internal/repository/image"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

func TestObjectKey(t *testing.T) {
	id := uuid.NewString()
	if got, want := objectKey(id, "webp"), id+"/image.webp"; got != want {
		t.Errorf("objectKey = %q, want %q", got, want)
	}
}

func TestIsNoSuchKey(t *testing.T) {
	if !isNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}) {
		t.Error("NoSuchKey not recognised")
	}
	if isNoSuchKey(minio.ErrorResponse{Code: "AccessDenied"}) {
		t.Error("AccessDenied treated as NoSuchKey")
	}
}

func TestUpload_BuffersWriteOnce(t *testing.T) {
	r := &FileRepository{}
	ctx := context.Background()

	up, err := r.BeginUpload(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("BeginUpload: %v", err)
	}
	if err := up.WriteVariant(ctx, "png", []byte("a")); err != nil {
		t.Fatalf("WriteVariant: %v", err)
	}
	if err := up.WriteVariant(ctx, "png", []byte("b")); !errors.Is(err, image.ErrVariantExists) {
		t.Fatalf("expected ErrVariantExists, got %v", err)
	}

	if err := up.Discard(ctx); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if err := up.WriteVariant(ctx, "gif", nil); !errors.Is(err, image.ErrUploadFinished) {
		t.Fatalf("expected ErrUploadFinished, got %v", err)
	}
}

func TestBeginUpload_RejectsBadID(t *testing.T) {
	r := &FileRepository{}
	if _, err := r.BeginUpload(context.Background(), "../../etc"); !errors.Is(err, image.ErrInvalidImageID) {
		t.Fatalf("expected ErrInvalidImageID, got %v", err)
	}
}
