package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"image-variants/internal/domain"
	"image-variants/internal/repository/image"
	"image-variants/internal/repository/image/db/sqlite"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

func newTestRepository(t *testing.T) *ImagesRepository {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "images.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewImagesRepository(db, retry.Strategy{Attempts: 1})
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return repo
}

func TestImagesRepository_SaveAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	meta := &domain.ImageMetadata{ID: uuid.NewString(), OwnerID: "alice"}
	if err := repo.Save(ctx, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if meta.CreatedAt.IsZero() {
		t.Error("Save did not stamp CreatedAt")
	}

	got, err := repo.GetByID(ctx, meta.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ID != meta.ID || got.OwnerID != "alice" {
		t.Errorf("GetByID = %+v", got)
	}

	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, image.ErrImageNotFound) {
		t.Errorf("expected ErrImageNotFound, got %v", err)
	}
}

func TestImagesRepository_SaveDuplicate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	meta := &domain.ImageMetadata{ID: uuid.NewString(), OwnerID: "alice"}
	if err := repo.Save(ctx, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, meta); err == nil {
		t.Fatal("expected error saving duplicate id")
	}
}

func TestImagesRepository_Exists(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := uuid.NewString()

	ok, err := repo.Exists(ctx, id)
	if err != nil || ok {
		t.Fatalf("Exists before save = %v, %v", ok, err)
	}

	if err := repo.Save(ctx, &domain.ImageMetadata{ID: id, OwnerID: "bob"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ok, err = repo.Exists(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Exists after save = %v, %v", ok, err)
	}
}

func TestImagesRepository_ListByOwner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	older := &domain.ImageMetadata{ID: uuid.NewString(), OwnerID: "alice", CreatedAt: base}
	newer := &domain.ImageMetadata{ID: uuid.NewString(), OwnerID: "alice", CreatedAt: base.Add(time.Hour)}
	other := &domain.ImageMetadata{ID: uuid.NewString(), OwnerID: "bob", CreatedAt: base}

	for _, m := range []*domain.ImageMetadata{older, newer, other} {
		if err := repo.Save(ctx, m); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	images, err := repo.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if images[0].ID != newer.ID || images[1].ID != older.ID {
		t.Errorf("unexpected order: %s, %s", images[0].ID, images[1].ID)
	}

	none, err := repo.ListByOwner(ctx, "carol")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestImagesRepository_Delete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := uuid.NewString()

	if err := repo.Delete(ctx, id); !errors.Is(err, image.ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}

	if err := repo.Save(ctx, &domain.ImageMetadata{ID: id, OwnerID: "alice"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := repo.Exists(ctx, id); ok {
		t.Error("record still exists after Delete")
	}
}

func TestImagesRepository_DeleteOwned(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := uuid.NewString()

	if err := repo.Save(ctx, &domain.ImageMetadata{ID: id, OwnerID: "alice"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	deleted, err := repo.DeleteOwned(ctx, id, "mallory")
	if err != nil {
		t.Fatalf("DeleteOwned: %v", err)
	}
	if deleted {
		t.Fatal("non-owner deleted the record")
	}
	if ok, _ := repo.Exists(ctx, id); !ok {
		t.Fatal("record removed by non-owner")
	}

	deleted, err = repo.DeleteOwned(ctx, id, "alice")
	if err != nil {
		t.Fatalf("DeleteOwned: %v", err)
	}
	if !deleted {
		t.Fatal("owner could not delete the record")
	}
	if ok, _ := repo.Exists(ctx, id); ok {
		t.Fatal("record still exists")
	}
}
