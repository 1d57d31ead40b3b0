package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"image-variants/internal/domain"
	"image-variants/internal/repository/image"

	"github.com/wb-go/wbf/retry"
)

// executor is satisfied by *dbpg.DB and by the sqlite adapter.
type executor interface {
	ExecWithRetry(ctx context.Context, strategy retry.Strategy, query string, args ...interface{}) (sql.Result, error)
	QueryRowWithRetry(ctx context.Context, strategy retry.Strategy, query string, args ...interface{}) (*sql.Row, error)
	QueryWithRetry(ctx context.Context, strategy retry.Strategy, query string, args ...interface{}) (*sql.Rows, error)
}

// Schema is portable between PostgreSQL and SQLite.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_owner_id ON images (owner_id, created_at DESC)`,
}

type ImagesRepository struct {
	db      executor
	retries retry.Strategy
}

func NewImagesRepository(db executor, retries retry.Strategy) *ImagesRepository {
	return &ImagesRepository{
		db:      db,
		retries: retries,
	}
}

func (r *ImagesRepository) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := r.db.ExecWithRetry(ctx, r.retries, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (r *ImagesRepository) Save(ctx context.Context, meta *domain.ImageMetadata) error {
	query := `INSERT INTO images (id, owner_id, created_at) VALUES ($1, $2, $3)`

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecWithRetry(ctx, r.retries, query, meta.ID, meta.OwnerID, meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	return nil
}

func (r *ImagesRepository) GetByID(ctx context.Context, id string) (*domain.ImageMetadata, error) {
	query := `SELECT id, owner_id, created_at FROM images WHERE id = $1`

	row, err := r.db.QueryRowWithRetry(ctx, r.retries, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}

	var meta domain.ImageMetadata
	err = row.Scan(&meta.ID, &meta.OwnerID, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, image.ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}

	return &meta, nil
}

func (r *ImagesRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.ImageMetadata, error) {
	query := `
		SELECT id, owner_id, created_at
		FROM images
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryWithRetry(ctx, r.retries, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	images := []domain.ImageMetadata{}
	for rows.Next() {
		var meta domain.ImageMetadata
		if err := rows.Scan(&meta.ID, &meta.OwnerID, &meta.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

func (r *ImagesRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT COUNT(*) FROM images WHERE id = $1`

	row, err := r.db.QueryRowWithRetry(ctx, r.retries, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to query image: %w", err)
	}

	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("failed to scan count: %w", err)
	}

	return count > 0, nil
}

func (r *ImagesRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images WHERE id = $1`

	result, err := r.db.ExecWithRetry(ctx, r.retries, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return image.ErrImageNotFound
	}

	return nil
}

// DeleteOwned deletes the record only if ownerID owns it, in one statement,
// and reports whether a row was removed.
func (r *ImagesRepository) DeleteOwned(ctx context.Context, id, ownerID string) (bool, error) {
	query := `DELETE FROM images WHERE id = $1 AND owner_id = $2`

	result, err := r.db.ExecWithRetry(ctx, r.retries, query, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete image: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}
