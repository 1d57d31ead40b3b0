package app

import (
	"context"
	"fmt"

	"image-variants/internal/config"
	repoImage "image-variants/internal/repository/image"
	minio_repo "image-variants/internal/repository/image/cloud/minio"
	postgres_repo "image-variants/internal/repository/image/db/postgres"
	sqlite_db "image-variants/internal/repository/image/db/sqlite"
	fs_repo "image-variants/internal/repository/image/fs"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

// Storage is the variant store shared by the server and the janitor.
type Storage interface {
	BeginUpload(ctx context.Context, id string) (repoImage.VariantUpload, error)
	ReadVariant(ctx context.Context, id, ext string) ([]byte, error)
	DeleteAll(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	ListImages(ctx context.Context) ([]repoImage.StoredImage, error)
}

// OpenStorage builds the configured storage backend.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zlog.Zerolog) (Storage, error) {
	switch cfg.Storage.Backend {
	case "minio":
		repo, err := minio_repo.NewMinIORepository(ctx, cfg.Storage.MinIO, cfg.DefaultRetryStrategy(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create minio storage: %w", err)
		}
		return repo, nil
	default:
		store, err := fs_repo.NewStore(cfg.Storage.BasePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create file storage: %w", err)
		}
		return store, nil
	}
}

// OpenMetadata connects to the configured database, applies the schema and
// returns the repository with a function that closes the connection.
func OpenMetadata(ctx context.Context, cfg *config.Config) (*postgres_repo.ImagesRepository, func() error, error) {
	retries := cfg.DefaultRetryStrategy()

	var (
		repo    *postgres_repo.ImagesRepository
		closeDB func() error
	)

	switch cfg.DB.Driver {
	case "sqlite":
		db, err := sqlite_db.Open(cfg.DB.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		repo = postgres_repo.NewImagesRepository(db, retries)
		closeDB = db.Close
	default:
		dbOpts := &dbpg.Options{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		}

		db, err := dbpg.New(cfg.DBDSN(), []string{}, dbOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo = postgres_repo.NewImagesRepository(db, retries)
		closeDB = func() error {
			if db.Master == nil {
				return nil
			}
			return db.Master.Close()
		}
	}

	if err := repo.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, closeDB, nil
}
