// Package janitor removes variant files that no metadata row points at, and
// staged uploads abandoned before commit.
package janitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"image-variants/internal/app"
	"image-variants/internal/config"
	repoImage "image-variants/internal/repository/image"

	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"
)

type variantStorage interface {
	ListImages(ctx context.Context) ([]repoImage.StoredImage, error)
	DeleteAll(ctx context.Context, id string) error
}

// stagingStorage is implemented by backends that stage uploads on disk.
type stagingStorage interface {
	ListStaged(ctx context.Context) ([]repoImage.StoredImage, error)
	PurgeStaged(ctx context.Context, cutoff time.Time) (int, error)
}

type metadataRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Report summarises one sweep.
type Report struct {
	Scanned int
	Orphans int
	Removed int
	Staged  int
	Purged  int
}

type Janitor struct {
	storage variantStorage
	repo    metadataRepository
	cfg     config.JanitorConfig
	logger  *zlog.Zerolog
	closeDB func() error
	now     func() time.Time
}

func New(storage variantStorage, repo metadataRepository, cfg config.JanitorConfig, logger *zlog.Zerolog) *Janitor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return &Janitor{
		storage: storage,
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// NewJanitor connects to the configured storage and database.
func NewJanitor(cfg *config.Config, logger *zlog.Zerolog) (*Janitor, error) {
	ctx := context.Background()

	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	repo, closeDB, err := app.OpenMetadata(ctx, cfg)
	if err != nil {
		return nil, err
	}

	j := New(storage, repo, cfg.Janitor, logger)
	j.closeDB = closeDB
	return j, nil
}

// Run sweeps once when no interval is configured, otherwise on every tick
// until SIGINT or SIGTERM.
func (j *Janitor) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer j.close()

	go app.HandleSignals(j.logger, cancel)

	if j.cfg.Interval <= 0 {
		_, err := j.Sweep(ctx)
		return err
	}

	j.logger.Info().
		Dur("interval", j.cfg.Interval).
		Bool("prune", j.cfg.Prune).
		Int("concurrency", j.cfg.Concurrency).
		Msg("Janitor started")

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error().Err(err).Msg("Sweep failed")
		}

		select {
		case <-ctx.Done():
			j.logger.Info().Msg("Janitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep checks every stored image against the metadata store. Images written
// within the grace period are skipped since their upload may still be saving
// metadata.
func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	var report Report
	cutoff := j.now().Add(-j.cfg.GracePeriod)

	if err := j.sweepStaged(ctx, cutoff, &report); err != nil {
		return report, err
	}

	images, err := j.storage.ListImages(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list stored images: %w", err)
	}

	var orphans, removed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Concurrency)

	for _, img := range images {
		if !img.ModifiedAt.Before(cutoff) {
			continue
		}
		report.Scanned++

		g.Go(func() error {
			exists, err := j.repo.Exists(gctx, img.ID)
			if err != nil {
				return fmt.Errorf("failed to check metadata for %s: %w", img.ID, err)
			}
			if exists {
				return nil
			}

			orphans.Add(1)
			j.logger.Warn().
				Str("image_id", img.ID).
				Time("modified_at", img.ModifiedAt).
				Bool("prune", j.cfg.Prune).
				Msg("Orphaned image files")

			if !j.cfg.Prune {
				return nil
			}

			if err := j.storage.DeleteAll(gctx, img.ID); err != nil {
				j.logger.Error().Err(err).Str("image_id", img.ID).Msg("Failed to remove orphaned image")
				return nil
			}
			removed.Add(1)
			return nil
		})
	}

	err = g.Wait()
	report.Orphans = int(orphans.Load())
	report.Removed = int(removed.Load())

	j.logger.Info().
		Int("scanned", report.Scanned).
		Int("orphans", report.Orphans).
		Int("removed", report.Removed).
		Int("staged", report.Staged).
		Int("purged", report.Purged).
		Msg("Sweep completed")

	return report, err
}

func (j *Janitor) sweepStaged(ctx context.Context, cutoff time.Time, report *Report) error {
	staging, ok := j.storage.(stagingStorage)
	if !ok {
		return nil
	}

	staged, err := staging.ListStaged(ctx)
	if err != nil {
		return fmt.Errorf("failed to list staged uploads: %w", err)
	}

	for _, st := range staged {
		if st.ModifiedAt.Before(cutoff) {
			report.Staged++
			j.logger.Warn().Str("image_id", st.ID).Time("modified_at", st.ModifiedAt).Msg("Abandoned staged upload")
		}
	}

	if !j.cfg.Prune || report.Staged == 0 {
		return nil
	}

	purged, err := staging.PurgeStaged(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge staged uploads: %w", err)
	}
	report.Purged = purged
	return nil
}

func (j *Janitor) close() {
	if j.closeDB == nil {
		return
	}
	if err := j.closeDB(); err != nil {
		j.logger.Error().Err(err).Msg("Failed to close database")
	}
}
