package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"image-variants/internal/broker"
	kafka_impl "image-variants/internal/broker/kafka"
	"image-variants/internal/config"
	image_h "image-variants/internal/http-server/handler/image"
	"image-variants/internal/http-server/middleware"
	"image-variants/internal/http-server/router"
	image_uc "image-variants/internal/usecase/image"
	"image-variants/internal/usecase/negotiation"
	"image-variants/internal/usecase/processor"

	"github.com/wb-go/wbf/zlog"
)

type App struct {
	cfg       *config.Config
	server    *http.Server
	logger    *zlog.Zerolog
	closeDB   func() error
	publisher broker.Publisher
}

func NewApp(cfg *config.Config, logger *zlog.Zerolog) (*App, error) {
	ctx := context.Background()

	registry, err := processor.NewRegistry(cfg.Formats)
	if err != nil {
		return nil, fmt.Errorf("failed to build codec registry: %w", err)
	}

	if len(cfg.EnabledFormats()) == 0 {
		logger.Warn().Msg("No output formats enabled, uploads and retrievals will fail")
	}

	fileRepo, err := OpenStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	imageRepo, closeDB, err := OpenMetadata(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher broker.Publisher = broker.Nop{}
	if cfg.Kafka.Enabled {
		publisher = kafka_impl.NewProducerClient(cfg)
	}

	imageUsecase := image_uc.NewImageUsecase(
		imageRepo,
		fileRepo,
		processor.NewImageProcessor(registry, logger),
		negotiation.NewNegotiator(cfg.Formats),
		publisher,
		cfg.EnabledFormats(),
		cfg.Upload.EncodeConcurrency,
		logger,
	)

	h := &router.Handler{
		ImageHandler: image_h.NewImageHandler(imageUsecase, cfg.Server.MaxUploadSize, logger),
		Auth:         middleware.NewAuthenticator(cfg.Auth, logger),
		Logger:       logger,
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Addr,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		cfg:       cfg,
		server:    server,
		logger:    logger,
		closeDB:   closeDB,
		publisher: publisher,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info().
		Str("addr", a.cfg.Server.Addr).
		Str("storage", a.cfg.Storage.Backend).
		Str("db", a.cfg.DB.Driver).
		Int("formats", len(a.cfg.EnabledFormats())).
		Msg("Starting server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go HandleSignals(a.logger, cancel)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.logger.Error().Err(err).Msg("Server error")
		a.close()
		return err
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("Server shutdown failed")
		}

		a.close()

		a.logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

func (a *App) close() {
	if a.closeDB != nil {
		if err := a.closeDB(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database")
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close event producer")
		}
	}
}

// HandleSignals cancels on SIGINT or SIGTERM.
func HandleSignals(logger *zlog.Zerolog, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Received signal")
	cancel()
}
