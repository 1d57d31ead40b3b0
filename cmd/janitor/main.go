package main

import (
	"os"

	"image-variants/internal/app/janitor"
	"image-variants/internal/config"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	zlog.Init()

	cfg, err := config.MustLoad()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	janitorApp, err := janitor.NewJanitor(cfg, &zlog.Logger)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to create janitor")
	}

	if err := janitorApp.Run(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Janitor failed")
	}

	zlog.Logger.Info().Msg("Janitor exited successfully")
	os.Exit(0)
}
