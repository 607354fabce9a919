package main

import (
	"context"
	"fmt"
	"os"

	"codeberg.org/mutker/powerwatch/internal/app"
	"codeberg.org/mutker/powerwatch/internal/config"
	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.LogLevel.String(), logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	logger.Debug().Msg("Config loaded")

	application, err := app.New(cfg)
	if err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("Failed to initialize")
		} else {
			logger.Error().Err(err).Msg("Failed to initialize")
		}
		return 1
	}

	setupDebugSignalHandlers(application)

	if err := application.Run(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Stopped on shutdown request")
		return 1
	}

	return 0
}
