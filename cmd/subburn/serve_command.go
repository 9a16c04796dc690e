package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"subburn/internal/deps"
	"subburn/internal/history"
	"subburn/internal/logging"
	"subburn/internal/media/audio"
	"subburn/internal/pipeline"
	"subburn/internal/render"
	"subburn/internal/server"
	"subburn/internal/transcribe"
	"subburn/internal/workspace"
)

func newServeCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the subtitle HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewForService(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, "subburn.log")
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			lockPath := filepath.Join(cfg.Paths.LogDir, "subburn.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("another subburn instance is already running")
			}
			defer func() { _ = lock.Unlock() }()

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			for _, status := range statuses {
				if !status.Available {
					logger.Warn("dependency unavailable",
						logging.String("name", status.Name),
						logging.String("detail", status.Detail),
					)
				}
			}
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				logger.Warn("required binaries missing, requests will fail until installed",
					logging.String("missing", strings.Join(missing, ", ")),
				)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			maxAge := time.Duration(cfg.Workspace.StaleMaxAgeHours) * time.Hour
			sweep := workspace.CleanStale(ctx, cfg.Paths.StagingDir, maxAge, logger)
			if len(sweep.Removed) > 0 {
				logger.Info("swept stale workspaces", logging.Int("count", len(sweep.Removed)))
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer func() { _ = store.Close() }()

			processor := audio.NewPreprocessor(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, logger)
			engine := transcribe.NewWhisperXEngine(cfg.Transcription, cfg.Tools.WhisperX, logger)
			invoker := render.NewInvoker(cfg.Tools.FFmpeg, logger)
			p := pipeline.New(processor, engine, invoker, store, logger)
			manager := workspace.NewManager(cfg.Paths.StagingDir, logger)

			srv := server.New(cfg, p, manager, store, logger)
			if err := srv.Start(ctx); err != nil {
				return err
			}

			logger.Info("subburn service started",
				logging.String("bind", cfg.Paths.APIBind),
				logging.String("staging_dir", cfg.Paths.StagingDir),
				logging.String("model", cfg.Transcription.Model),
			)

			<-ctx.Done()
			srv.Stop()
			logger.Info("subburn service stopped")
			return nil
		},
	}
}
