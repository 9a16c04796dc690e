package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"subburn/internal/logging"
	"subburn/internal/media/audio"
	"subburn/internal/pipeline"
	"subburn/internal/render"
	"subburn/internal/subtitles"
	"subburn/internal/transcribe"
	"subburn/internal/workspace"
)

func newBurnCommand(cctx *commandContext) *cobra.Command {
	var opts subtitles.Options

	cmd := &cobra.Command{
		Use:   "burn <video>",
		Short: "Generate subtitles for a local video and burn them in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			source, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}
			if _, err := os.Stat(source); err != nil {
				return fmt.Errorf("input video: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      "console",
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			processor := audio.NewPreprocessor(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, logger)
			engine := transcribe.NewWhisperXEngine(cfg.Transcription, cfg.Tools.WhisperX, logger)
			invoker := render.NewInvoker(cfg.Tools.FFmpeg, logger)
			p := pipeline.New(processor, engine, invoker, nil, logger)

			manager := workspace.NewManager(cfg.Paths.StagingDir, logger)
			ws, err := manager.Create()
			if err != nil {
				return err
			}
			defer ws.Cleanup()

			originalName := filepath.Base(source)
			in, err := os.Open(source)
			if err != nil {
				return fmt.Errorf("open input video: %w", err)
			}
			_, _, err = ws.SaveInput(originalName, in)
			in.Close()
			if err != nil {
				return err
			}

			result, err := p.Run(cmd.Context(), ws, originalName, opts)
			if err != nil {
				return err
			}

			dest := filepath.Join(filepath.Dir(source), "subtitled_"+originalName)
			if err := copyFile(result.OutputPath, dest); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%d cues, %.1fs of audio)\n", dest, result.CueCount, result.DurationSeconds)
			if !result.Burned {
				fmt.Fprintln(out, "Transcript was empty; the video was copied without captions.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.FontName, "font", "", "Subtitle font name")
	cmd.Flags().IntVar(&opts.FontSize, "font-size", 0, "Subtitle font size")
	cmd.Flags().BoolVar(&opts.Bold, "bold", false, "Render subtitles in bold")
	cmd.Flags().StringVar(&opts.PrimaryColor, "primary-color", "", "Subtitle color as RRGGBB hex")
	cmd.Flags().StringVar(&opts.OutlineColor, "outline-color", "", "Outline color as RRGGBB hex")
	cmd.Flags().StringVar(&opts.Alignment, "alignment", "", "Subtitle position: bottom, center, or top")
	return cmd
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
