// Package render drives the external ffmpeg process that burns caption cues
// into the video track.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"subburn/internal/logging"
	"subburn/internal/services"
	"subburn/internal/subtitles"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// Request describes the inputs for one burn-in render.
type Request struct {
	VideoPath   string
	CaptionPath string
	OutputPath  string
	Style       subtitles.Style
	// BurnCaptions is false when the transcript was empty; the render then
	// degrades to a stream copy so the pipeline still produces an output file.
	BurnCaptions bool
}

// Invoker executes the external renderer and interprets its exit status.
type Invoker struct {
	binary string
	logger *slog.Logger
	run    commandRunner
}

// NewInvoker constructs a render invoker for the given ffmpeg binary.
func NewInvoker(binary string, logger *slog.Logger) *Invoker {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Invoker{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "render"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner injects a custom command runner for tests.
func (inv *Invoker) WithCommandRunner(r commandRunner) {
	if inv != nil && r != nil {
		inv.run = r
	}
}

// Render burns the caption file into the video according to the style and
// writes the result to the output path. The audio track is copied unchanged.
// A non-zero exit is reported as a render error carrying the process
// diagnostics.
func (inv *Invoker) Render(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.VideoPath) == "" {
		return services.Wrap(services.ErrRender, "render", "request", "video path is required", nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return services.Wrap(services.ErrRender, "render", "request", "output path is required", nil)
	}
	if req.BurnCaptions {
		if _, err := os.Stat(req.CaptionPath); err != nil {
			return services.Wrap(services.ErrRender, "render", "request", "caption file not found", err)
		}
	}

	args := BuildArgs(req)
	if inv.logger != nil {
		inv.logger.Debug("executing renderer",
			logging.String("video", req.VideoPath),
			logging.Bool("burn_captions", req.BurnCaptions),
		)
	}

	if err := inv.run(ctx, inv.binary, args...); err != nil {
		return services.Wrap(services.ErrRender, "render", "burn", "", err)
	}

	if _, err := os.Stat(req.OutputPath); err != nil {
		return services.Wrap(services.ErrRender, "render", "burn", "renderer did not produce output file", err)
	}

	if inv.logger != nil {
		inv.logger.Info("render complete",
			logging.String(logging.FieldEventType, "render_complete"),
			logging.String("output", req.OutputPath),
		)
	}
	return nil
}

// BuildArgs constructs the ffmpeg argument vector for the request. The
// caption path and style string are passed through filter escaping so no
// user-controlled value can alter the filter graph.
func BuildArgs(req Request) []string {
	args := []string{"-y", "-v", "error", "-i", req.VideoPath}
	if req.BurnCaptions {
		filter := fmt.Sprintf("subtitles=%s:force_style='%s'",
			escapeFilterPath(req.CaptionPath), req.Style.ForceStyle())
		args = append(args, "-vf", filter, "-c:a", "copy")
	} else {
		// Nothing to burn: copy every stream unchanged.
		args = append(args, "-c", "copy")
	}
	return append(args, req.OutputPath)
}

// escapeFilterPath escapes characters that are significant inside an ffmpeg
// filter graph argument.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`,`, `\,`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return replacer.Replace(path)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
