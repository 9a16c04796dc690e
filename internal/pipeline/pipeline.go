// Package pipeline runs a subtitle request end to end: decode audio,
// transcribe, synthesize captions, and render the burned-in output.
package pipeline

import (
	"context"
	"log/slog"
	"os"

	"subburn/internal/history"
	"subburn/internal/logging"
	"subburn/internal/media/audio"
	"subburn/internal/render"
	"subburn/internal/services"
	"subburn/internal/subtitles"
	"subburn/internal/transcribe"
	"subburn/internal/workspace"
)

type audioProcessor interface {
	Process(ctx context.Context, path string) (audio.Buffer, error)
}

type renderer interface {
	Render(ctx context.Context, req render.Request) error
}

// Recorder receives request state transitions. *history.Store satisfies it.
type Recorder interface {
	SetState(ctx context.Context, id string, state history.State) error
	SetTranscript(ctx context.Context, id string, cueCount int, durationSeconds float64) error
	MarkFailed(ctx context.Context, id, message string) error
}

// Pipeline wires the processing stages for one service instance. It is safe
// for concurrent use as long as the injected engine is.
type Pipeline struct {
	processor audioProcessor
	engine    transcribe.Engine
	renderer  renderer
	recorder  Recorder
	logger    *slog.Logger
}

// New assembles a pipeline from its stage implementations. recorder may be
// nil when no history should be kept.
func New(processor audioProcessor, engine transcribe.Engine, r renderer, recorder Recorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		processor: processor,
		engine:    engine,
		renderer:  r,
		recorder:  recorder,
		logger:    logger,
	}
}

// Result summarizes a completed request.
type Result struct {
	OutputPath      string
	CueCount        int
	DurationSeconds float64
	Burned          bool
}

// Run processes the saved upload at inputPath inside ws and leaves the
// rendered video at the workspace output path. The caller owns workspace
// cleanup; Run never removes files.
func (p *Pipeline) Run(ctx context.Context, ws *workspace.Workspace, originalName string, style subtitles.Options) (Result, error) {
	log := logging.WithContext(ctx, p.logger)

	resolved, err := subtitles.Resolve(style)
	if err != nil {
		return Result{}, p.fail(ctx, ws.ID, err)
	}

	inputPath := ws.InputPath(originalName)

	ctx = services.WithStage(ctx, "audio")
	buf, err := p.processor.Process(ctx, inputPath)
	if err != nil {
		return Result{}, p.fail(ctx, ws.ID, err)
	}
	p.setState(ctx, ws.ID, history.StateAudioExtracted)
	log.Info("audio extracted",
		logging.Float64("duration_seconds", buf.Duration()),
		logging.Int("sample_rate", buf.SampleRate),
	)

	ctx = services.WithStage(ctx, "transcribe")
	words, err := p.engine.Transcribe(ctx, buf, ws.TranscribeDir())
	if err != nil {
		return Result{}, p.fail(ctx, ws.ID, err)
	}
	p.setState(ctx, ws.ID, history.StateTranscribed)

	ctx = services.WithStage(ctx, "captions")
	cues := subtitles.BuildCues(words)
	srt := subtitles.BuildSRT(cues)
	if err := os.WriteFile(ws.CaptionPath(), []byte(srt), 0o644); err != nil {
		wrapped := services.Wrap(services.ErrRender, "pipeline", "write captions", "failed to write caption file", err)
		return Result{}, p.fail(ctx, ws.ID, wrapped)
	}
	p.setState(ctx, ws.ID, history.StateCaptionsWritten)
	if p.recorder != nil {
		if err := p.recorder.SetTranscript(ctx, ws.ID, len(cues), buf.Duration()); err != nil {
			log.Warn("failed to record transcript metadata", logging.Error(err))
		}
	}
	log.Info("captions written", logging.Int("cues", len(cues)))
	if len(cues) == 0 {
		log.Warn("transcript empty, output will carry no captions",
			logging.String(logging.FieldEventType, "empty_transcript"),
		)
	}

	ctx = services.WithStage(ctx, "render")
	// The upload is persisted before decoding; confirm it is still in place
	// before handing it to the renderer.
	if _, err := os.Stat(inputPath); err != nil {
		wrapped := services.Wrap(services.ErrRender, "pipeline", "stage video", "workspace video missing", err)
		return Result{}, p.fail(ctx, ws.ID, wrapped)
	}
	p.setState(ctx, ws.ID, history.StateVideoSaved)

	outputPath := ws.OutputPath(originalName)
	req := render.Request{
		VideoPath:    inputPath,
		CaptionPath:  ws.CaptionPath(),
		OutputPath:   outputPath,
		Style:        resolved,
		BurnCaptions: len(cues) > 0,
	}
	if err := p.renderer.Render(ctx, req); err != nil {
		return Result{}, p.fail(ctx, ws.ID, err)
	}
	p.setState(ctx, ws.ID, history.StateRendered)
	log.Info("render complete", logging.String("output", outputPath))

	return Result{
		OutputPath:      outputPath,
		CueCount:        len(cues),
		DurationSeconds: buf.Duration(),
		Burned:          len(cues) > 0,
	}, nil
}

func (p *Pipeline) setState(ctx context.Context, id string, state history.State) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.SetState(ctx, id, state); err != nil {
		p.logger.Warn("failed to record request state",
			logging.String(logging.FieldRequestID, id),
			logging.String("state", string(state)),
			logging.Error(err),
		)
	}
}

func (p *Pipeline) fail(ctx context.Context, id string, err error) error {
	logging.WithContext(ctx, p.logger).Error("request failed", logging.Error(err))
	if p.recorder != nil {
		if recErr := p.recorder.MarkFailed(ctx, id, err.Error()); recErr != nil {
			p.logger.Warn("failed to record request failure",
				logging.String(logging.FieldRequestID, id),
				logging.Error(recErr),
			)
		}
	}
	return err
}
