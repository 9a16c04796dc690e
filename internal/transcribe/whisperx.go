package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"subburn/internal/config"
	"subburn/internal/logging"
	"subburn/internal/media/audio"
	"subburn/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// WhisperXEngine runs the whisperx CLI against a WAV rendition of the sample
// buffer and flattens its segment/word JSON output.
type WhisperXEngine struct {
	cfg    config.Transcription
	binary string
	logger *slog.Logger
	run    commandRunner
}

// NewWhisperXEngine constructs the subprocess-backed engine.
func NewWhisperXEngine(cfg config.Transcription, binary string, logger *slog.Logger) *WhisperXEngine {
	if strings.TrimSpace(binary) == "" {
		binary = "whisperx"
	}
	return &WhisperXEngine{
		cfg:    cfg,
		binary: binary,
		logger: logging.NewComponentLogger(logger, "whisperx"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner injects a custom command runner for tests.
func (e *WhisperXEngine) WithCommandRunner(r commandRunner) {
	if e != nil && r != nil {
		e.run = r
	}
}

// Model returns the configured model name for logging.
func (e *WhisperXEngine) Model() string {
	if e.cfg.Model != "" {
		return e.cfg.Model
	}
	return "small"
}

// Transcribe writes buf as a mono WAV into workDir, invokes whisperx with
// word-level output, and flattens the resulting segments in order. Zero
// recognized words yields an empty slice, not an error.
func (e *WhisperXEngine) Transcribe(ctx context.Context, buf audio.Buffer, workDir string) ([]Word, error) {
	if workDir == "" {
		return nil, services.Wrap(services.ErrTranscription, "whisperx", "transcribe", "workDir required", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "whisperx", "transcribe", "ensure workDir", err)
	}

	wavPath := filepath.Join(workDir, "audio.wav")
	if err := audio.WriteWAV(wavPath, buf); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "whisperx", "write wav", "", err)
	}

	if err := e.run(ctx, e.binary, e.buildArgs(wavPath, workDir)...); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "whisperx", "run", "", err)
	}

	jsonPath := filepath.Join(workDir, "audio.json")
	segments, err := loadSegments(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "whisperx", "parse output", "", err)
	}

	words := flattenSegments(segments)
	if e.logger != nil {
		e.logger.Debug("transcription complete",
			logging.Int("segments", len(segments)),
			logging.Int("words", len(words)),
		)
	}
	return words, nil
}

// buildArgs constructs the whisperx command arguments.
func (e *WhisperXEngine) buildArgs(wavPath, outputDir string) []string {
	model := e.cfg.Model
	if model == "" {
		model = "small"
	}
	args := []string{
		wavPath,
		"--model", model,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--segment_resolution", "sentence",
	}

	if vad := e.cfg.VADMethod; vad != "" {
		args = append(args, "--vad_method", vad)
	}
	if lang := e.cfg.Language; lang != "" {
		args = append(args, "--language", lang)
	}

	device := e.cfg.Device
	if device == "" {
		device = "cpu"
	}
	args = append(args, "--device", device)
	if device == "cpu" {
		compute := e.cfg.ComputeType
		if compute == "" {
			compute = "int8"
		}
		args = append(args, "--compute_type", compute)
	}
	return args
}

// segment mirrors the whisperx JSON structure.
type segment struct {
	Text  string `json:"text"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

type enginePayload struct {
	Segments []segment `json:"segments"`
}

func loadSegments(jsonPath string) ([]segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload enginePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// flattenSegments collapses the segment/word hierarchy into a flat ordered
// word list, dropping empty tokens.
func flattenSegments(segments []segment) []Word {
	var words []Word
	for _, seg := range segments {
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			words = append(words, Word{Text: text, Start: w.Start, End: w.End})
		}
	}
	return words
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
