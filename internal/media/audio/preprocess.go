package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"

	resampling "github.com/tphakala/go-audio-resampling"

	"subburn/internal/logging"
	"subburn/internal/media/ffprobe"
	"subburn/internal/services"
)

// TargetSampleRate is the sample rate the transcription engine expects.
const TargetSampleRate = 16000

// Buffer holds mono PCM float samples normalized to [-1, 1].
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

type outputRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Preprocessor converts an arbitrary media container into a normalized mono
// 16 kHz sample buffer suitable for transcription.
type Preprocessor struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
	probe   probeFunc
	run     outputRunner
}

// NewPreprocessor constructs an audio preprocessor using the given binaries.
func NewPreprocessor(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Preprocessor {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Preprocessor{
		ffmpeg:  ffmpegBinary,
		ffprobe: ffprobeBinary,
		logger:  logging.NewComponentLogger(logger, "audio"),
		probe:   ffprobe.Inspect,
		run:     defaultOutputRunner,
	}
}

// WithProbe injects a custom ffprobe implementation for tests.
func (p *Preprocessor) WithProbe(fn probeFunc) {
	if p != nil && fn != nil {
		p.probe = fn
	}
}

// WithCommandRunner injects a custom decode command runner for tests.
func (p *Preprocessor) WithCommandRunner(fn outputRunner) {
	if p != nil && fn != nil {
		p.run = fn
	}
}

// Process decodes the media file at path into a normalized sample buffer.
// The steps are: probe, decode to PCM, downmix to mono, resample to 16 kHz,
// peak-normalize. Silent audio is rejected rather than divided by zero.
func (p *Preprocessor) Process(ctx context.Context, path string) (Buffer, error) {
	info, err := p.probe(ctx, p.ffprobe, path)
	if err != nil {
		return Buffer{}, services.Wrap(services.ErrDecode, "audio", "probe", "unreadable media", err)
	}
	stream, ok := info.PrimaryAudio()
	if !ok {
		return Buffer{}, services.Wrap(services.ErrDecode, "audio", "probe", "no audio stream", nil)
	}
	channels := stream.Channels
	if channels <= 0 {
		channels = 1
	}
	srcRate := stream.SampleRateHz()
	if srcRate <= 0 {
		return Buffer{}, services.Wrap(services.ErrDecode, "audio", "probe", "unknown sample rate", nil)
	}

	raw, err := p.run(ctx, p.ffmpeg, decodeArgs(path, srcRate, channels)...)
	if err != nil {
		return Buffer{}, services.Wrap(services.ErrDecode, "audio", "decode", "pcm decode failed", err)
	}

	samples := decodePCM16(raw)
	if len(samples) == 0 {
		return Buffer{}, services.Wrap(services.ErrDecode, "audio", "decode", "empty audio stream", nil)
	}

	mono := DownmixInterleaved(samples, channels)
	mono, err = resampleMono(mono, srcRate, TargetSampleRate)
	if err != nil {
		return Buffer{}, services.Wrap(services.ErrDecode, "audio", "resample", "sample rate conversion failed", err)
	}

	if err := Normalize(mono); err != nil {
		return Buffer{}, err
	}

	if p.logger != nil {
		p.logger.Debug("audio preprocessed",
			logging.Int("source_rate", srcRate),
			logging.Int("source_channels", channels),
			logging.Int("samples", len(mono)),
		)
	}
	return Buffer{Samples: mono, SampleRate: TargetSampleRate}, nil
}

// decodeArgs builds the ffmpeg invocation that decodes to raw interleaved
// 16-bit little-endian PCM at the source rate and channel layout.
func decodeArgs(path string, rate, channels int) []string {
	return []string{
		"-v", "error",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	}
}

// decodePCM16 converts little-endian int16 bytes to float64 in [-1, 1].
// A trailing odd byte is dropped.
func decodePCM16(raw []byte) []float64 {
	n := len(raw) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sample := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		out[i] = float64(sample) / 32768.0
	}
	return out
}

// DownmixInterleaved averages interleaved channel frames into mono.
func DownmixInterleaved(samples []float64, channels int) []float64 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// Normalize scales samples in place so the peak absolute value is 1.0.
// An all-zero buffer is rejected as silent/invalid audio.
func Normalize(samples []float64) error {
	var peak float64
	for _, s := range samples {
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	if peak == 0 {
		return services.Wrap(services.ErrDecode, "audio", "normalize", "silent or invalid audio", nil)
	}
	for i := range samples {
		samples[i] /= peak
	}
	return nil
}

func resampleMono(samples []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate == dstRate || len(samples) == 0 {
		return samples, nil
	}
	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	out, err := resampler.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	return out, nil
}

func defaultOutputRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
