package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"subburn/internal/media/ffprobe"
	"subburn/internal/services"
)

func fakeProbe(channels int, sampleRate string) probeFunc {
	return func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{
			{CodecType: "video"},
			{CodecType: "audio", Channels: channels, SampleRate: sampleRate},
		}}, nil
	}
}

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func newTestPreprocessor(probe probeFunc, raw []byte) *Preprocessor {
	p := NewPreprocessor("ffmpeg", "ffprobe", nil)
	p.WithProbe(probe)
	p.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return raw, nil
	})
	return p
}

func TestProcessDownmixesAndNormalizes(t *testing.T) {
	// Two interleaved stereo frames at the target rate: no resampling.
	raw := pcmBytes([]int16{8000, 16000, -4000, -8000})
	p := newTestPreprocessor(fakeProbe(2, "16000"), raw)

	buf, err := p.Process(t.Context(), "in.mp4")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if buf.SampleRate != TargetSampleRate {
		t.Errorf("sample rate = %d, want %d", buf.SampleRate, TargetSampleRate)
	}
	if len(buf.Samples) != 2 {
		t.Fatalf("samples = %d, want 2 mono frames", len(buf.Samples))
	}

	var peak float64
	for _, s := range buf.Samples {
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	if math.Abs(peak-1.0) > 1e-9 {
		t.Errorf("peak = %v, want 1.0", peak)
	}
	// Frame 0 averages to +12000, frame 1 to -6000: sign order preserved.
	if buf.Samples[0] <= 0 || buf.Samples[1] >= 0 {
		t.Errorf("downmix sign order wrong: %v", buf.Samples)
	}
}

func TestProcessSilentInputFailsWithDecodeError(t *testing.T) {
	raw := pcmBytes([]int16{0, 0, 0, 0})
	p := newTestPreprocessor(fakeProbe(1, "16000"), raw)

	_, err := p.Process(t.Context(), "in.mp4")
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode for silent input, got %v", err)
	}
	if !strings.Contains(err.Error(), "silent") {
		t.Errorf("error should mention silence: %v", err)
	}
}

func TestProcessNoAudioStream(t *testing.T) {
	p := newTestPreprocessor(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}}, nil
	}, nil)

	_, err := p.Process(t.Context(), "in.mp4")
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestProcessProbeFailure(t *testing.T) {
	p := newTestPreprocessor(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("boom")
	}, nil)

	_, err := p.Process(t.Context(), "in.mp4")
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestProcessResamples(t *testing.T) {
	// One second of a 440 Hz-ish ramp at 32 kHz mono should come out near
	// 16k samples after resampling.
	const srcRate = 32000
	src := make([]int16, srcRate)
	for i := range src {
		src[i] = int16(10000 * math.Sin(2*math.Pi*440*float64(i)/srcRate))
	}
	p := newTestPreprocessor(fakeProbe(1, "32000"), pcmBytes(src))

	buf, err := p.Process(t.Context(), "in.mp4")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := len(buf.Samples)
	if got < TargetSampleRate*9/10 || got > TargetSampleRate*11/10 {
		t.Errorf("resampled length = %d, want ≈%d", got, TargetSampleRate)
	}
}

func TestDownmixInterleaved(t *testing.T) {
	in := []float64{1, 0, 0.5, -0.5, -1, 1}
	out := DownmixInterleaved(in, 2)
	want := []float64{0.5, 0, 0}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestDownmixMonoPassthrough(t *testing.T) {
	in := []float64{0.25, -0.75}
	out := DownmixInterleaved(in, 1)
	if &out[0] != &in[0] {
		t.Error("mono input should be returned unchanged")
	}
}

func TestNormalizeSilence(t *testing.T) {
	err := Normalize(make([]float64, 16))
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestBufferDuration(t *testing.T) {
	buf := Buffer{Samples: make([]float64, TargetSampleRate*3), SampleRate: TargetSampleRate}
	if got := buf.Duration(); got != 3 {
		t.Errorf("duration = %v, want 3", got)
	}
	if got := (Buffer{}).Duration(); got != 0 {
		t.Errorf("empty duration = %v, want 0", got)
	}
}
