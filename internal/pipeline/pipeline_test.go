package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"subburn/internal/history"
	"subburn/internal/media/audio"
	"subburn/internal/render"
	"subburn/internal/services"
	"subburn/internal/subtitles"
	"subburn/internal/transcribe"
	"subburn/internal/workspace"
)

type fakeProcessor struct {
	buf audio.Buffer
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, path string) (audio.Buffer, error) {
	if f.err != nil {
		return audio.Buffer{}, f.err
	}
	return f.buf, nil
}

type fakeEngine struct {
	words []transcribe.Word
	err   error
}

func (f *fakeEngine) Transcribe(ctx context.Context, buf audio.Buffer, workDir string) ([]transcribe.Word, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.words, nil
}

type fakeRenderer struct {
	err  error
	last render.Request
}

func (f *fakeRenderer) Render(ctx context.Context, req render.Request) error {
	f.last = req
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(req.OutputPath, []byte("rendered"), 0o644)
}

type fakeRecorder struct {
	states      []history.State
	failedMsg   string
	cueCount    int
	durationSec float64
}

func (f *fakeRecorder) SetState(ctx context.Context, id string, state history.State) error {
	f.states = append(f.states, state)
	return nil
}

func (f *fakeRecorder) SetTranscript(ctx context.Context, id string, cueCount int, durationSeconds float64) error {
	f.cueCount = cueCount
	f.durationSec = durationSeconds
	return nil
}

func (f *fakeRecorder) MarkFailed(ctx context.Context, id, message string) error {
	f.failedMsg = message
	f.states = append(f.states, history.StateFailed)
	return nil
}

func newWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	mgr := workspace.NewManager(t.TempDir(), nil)
	ws, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create workspace: %v", err)
	}
	return ws
}

func saveInput(t *testing.T, ws *workspace.Workspace, name string) {
	t.Helper()
	if _, _, err := ws.SaveInput(name, strings.NewReader("video bytes")); err != nil {
		t.Fatalf("SaveInput: %v", err)
	}
}

func sampleBuffer() audio.Buffer {
	return audio.Buffer{Samples: make([]float64, 32000), SampleRate: 16000}
}

func TestRunHappyPath(t *testing.T) {
	ws := newWorkspace(t)
	saveInput(t, ws, "movie.mp4")
	recorder := &fakeRecorder{}
	renderer := &fakeRenderer{}
	p := New(
		&fakeProcessor{buf: sampleBuffer()},
		&fakeEngine{words: []transcribe.Word{
			{Text: "hello", Start: 0.0, End: 0.5},
			{Text: "world", Start: 0.5, End: 1.1},
		}},
		renderer,
		recorder,
		nil,
	)

	result, err := p.Run(t.Context(), ws, "movie.mp4", subtitles.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Burned || result.CueCount != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.DurationSeconds != 2.0 {
		t.Fatalf("duration = %v, want 2.0", result.DurationSeconds)
	}

	want := []history.State{
		history.StateAudioExtracted,
		history.StateTranscribed,
		history.StateCaptionsWritten,
		history.StateVideoSaved,
		history.StateRendered,
	}
	if len(recorder.states) != len(want) {
		t.Fatalf("states = %v", recorder.states)
	}
	for i, state := range want {
		if recorder.states[i] != state {
			t.Fatalf("states[%d] = %s, want %s", i, recorder.states[i], state)
		}
	}
	if recorder.cueCount != 2 {
		t.Fatalf("recorded cue count = %d", recorder.cueCount)
	}

	srt, err := os.ReadFile(ws.CaptionPath())
	if err != nil {
		t.Fatalf("reading captions: %v", err)
	}
	if !strings.Contains(string(srt), "hello") || !strings.Contains(string(srt), "-->") {
		t.Fatalf("unexpected SRT:\n%s", srt)
	}
	if !renderer.last.BurnCaptions {
		t.Fatal("render request should burn captions")
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestRunEmptyTranscriptCopiesVideo(t *testing.T) {
	ws := newWorkspace(t)
	saveInput(t, ws, "silent.mp4")
	renderer := &fakeRenderer{}
	p := New(&fakeProcessor{buf: sampleBuffer()}, &fakeEngine{}, renderer, nil, nil)

	result, err := p.Run(t.Context(), ws, "silent.mp4", subtitles.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Burned || result.CueCount != 0 {
		t.Fatalf("result = %+v", result)
	}
	if renderer.last.BurnCaptions {
		t.Fatal("empty transcript must not burn captions")
	}

	srt, err := os.ReadFile(ws.CaptionPath())
	if err != nil {
		t.Fatalf("caption file should still exist: %v", err)
	}
	if len(srt) != 0 {
		t.Fatalf("expected empty SRT, got %q", srt)
	}
}

func TestRunDecodeFailureMarksFailed(t *testing.T) {
	ws := newWorkspace(t)
	recorder := &fakeRecorder{}
	decodeErr := services.Wrap(services.ErrDecode, "audio", "probe", "no audio stream", nil)
	p := New(&fakeProcessor{err: decodeErr}, &fakeEngine{}, &fakeRenderer{}, recorder, nil)

	_, err := p.Run(t.Context(), ws, "broken.mp4", subtitles.Options{})
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	if recorder.failedMsg == "" || !strings.Contains(recorder.failedMsg, "no audio stream") {
		t.Fatalf("failure message = %q", recorder.failedMsg)
	}
	if len(recorder.states) != 1 || recorder.states[0] != history.StateFailed {
		t.Fatalf("states = %v", recorder.states)
	}
}

func TestRunTranscriptionFailure(t *testing.T) {
	ws := newWorkspace(t)
	recorder := &fakeRecorder{}
	engineErr := services.Wrap(services.ErrTranscription, "transcribe", "run", "whisperx exited 1", nil)
	p := New(&fakeProcessor{buf: sampleBuffer()}, &fakeEngine{err: engineErr}, &fakeRenderer{}, recorder, nil)

	_, err := p.Run(t.Context(), ws, "talk.mp4", subtitles.Options{})
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
	if recorder.states[len(recorder.states)-1] != history.StateFailed {
		t.Fatalf("states = %v", recorder.states)
	}
}

func TestRunMissingInputFailsBeforeRender(t *testing.T) {
	ws := newWorkspace(t)
	recorder := &fakeRecorder{}
	renderer := &fakeRenderer{}
	p := New(
		&fakeProcessor{buf: sampleBuffer()},
		&fakeEngine{words: []transcribe.Word{{Text: "x", Start: 0, End: 1}}},
		renderer,
		recorder,
		nil,
	)

	_, err := p.Run(t.Context(), ws, "gone.mp4", subtitles.Options{})
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("err = %v, want ErrRender", err)
	}
	for _, state := range recorder.states {
		if state == history.StateVideoSaved || state == history.StateRendered {
			t.Fatalf("unexpected state %s for missing input", state)
		}
	}
	if renderer.last.VideoPath != "" {
		t.Fatal("renderer ran without a staged video")
	}
}

func TestRunRenderFailure(t *testing.T) {
	ws := newWorkspace(t)
	saveInput(t, ws, "movie.mp4")
	renderErr := services.Wrap(services.ErrRender, "render", "run", "ffmpeg exited 1", nil)
	p := New(
		&fakeProcessor{buf: sampleBuffer()},
		&fakeEngine{words: []transcribe.Word{{Text: "x", Start: 0, End: 1}}},
		&fakeRenderer{err: renderErr},
		nil,
		nil,
	)

	_, err := p.Run(t.Context(), ws, "movie.mp4", subtitles.Options{})
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("err = %v, want ErrRender", err)
	}
}

func TestRunInvalidStyleRejectedBeforeWork(t *testing.T) {
	ws := newWorkspace(t)
	processor := &fakeProcessor{err: errors.New("processor should not run")}
	p := New(processor, &fakeEngine{}, &fakeRenderer{}, nil, nil)

	_, err := p.Run(t.Context(), ws, "movie.mp4", subtitles.Options{PrimaryColor: "not-a-color"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
