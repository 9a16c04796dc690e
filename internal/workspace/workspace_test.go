package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateAllocatesDisjointDirectories(t *testing.T) {
	staging := t.TempDir()
	mgr := NewManager(staging, nil)

	seen := map[string]struct{}{}
	for i := 0; i < 20; i++ {
		ws, err := mgr.Create()
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, dup := seen[ws.Root]; dup {
			t.Fatalf("duplicate workspace root %s", ws.Root)
		}
		seen[ws.Root] = struct{}{}
		if info, err := os.Stat(ws.Root); err != nil || !info.IsDir() {
			t.Fatalf("workspace root missing: %v", err)
		}
		if filepath.Dir(ws.Root) != staging {
			t.Fatalf("workspace %s not under staging root", ws.Root)
		}
	}
}

func TestWorkspacePathsPreserveExtension(t *testing.T) {
	ws := &Workspace{ID: "abc", Root: "/tmp/staging/abc"}

	if got := ws.InputPath("movie.mkv"); got != "/tmp/staging/abc/input.mkv" {
		t.Fatalf("InputPath = %s", got)
	}
	if got := ws.OutputPath("clip.mov"); got != "/tmp/staging/abc/output.mov" {
		t.Fatalf("OutputPath = %s", got)
	}
	if got := ws.InputPath("noext"); got != "/tmp/staging/abc/input.mp4" {
		t.Fatalf("InputPath fallback = %s", got)
	}
	if got := ws.CaptionPath(); got != "/tmp/staging/abc/captions.srt" {
		t.Fatalf("CaptionPath = %s", got)
	}
}

func TestSaveInputStreamsContent(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	ws, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	payload := strings.Repeat("frame", 1024)
	dest, n, err := ws.SaveInput("video.mp4", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("SaveInput: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("wrote %d bytes, want %d", n, len(payload))
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading saved input: %v", err)
	}
	if string(data) != payload {
		t.Fatal("saved input does not match upload")
	}
}

func TestCleanupRemovesTree(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	ws, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.MkdirAll(ws.TranscribeDir(), 0o755); err != nil {
		t.Fatalf("mkdir transcribe: %v", err)
	}
	if err := os.WriteFile(ws.CaptionPath(), []byte("1\n"), 0o644); err != nil {
		t.Fatalf("write caption: %v", err)
	}

	ws.Cleanup()

	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Fatalf("workspace root still present: %v", err)
	}
}

func TestCleanStaleRemovesOldDirectories(t *testing.T) {
	staging := t.TempDir()

	oldDir := filepath.Join(staging, "old-request")
	if err := os.MkdirAll(oldDir, 0o755); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatal(err)
	}

	freshDir := filepath.Join(staging, "fresh-request")
	if err := os.MkdirAll(freshDir, 0o755); err != nil {
		t.Fatal(err)
	}

	looseFile := filepath.Join(staging, "notes.txt")
	if err := os.WriteFile(looseFile, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(looseFile, past, past); err != nil {
		t.Fatal(err)
	}

	result := CleanStale(t.Context(), staging, 24*time.Hour, nil)

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("removed = %v, want [%s]", result.Removed, oldDir)
	}
	if _, err := os.Stat(freshDir); err != nil {
		t.Fatalf("fresh directory removed: %v", err)
	}
	if _, err := os.Stat(looseFile); err != nil {
		t.Fatalf("loose file removed: %v", err)
	}
}

func TestCleanStaleMissingRoot(t *testing.T) {
	result := CleanStale(t.Context(), filepath.Join(t.TempDir(), "nope"), time.Hour, nil)
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
