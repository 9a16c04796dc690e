// Package workspace manages per-request scratch directories under the
// configured staging root. Each incoming request gets its own directory so
// concurrent requests never share intermediate files.
package workspace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"subburn/internal/logging"
)

// Workspace is the set of paths dedicated to a single request.
type Workspace struct {
	ID   string
	Root string

	logger *slog.Logger
}

// Manager creates and reaps request workspaces under a staging root.
type Manager struct {
	stagingDir string
	logger     *slog.Logger
}

// NewManager returns a Manager rooted at stagingDir.
func NewManager(stagingDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{stagingDir: strings.TrimSpace(stagingDir), logger: logger}
}

// Create allocates a fresh workspace directory named after a random request ID.
func (m *Manager) Create() (*Workspace, error) {
	if m.stagingDir == "" {
		return nil, fmt.Errorf("workspace: staging directory not configured")
	}
	id := uuid.NewString()
	root := filepath.Join(m.stagingDir, id)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create %s: %w", root, err)
	}
	return &Workspace{ID: id, Root: root, logger: m.logger}, nil
}

// InputPath returns the location for the uploaded video. The original
// extension is preserved so ffmpeg can sniff the container.
func (w *Workspace) InputPath(originalName string) string {
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(w.Root, "input"+ext)
}

// CaptionPath returns the location of the generated SRT file.
func (w *Workspace) CaptionPath() string {
	return filepath.Join(w.Root, "captions.srt")
}

// OutputPath returns the location of the rendered video.
func (w *Workspace) OutputPath(originalName string) string {
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(w.Root, "output"+ext)
}

// TranscribeDir returns the scratch directory for transcription artifacts.
func (w *Workspace) TranscribeDir() string {
	return filepath.Join(w.Root, "transcribe")
}

// SaveInput streams r to the input path for originalName and returns the
// number of bytes written alongside the destination path.
func (w *Workspace) SaveInput(originalName string, r io.Reader) (string, int64, error) {
	dest := w.InputPath(originalName)
	f, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("workspace: create input file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return "", n, fmt.Errorf("workspace: write input file: %w", err)
	}
	return dest, n, nil
}

// Cleanup removes the workspace directory tree. Failures are logged and
// swallowed so cleanup never masks the request outcome; the stale sweep
// picks up anything left behind.
func (w *Workspace) Cleanup() {
	if w == nil || w.Root == "" {
		return
	}
	if err := os.RemoveAll(w.Root); err != nil {
		w.logger.Warn("failed to remove request workspace",
			logging.String("path", w.Root),
			logging.Error(err),
			logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
		)
		return
	}
	w.logger.Debug("removed request workspace",
		logging.String("path", w.Root),
		logging.String(logging.FieldEventType, "workspace_cleanup"),
	)
}
