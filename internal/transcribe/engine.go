// Package transcribe wraps the external speech recognition engine behind a
// small interface so the pipeline can swap or mock it.
package transcribe

import (
	"context"

	"subburn/internal/media/audio"
)

// Word is a single transcribed word with timing in seconds.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Engine produces word-level timestamps from a normalized sample buffer.
// Implementations must be safe for concurrent use; workDir is request-scoped
// scratch space for any intermediate files.
type Engine interface {
	Transcribe(ctx context.Context, buf audio.Buffer, workDir string) ([]Word, error)
}
