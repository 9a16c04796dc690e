// Package subtitles synthesizes SRT caption files from word timestamps and
// resolves burn-in styling for the renderer.
package subtitles

import (
	"fmt"
	"math"
	"strings"

	"subburn/internal/transcribe"
)

// Cue is one subtitle entry: a 1-based index, a time range, and display text.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// BuildCues converts ordered word timestamps into sequential cues, one per
// word, preserving input order. Timestamps are assumed monotonic; they are
// not re-sorted (matching the transcription engine's contract).
func BuildCues(words []transcribe.Word) []Cue {
	cues := make([]Cue, 0, len(words))
	for i, w := range words {
		cues = append(cues, Cue{
			Index: i + 1,
			Start: w.Start,
			End:   w.End,
			Text:  w.Text,
		})
	}
	return cues
}

// BuildSRT renders cues as an SRT document. The output is deterministic:
// identical input produces byte-identical output.
func BuildSRT(cues []Cue) string {
	var b strings.Builder
	for _, cue := range cues {
		fmt.Fprintf(&b, "%d\n", cue.Index)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTimestamp(cue.Start), FormatTimestamp(cue.End))
		b.WriteString(cue.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// FormatTimestamp converts seconds to the SRT timestamp form HH:MM:SS,mmm.
// Milliseconds are the floored fractional part; hours are not capped.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(math.Floor(seconds))
	millis := int(math.Floor((seconds - float64(whole)) * 1000))
	secs := whole % 60
	minutes := (whole / 60) % 60
	hours := whole / 3600
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
