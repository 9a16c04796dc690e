package subtitles

import (
	"strings"
	"testing"

	"subburn/internal/transcribe"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{61.5, "00:01:01,500"},
		{1.5, "00:00:01,500"},
		{3600, "01:00:00,000"},
		{3661.25, "01:01:01,250"},
		{359999.999, "99:59:59,999"},
		{-1, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.seconds); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatTimestampMonotonic(t *testing.T) {
	// Within a 24 hour range, later times format to lexicographically
	// greater-or-equal strings.
	times := []float64{0, 0.001, 0.5, 1, 59.999, 60, 61.5, 3599, 3600, 43200, 86399}
	for i := 1; i < len(times); i++ {
		a := FormatTimestamp(times[i-1])
		b := FormatTimestamp(times[i])
		if a > b {
			t.Errorf("FormatTimestamp not monotonic: %v→%q vs %v→%q", times[i-1], a, times[i], b)
		}
	}
}

func TestBuildCuesSequentialIndices(t *testing.T) {
	words := []transcribe.Word{
		{Text: "one", Start: 0, End: 0.4},
		{Text: "two", Start: 0.5, End: 0.9},
		{Text: "three", Start: 1.0, End: 1.4},
	}
	cues := BuildCues(words)
	if len(cues) != len(words) {
		t.Fatalf("cues = %d, want %d", len(cues), len(words))
	}
	for i, cue := range cues {
		if cue.Index != i+1 {
			t.Errorf("cue[%d].Index = %d, want %d", i, cue.Index, i+1)
		}
		if cue.Text != words[i].Text {
			t.Errorf("cue[%d].Text = %q, want %q (no reordering)", i, cue.Text, words[i].Text)
		}
	}
}

func TestBuildSRTGolden(t *testing.T) {
	cues := BuildCues([]transcribe.Word{
		{Text: "Hello", Start: 0, End: 0.5},
		{Text: "world", Start: 61.5, End: 62},
	})
	want := "1\n" +
		"00:00:00,000 --> 00:00:00,500\n" +
		"Hello\n" +
		"\n" +
		"2\n" +
		"00:01:01,500 --> 00:01:02,000\n" +
		"world\n" +
		"\n"
	if got := BuildSRT(cues); got != want {
		t.Errorf("BuildSRT mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func TestBuildSRTDeterministic(t *testing.T) {
	cues := BuildCues([]transcribe.Word{{Text: "a", Start: 0.123456, End: 0.999999}})
	first := BuildSRT(cues)
	second := BuildSRT(cues)
	if first != second {
		t.Fatal("BuildSRT must be byte-identical across calls")
	}
}

func TestBuildSRTEmpty(t *testing.T) {
	if got := BuildSRT(nil); got != "" {
		t.Errorf("empty input should produce empty document, got %q", got)
	}
	if cues := BuildCues(nil); len(cues) != 0 {
		t.Errorf("BuildCues(nil) = %d cues", len(cues))
	}
}

func TestBuildSRTCueCount(t *testing.T) {
	words := make([]transcribe.Word, 25)
	for i := range words {
		words[i] = transcribe.Word{Text: "w", Start: float64(i), End: float64(i) + 0.5}
	}
	doc := BuildSRT(BuildCues(words))
	blocks := strings.Split(strings.TrimSpace(doc), "\n\n")
	if len(blocks) != len(words) {
		t.Errorf("blocks = %d, want %d", len(blocks), len(words))
	}
}
