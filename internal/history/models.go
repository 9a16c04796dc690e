// Package history persists per-request metadata in SQLite. Only metadata is
// stored; uploaded and rendered files never touch the database.
package history

import "time"

// State represents the lifecycle of a subtitle request.
type State string

const (
	StateCreated         State = "created"
	StateAudioExtracted  State = "audio_extracted"
	StateTranscribed     State = "transcribed"
	StateCaptionsWritten State = "captions_written"
	StateVideoSaved      State = "video_saved"
	StateRendered        State = "rendered"
	StateStreaming       State = "streaming"
	StateCleaned         State = "cleaned"
	StateFailed          State = "failed"
)

var allStates = []State{
	StateCreated,
	StateAudioExtracted,
	StateTranscribed,
	StateCaptionsWritten,
	StateVideoSaved,
	StateRendered,
	StateStreaming,
	StateCleaned,
	StateFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// Valid reports whether the state is one of the known lifecycle states.
func (s State) Valid() bool {
	_, ok := stateSet[s]
	return ok
}

// Terminal reports whether the state ends the request lifecycle.
func (s State) Terminal() bool {
	return s == StateCleaned || s == StateFailed
}

// Record is one request's history row.
type Record struct {
	ID              string
	Filename        string
	State           State
	ErrorMessage    string
	CueCount        int
	DurationSeconds float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
