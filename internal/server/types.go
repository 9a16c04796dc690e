package server

import "time"

type statusResponse struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	StagingDir    string             `json:"staging_dir"`
	HistoryDBPath string             `json:"history_db_path,omitempty"`
	Dependencies  []dependencyStatus `json:"dependencies"`
}

type dependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type requestView struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	State           string    `json:"state"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CueCount        int       `json:"cue_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type requestListResponse struct {
	Requests []requestView `json:"requests"`
}

type requestItemResponse struct {
	Request requestView `json:"request"`
}
