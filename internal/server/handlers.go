package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"subburn/internal/history"
	"subburn/internal/logging"
	"subburn/internal/services"
	"subburn/internal/subtitles"
)

// multipartMemoryLimit bounds how much of the form is buffered in memory;
// the video part spills to a temp file beyond this.
const multipartMemoryLimit = 32 << 20

func (s *Server) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if limit := s.cfg.MaxUploadBytes(); limit > 0 {
		if r.ContentLength > limit {
			s.rejectTooLarge(w, nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.rejectTooLarge(w, err)
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	originalName := filepath.Base(strings.TrimSpace(header.Filename))
	if originalName == "" || originalName == "." || originalName == string(filepath.Separator) {
		originalName = "upload.mp4"
	}

	style, err := styleFromForm(r)
	if err != nil {
		s.writeError(w, services.HTTPStatus(err), err.Error())
		return
	}

	ws, err := s.manager.Create()
	if err != nil {
		s.log().Error("failed to create workspace", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to allocate workspace")
		return
	}
	// Cleanup runs after the response body has been fully streamed; the
	// cleaned state is recorded once the directory is gone.
	defer s.markCleaned(r, ws.ID)
	defer ws.Cleanup()

	ctx := services.WithRequestID(r.Context(), ws.ID)
	log := s.log().With(logging.String(logging.FieldRequestID, ws.ID))

	if s.store != nil {
		if _, err := s.store.NewRequest(ctx, ws.ID, originalName); err != nil {
			log.Warn("failed to record request", logging.Error(err))
		}
	}

	_, size, err := ws.SaveInput(originalName, file)
	if err != nil {
		log.Error("failed to save upload", logging.Error(err))
		s.markFailed(r, ws.ID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}
	log.Info("upload saved",
		logging.String("filename", originalName),
		logging.Int64("bytes", size),
	)

	result, err := s.pipeline.Run(ctx, ws, originalName, style)
	if err != nil {
		s.writeError(w, services.HTTPStatus(err), err.Error())
		return
	}

	s.setState(r, ws.ID, history.StateStreaming)
	s.streamOutput(w, result.OutputPath, originalName, header.Header.Get("Content-Type"), log)
}

func (s *Server) streamOutput(w http.ResponseWriter, outputPath, originalName, contentType string, log *slog.Logger) {
	f, err := os.Open(outputPath)
	if err != nil {
		log.Error("rendered output unreadable", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "rendered output unreadable")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Error("rendered output unreadable", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "rendered output unreadable")
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", `attachment; filename="subtitled_`+sanitizeFilename(originalName)+`"`)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		// Client went away mid-stream; nothing left to send them.
		log.Info("response stream interrupted", logging.Error(err))
		return
	}
	log.Info("response streamed", logging.Int64("bytes", info.Size()))
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, requestListResponse{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]requestView, 0, len(records))
	for _, rec := range records {
		views = append(views, viewFromRecord(rec))
	}
	s.writeJSON(w, http.StatusOK, requestListResponse{Requests: views})
}

func (s *Server) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "request not found")
		return
	}
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "request not found")
		return
	}
	rec, err := s.store.GetByID(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "request not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, requestItemResponse{Request: viewFromRecord(rec)})
}

func viewFromRecord(rec *history.Record) requestView {
	return requestView{
		ID:              rec.ID,
		Filename:        rec.Filename,
		State:           string(rec.State),
		ErrorMessage:    rec.ErrorMessage,
		CueCount:        rec.CueCount,
		DurationSeconds: rec.DurationSeconds,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func (s *Server) rejectTooLarge(w http.ResponseWriter, cause error) {
	wrapped := services.Wrap(services.ErrTooLarge, "api-server", "upload",
		"upload exceeds the configured size limit", cause)
	s.writeError(w, services.HTTPStatus(wrapped), wrapped.Error())
}

// styleFromForm reads the optional style fields from the multipart form.
func styleFromForm(r *http.Request) (subtitles.Options, error) {
	opts := subtitles.Options{
		FontName:     r.FormValue("font"),
		PrimaryColor: r.FormValue("primary_color"),
		OutlineColor: r.FormValue("outline_color"),
		Alignment:    r.FormValue("alignment"),
	}
	if raw := strings.TrimSpace(r.FormValue("font_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return opts, services.Wrap(services.ErrValidation, "api-server", "style",
				"font_size must be a positive integer", err)
		}
		opts.FontSize = size
	}
	if raw := strings.TrimSpace(r.FormValue("bold")); raw != "" {
		bold, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, services.Wrap(services.ErrValidation, "api-server", "style",
				"bold must be a boolean", err)
		}
		opts.Bold = bold
	}
	return opts, nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer(`"`, "", "\\", "", "\r", "", "\n", "", ";", "")
	return replacer.Replace(name)
}

func (s *Server) setState(r *http.Request, id string, state history.State) {
	if s.store == nil {
		return
	}
	if err := s.store.SetState(r.Context(), id, state); err != nil {
		s.log().Warn("failed to record request state",
			logging.String(logging.FieldRequestID, id),
			logging.String("state", string(state)),
			logging.Error(err),
		)
	}
}

func (s *Server) markCleaned(r *http.Request, id string) {
	if s.store == nil {
		return
	}
	// The request context may already be canceled once the handler unwinds.
	ctx := context.WithoutCancel(r.Context())
	if err := s.store.MarkCleaned(ctx, id); err != nil && !errors.Is(err, history.ErrNotFound) {
		s.log().Warn("failed to record cleanup",
			logging.String(logging.FieldRequestID, id),
			logging.Error(err),
		)
	}
}

func (s *Server) markFailed(r *http.Request, id string, cause error) {
	if s.store == nil {
		return
	}
	if err := s.store.MarkFailed(r.Context(), id, cause.Error()); err != nil && !errors.Is(err, history.ErrNotFound) {
		s.log().Warn("failed to record request failure",
			logging.String(logging.FieldRequestID, id),
			logging.Error(err),
		)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
