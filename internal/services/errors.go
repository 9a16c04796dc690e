package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrDecode marks unreadable, silent, or otherwise invalid uploaded audio.
	ErrDecode = errors.New("decode error")
	// ErrTranscription marks a failure of the speech recognition engine.
	ErrTranscription = errors.New("transcription error")
	// ErrRender marks a non-zero exit from the external renderer.
	ErrRender = errors.New("render error")
	// ErrTooLarge marks an upload rejected by the size policy before any processing.
	ErrTooLarge = errors.New("upload too large")
	// ErrValidation marks malformed client input (bad color strings, missing file).
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable service configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a pipeline error to the response status the transport layer
// should return to the caller.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrDecode), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
