package documents

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrUnsupportedMedia = errors.New("only PDF files are accepted")
	ErrInvalid          = errors.New("invalid document fields")
	ErrEmptyPayload     = errors.New("empty file")
)

// MapHTTPStatus converts domain errors to HTTP status codes at the boundary.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrEmptyPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
