package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the coarse class of a failed call.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	ValidationError
	Conflict
	NotFound
	Unauthorized
	NetworkError
)

func (k ErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation_error"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// APIError is a decoded error envelope, or a transport failure when Status is 0.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details any

	err error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("network error: %s", e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.err }

// Kind classifies the error for callers that react per class.
func (e *APIError) Kind() ErrorKind {
	switch {
	case e.Status == 0:
		return NetworkError
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		return ValidationError
	case e.Status == http.StatusConflict:
		return Conflict
	case e.Status == http.StatusNotFound:
		return NotFound
	case e.Status == http.StatusUnauthorized:
		return Unauthorized
	default:
		return Unknown
	}
}

// KindOf returns the kind of the first *APIError in err's chain.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	return Unknown
}

func conflictError(animeID int64) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: fmt.Sprintf("Anime with ID %d is already in your watchlist", animeID),
		Details: map[string]any{"anime_id": animeID},
	}
}
