// Package utils provides shared helpers for the OtakuShelf API: structured
// errors, response envelopes, validation and request parsing.
package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Machine-readable error codes carried in every error payload.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// CustomError represents a structured error for the web app.
type CustomError struct {
	Code      int    `json:"-"`
	ErrorCode string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`

	cause error
}

// NewError creates a new Error with a status code, message, and optional details.
func NewError(code int, message string, details ...any) *CustomError {
	e := &CustomError{
		Code:      code,
		ErrorCode: codeForStatus(code),
		Message:   message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("status %d: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *CustomError) Unwrap() error {
	return e.cause
}

// WithDetails replaces the details payload.
func (e *CustomError) WithDetails(details any) *CustomError {
	e.Details = details
	return e
}

// WrapError wraps an existing error with a custom status and message.
func WrapError(err error, code int, message string) *CustomError {
	e := NewError(code, message)
	if err != nil {
		e.Details = err.Error()
		e.cause = err
	}
	return e
}

// NewValidationError reports malformed or out-of-range input on a single field.
func NewValidationError(message, field string) *CustomError {
	return NewError(fiber.StatusUnprocessableEntity, message, fiber.Map{"field": field})
}

// NewConflictError reports a duplicate resource.
func NewConflictError(message string, details fiber.Map) *CustomError {
	return NewError(fiber.StatusConflict, message, details)
}

// NewNotFoundError reports a missing resource, or one owned by somebody else.
func NewNotFoundError(resource string, id any) *CustomError {
	msg := resource + " not found"
	if id != nil {
		msg = fmt.Sprintf("%s with ID: %v", msg, id)
	}
	return NewError(fiber.StatusNotFound, msg, fiber.Map{"resource": resource, "resource_id": id})
}

// NewUnauthorizedError reports a missing, invalid or expired session.
func NewUnauthorizedError(message string) *CustomError {
	return NewError(fiber.StatusUnauthorized, message)
}

// NewForbiddenError reports an authenticated caller that may not proceed.
func NewForbiddenError(message string) *CustomError {
	return NewError(fiber.StatusForbidden, message)
}

// NewInternalError hides err behind a generic message.
func NewInternalError(message string, err error) *CustomError {
	return WrapError(err, fiber.StatusInternalServerError, message)
}

// AsCustomError unwraps err into a *CustomError when there is one in the chain.
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	ce, ok := AsCustomError(err)
	return ok && ce.Code == status
}

// ErrorHandler renders every error returned from a handler as
// {"success": false, "error": {...}}. In production 5xx details are dropped.
func ErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if ce, ok := AsCustomError(err); ok {
			body := *ce
			if production && body.Code >= fiber.StatusInternalServerError {
				body.Details = nil
			}
			return c.Status(body.Code).JSON(fiber.Map{
				"success": false,
				"error":   body,
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"code":    codeForStatus(fe.Code),
					"message": fe.Message,
				},
			})
		}

		message := "Internal server error"
		if !production {
			message = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error": fiber.Map{
				"code":    CodeInternal,
				"message": message,
			},
		})
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return CodeBadRequest
	case fiber.StatusUnprocessableEntity:
		return CodeValidation
	case fiber.StatusUnauthorized:
		return CodeUnauthorized
	case fiber.StatusForbidden:
		return CodeForbidden
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusConflict:
		return CodeConflict
	case fiber.StatusTooManyRequests:
		return CodeRateLimited
	case fiber.StatusServiceUnavailable, fiber.StatusBadGateway:
		return CodeServiceUnavailable
	default:
		if status >= fiber.StatusInternalServerError {
			return CodeInternal
		}
		return CodeBadRequest
	}
}
