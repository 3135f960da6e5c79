// Package errors provides the typed errors Glow maps onto API responses
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// GlowError is an error that knows its HTTP status and API error code
type GlowError interface {
	error
	HTTPStatus() int
	Code() string
}

// BaseError carries the message, status and code shared by every GlowError
type BaseError struct {
	Message    string
	StatusCode int
	ErrorCode  string
}

func (e *BaseError) Error() string   { return e.Message }
func (e *BaseError) HTTPStatus() int { return e.StatusCode }
func (e *BaseError) Code() string    { return e.ErrorCode }

// NotFoundError is an unknown module, portal or API version
type NotFoundError struct {
	BaseError
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s not found", resource),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NOT_FOUND",
		},
		Resource: resource,
	}
}

// ValidationError is a rejected input: a request parameter, a schema field or
// a config setting. Field names the offending key.
type ValidationError struct {
	BaseError
	Field string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "VALIDATION_ERROR",
		},
		Field: field,
	}
}

// ConfigError is a schema that cannot be used, such as modules whose
// reference fields form a cycle. It is not recoverable at runtime.
type ConfigError struct {
	BaseError
	Modules []string
}

func NewConfigError(message string, modules ...string) *ConfigError {
	return &ConfigError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  "CONFIG_ERROR",
		},
		Modules: modules,
	}
}

// IsNotFound reports whether err wraps a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

// IsConfig reports whether err wraps a ConfigError
func IsConfig(err error) bool {
	var ce *ConfigError
	return stderrors.As(err, &ce)
}

// ToHTTPError converts any error to a status and a JSON body of the form
// {"error": code, "message": text[, "field": key]}.
func ToHTTPError(err error) (int, map[string]any) {
	if err == nil {
		return http.StatusOK, nil
	}

	var ge GlowError
	if !stderrors.As(err, &ge) {
		return http.StatusInternalServerError, map[string]any{
			"error":   "INTERNAL_ERROR",
			"message": "internal server error",
		}
	}

	status := ge.HTTPStatus()
	body := map[string]any{"error": ge.Code(), "message": ge.Error()}
	if status >= http.StatusInternalServerError {
		// Schema details stay in the logs.
		body["message"] = http.StatusText(status)
	}
	var ve *ValidationError
	if stderrors.As(err, &ve) && ve.Field != "" {
		body["field"] = ve.Field
	}
	return status, body
}
