// Package http provides HTTP server and handler implementations.
//
// This file implements the builder for the JSON envelope every API
// response uses: {"data": ..., "notice": {"type": ..., "message": ...}}.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tesoreria/internal/core"
	"tesoreria/internal/export"
)

// NoticeType represents the type of notice to display.
type NoticeType string

const (
	NoticeSuccess NoticeType = "success"
	NoticeError   NoticeType = "error"
	NoticeWarning NoticeType = "warning"
	NoticeInfo    NoticeType = "info"
)

// Notice is a user-facing message attached to a response.
type Notice struct {
	Type    NoticeType `json:"type"`
	Message string     `json:"message"`
}

// Envelope is the body of every API response.
type Envelope struct {
	Data   any     `json:"data,omitempty"`
	Notice *Notice `json:"notice,omitempty"`
}

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	envelope   Envelope
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Data sets the payload.
func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.envelope.Data = v
	return b
}

// Notice attaches a notice. An empty message leaves the response without one.
func (b *ResponseBuilder) Notice(t NoticeType, message string) *ResponseBuilder {
	if message == "" {
		b.envelope.Notice = nil
		return b
	}
	b.envelope.Notice = &Notice{Type: t, Message: message}
	return b
}

// Success is a convenience method for success notices.
func (b *ResponseBuilder) Success(message string) *ResponseBuilder {
	return b.Notice(NoticeSuccess, message)
}

// Warning is a convenience method for warning notices.
func (b *ResponseBuilder) Warning(message string) *ResponseBuilder {
	return b.Notice(NoticeWarning, message)
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Envelope returns what Write would encode.
func (b *ResponseBuilder) Envelope() Envelope {
	return b.envelope
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.envelope); err != nil {
		slog.Error("Failed to encode response", "component", "http", "error", err)
	}
}

// ErrorResponse creates a response carrying only an error notice.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Notice(NoticeError, message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", "60")
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrMovementNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidationRejected),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, export.ErrEmptyReport),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// FromError builds the error response for err. Server errors hide their
// message from the client.
func FromError(err error) *ResponseBuilder {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		return InternalServerError("Internal error")
	}
	return ErrorResponse(status, err.Error())
}
