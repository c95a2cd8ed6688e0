// Package http serves the budget REST API.
//
// This file implements a small builder for JSON responses and the uniform
// error envelope.

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Envelope statuses.
const (
	StatusUnauthorized     = "unauthorized"
	StatusForbidden        = "forbidden"
	StatusDomainError      = "domain error"
	StatusApplicationError = "application error"
)

// ErrorEnvelope is the body of every error response.
type ErrorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MessageBody is the body of responses that only carry a message.
type MessageBody struct {
	Message string `json:"message"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    interface{}
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v interface{}) *JSONResponseBuilder {
	b.payload = v
	return b
}

func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Body(MessageBody{Message: msg})
}

// Write encodes the payload first so an encoding failure can still become a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	var buf bytes.Buffer
	status := b.statusCode
	if b.payload != nil {
		if err := json.NewEncoder(&buf).Encode(b.payload); err != nil {
			buf.Reset()
			_ = json.NewEncoder(&buf).Encode(ErrorEnvelope{Status: StatusApplicationError, Message: "failed to encode response"})
			status = http.StatusInternalServerError
		}
	}

	if buf.Len() > 0 {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(status)
	if buf.Len() > 0 {
		_, _ = w.Write(buf.Bytes())
	}
}

// ErrorResponse builds an error envelope response.
func ErrorResponse(statusCode int, status, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorEnvelope{Status: status, Message: message})
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, StatusUnauthorized, message)
}

func ForbiddenError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusForbidden, StatusForbidden, message)
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, StatusDomainError, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, StatusDomainError, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, StatusApplicationError, message)
}

func TooManyRequestsError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, StatusDomainError, message)
}
