package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/project-files/pkg/projectfiles"
)

// Error codes returned in the envelope
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeAccessDenied         = "ACCESS_DENIED"
	CodeForbidden            = "FORBIDDEN"
	CodeNotFound             = "NOT_FOUND"
	CodeProjectNotFound      = "PROJECT_NOT_FOUND"
	CodeFileNotFound         = "FILE_NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeProjectAlreadyExists = "PROJECT_ALREADY_EXISTS"
	CodeFileAlreadyExists    = "FILE_ALREADY_EXISTS"
	CodeInternal             = "INTERNAL_ERROR"
	CodeS3                   = "S3_ERROR"
	CodeDatabase             = "DATABASE_ERROR"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
)

var statusByCode = map[string]int{
	CodeValidation:           http.StatusBadRequest,
	CodeUnauthorized:         http.StatusUnauthorized,
	CodeAccessDenied:         http.StatusForbidden,
	CodeForbidden:            http.StatusForbidden,
	CodeNotFound:             http.StatusNotFound,
	CodeProjectNotFound:      http.StatusNotFound,
	CodeFileNotFound:         http.StatusNotFound,
	CodeConflict:             http.StatusConflict,
	CodeProjectAlreadyExists: http.StatusConflict,
	CodeFileAlreadyExists:    http.StatusConflict,
	CodeInternal:             http.StatusInternalServerError,
	CodeS3:                   http.StatusInternalServerError,
	CodeDatabase:             http.StatusInternalServerError,
	CodeServiceUnavailable:   http.StatusServiceUnavailable,
}

// StatusForCode returns the HTTP status of an error code.
func StatusForCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Envelope is the body of every response
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    Meta       `json:"meta"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Meta carries response metadata
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// Responder writes envelopes. In development mode internal error messages
// are returned to the client; otherwise they are replaced by a generic one.
type Responder struct {
	Development bool
	Logger      *slog.Logger
}

func (rs Responder) logger() *slog.Logger {
	if rs.Logger == nil {
		return slog.Default()
	}
	return rs.Logger
}

func meta(r *http.Request) Meta {
	return Meta{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetReqID(r.Context()),
	}
}

// OK writes a success envelope
func (rs Responder) OK(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{Success: true, Data: data, Meta: meta(r)})
}

// Fail writes an error envelope with an explicit code
func (rs Responder) Fail(w http.ResponseWriter, r *http.Request, code, message string, details any) {
	render.Status(r, StatusForCode(code))
	render.JSON(w, r, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
		Meta:    meta(r),
	})
}

// Error classifies err and writes the matching error envelope
func (rs Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	code, message, details := Classify(err)

	if StatusForCode(code) >= http.StatusInternalServerError {
		rs.logger().ErrorContext(r.Context(), "request failed", "code", code, "path", r.URL.Path, "err", err)
		if rs.Development {
			message = err.Error()
		}
	}

	rs.Fail(w, r, code, message, details)
}

// Classify maps a service error onto an error code, a client-safe message
// and optional field details.
func Classify(err error) (code, message string, details any) {
	var validationErr *projectfiles.ValidationError
	var storageErr *projectfiles.StorageError
	var tableErr *projectfiles.TableError

	switch {
	case errors.As(err, &validationErr):
		var fields any
		if len(validationErr.Fields) > 0 {
			fields = validationErr.Fields
		}
		return CodeValidation, validationErr.Message, fields
	case errors.Is(err, projectfiles.ErrObjectNotUploaded):
		return CodeValidation, "File has not been uploaded", nil
	case errors.Is(err, projectfiles.ErrProjectNotFound):
		return CodeProjectNotFound, "Project not found", nil
	case errors.Is(err, projectfiles.ErrFileNotFound):
		return CodeFileNotFound, "File not found", nil
	case errors.Is(err, projectfiles.ErrProjectAlreadyExists):
		return CodeProjectAlreadyExists, "Project already exists", nil
	case errors.Is(err, projectfiles.ErrFileAlreadyExists):
		return CodeFileAlreadyExists, "File already exists", nil
	case errors.Is(err, projectfiles.ErrThrottled):
		return CodeServiceUnavailable, "Service temporarily unavailable", nil
	case errors.As(err, &storageErr):
		return CodeS3, "Storage operation failed", nil
	case errors.As(err, &tableErr):
		return CodeDatabase, "Database operation failed", nil
	}
	return CodeInternal, "Internal server error", nil
}
