package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/project-files/pkg/projectfiles"
)

// Pagination bounds for list endpoints
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// parseLimit clamps the limit query parameter to 1..MaxPageLimit. Missing or
// non-numeric values select DefaultPageLimit.
func parseLimit(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return DefaultPageLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultPageLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

func invalidParam(field, message string) error {
	return &projectfiles.ValidationError{
		Message: "invalid request",
		Fields:  []projectfiles.FieldError{{Field: field, Message: message}},
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return &projectfiles.ValidationError{
			Message: "invalid request",
			Fields:  []projectfiles.FieldError{{Field: "body", Message: "must be a valid JSON object"}},
			Err:     err,
		}
	}
	return nil
}

func callerID(r *http.Request) string {
	id, _ := IdentityFromContext(r.Context())
	return id.UserID
}
