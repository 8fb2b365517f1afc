package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
		target error
	}{
		{"not found", NotFound("lot"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"bad request", BadRequest("bad"), "BAD_REQUEST", http.StatusBadRequest, ErrBadRequest},
		{"forbidden", Forbidden("no"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"unauthorized", Unauthorized("who"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"conflict", Conflict("dup"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"validation", Validation(map[string]string{"x": "y"}), "VALIDATION_ERROR", http.StatusBadRequest, ErrValidation},
		{"token expired", TokenExpired(), "TOKEN_EXPIRED", http.StatusUnauthorized, ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.True(t, Is(tt.err, tt.target))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	assert.Equal(t, "lot not found: resource not found", NotFound("lot").Error())
}

func TestAs_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("load lot: %w", NotFound("lot"))

	var appErr *AppError
	assert.True(t, As(wrapped, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
}

func TestWithDetails(t *testing.T) {
	err := BadRequest("invalid query parameter").WithDetails(map[string]string{"status": "unknown"})

	assert.Equal(t, "unknown", err.Details["status"])
	assert.True(t, Is(err, ErrBadRequest))
}
