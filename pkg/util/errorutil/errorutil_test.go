package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

type upstreamErr struct{ status int }

func (e upstreamErr) Error() string       { return fmt.Sprintf("upstream %d", e.status) }
func (e upstreamErr) HTTPStatusCode() int { return e.status }

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewConflict("ended", nil), "CONFLICT", http.StatusConflict},
		{"wrapped domain error", fmt.Errorf("ctx: %w", NewForbidden("no")), "FORBIDDEN", http.StatusForbidden},
		{"no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"fiber error", fiber.NewError(http.StatusForbidden, "role required"), "FORBIDDEN", http.StatusForbidden},
		{"upstream unauthorized", upstreamErr{status: 401}, "UNAUTHORIZED", http.StatusUnauthorized},
		{"upstream client error", upstreamErr{status: 400}, "UPSTREAM_REJECTED", http.StatusBadRequest},
		{"upstream server error", upstreamErr{status: 503}, "UPSTREAM_ERROR", http.StatusBadGateway},
		{"anything else", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.HTTPStatus)
		})
	}
}

func TestToDomainErrorNil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
}
