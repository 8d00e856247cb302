package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("product", "p-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"not found by", NotFoundBy("user", "email", "ghost@example.com"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("user", "email", "ann@example.com"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists},
		{"conflict", Conflict("token already rotated"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"invalid input", InvalidInput("product_ids must not contain blanks"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("invalid token"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("admin role required"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"constraint violation", ConstraintViolation("two products share category shoes"), "CONSTRAINT_VIOLATION", http.StatusUnprocessableEntity, ErrConstraintViolation},
		{"integrity fault", IntegrityFault("user u-1 has no wishlist"), "INTEGRITY_FAULT", http.StatusInternalServerError, ErrIntegrityFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: product with id p-1 not found", NotFound("product", "p-1").Error())
	assert.Equal(t, `user with email "ghost@example.com" not found`, NotFoundBy("user", "email", "ghost@example.com").Message)
	assert.Equal(t, `user with email "ann@example.com" already exists`, AlreadyExists("user", "email", "ann@example.com").Message)
}

func TestIntegrityFault_HidesDetail(t *testing.T) {
	err := IntegrityFault("user u-1 has no wishlist")

	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Contains(t, err.Error(), "user u-1 has no wishlist")
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Internal(cause)

	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Message, "connection reset")
}

func TestAppError_WithoutCause(t *testing.T) {
	err := &AppError{Code: "RATE_LIMITED", Message: "slow down"}

	assert.Equal(t, "RATE_LIMITED: slow down", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "lock wishlist")

	assert.EqualError(t, wrapped, "lock wishlist: resource not found")
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestHTTPStatus_Sentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrConstraintViolation, http.StatusUnprocessableEntity},
		{ErrIntegrityFault, http.StatusInternalServerError},
		{fmt.Errorf("list wishlist products: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("dial tcp: refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_AppErrorWinsOverWrappedSentinel(t *testing.T) {
	err := fmt.Errorf("replace products: %w", ConstraintViolation("duplicate category"))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(err))
}
