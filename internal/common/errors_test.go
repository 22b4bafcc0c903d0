package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorWrapsSentinel(t *testing.T) {
	sentinel := errors.New("invalid payment")
	wrapped := fmt.Errorf("%w: amount must be greater than zero", sentinel)
	app := NewAppError(http.StatusUnprocessableEntity, "INVALID_PAYMENT", wrapped)

	assert.True(t, errors.Is(app, sentinel), "Is must see through the AppError")
	assert.Equal(t, "invalid payment: amount must be greater than zero", app.Error())

	var target *AppError
	assert.True(t, errors.As(app, &target))
	assert.Equal(t, http.StatusUnprocessableEntity, target.Status)
}

func TestRenderErrorAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, NewAppError(http.StatusConflict, "ORDER_IN_PROGRESS", errors.New("order already in progress")))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ORDER_IN_PROGRESS"`)
	assert.Contains(t, rec.Body.String(), "order already in progress")
}

func TestRenderErrorOpaqueFallback(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, errors.New("redis: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL"`)
	assert.NotContains(t, rec.Body.String(), "connection refused", "internal detail must not leak")
}
