package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/collections-engine/pkg/errors"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedField  string
	}{
		{"validation", customError.WrapValidation("status", "unknown status"), http.StatusBadRequest, customError.ErrCodeValidation, "status"},
		{"not found", customError.WrapNotFound("case", "42"), http.StatusNotFound, customError.ErrCodeNotFound, ""},
		{"invalid transition", customError.WrapInvalidTransition("Resuelto", "Enviado"), http.StatusConflict, customError.ErrCodeInvalidTransition, ""},
		{"conflict", customError.WrapConflict("stale"), http.StatusConflict, customError.ErrCodeConflict, ""},
		{"source unavailable", customError.WrapSourceUnavailable("invoice", errors.New("timeout")), http.StatusServiceUnavailable, customError.ErrCodeSourceUnavailable, ""},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			FromError(w, r, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.expectedCode, body.Error.Code)
			assert.Equal(t, tt.expectedField, body.Error.Field)
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

func TestInvalidTransitionCarriesStatuses(t *testing.T) {
	w := httptest.NewRecorder()

	FromError(w, httptest.NewRequest(http.MethodPut, "/", nil), customError.WrapInvalidTransition("Resuelto", "Enviado"))

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Resuelto", body.Error.Details["current_status"])
	assert.Equal(t, "Enviado", body.Error.Details["requested_status"])
}

func TestJSON_SuccessFlag(t *testing.T) {
	w := httptest.NewRecorder()

	Created(w, map[string]int{"created_count": 2})

	assert.Equal(t, http.StatusCreated, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
}
