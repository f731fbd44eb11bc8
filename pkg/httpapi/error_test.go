package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteError(rec, http.StatusTooManyRequests, "ASSIGNMENT_RATE_LIMITED", "escalation cooldown active", map[string]string{
		"retry_after_seconds": "3000",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "ASSIGNMENT_RATE_LIMITED", envelope.Error.Code)
	require.Equal(t, "escalation cooldown active", envelope.Error.Message)
	require.Equal(t, "3000", envelope.Error.Meta["retry_after_seconds"])
}

func TestWriteJSONNilPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusNoContent, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.Bytes())
}
