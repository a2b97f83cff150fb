package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawEnvelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Error      *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) rawEnvelope {
	t.Helper()
	var body rawEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode(t, w)
	assert.True(t, body.Success)
	assert.Equal(t, http.StatusOK, body.StatusCode)
	assert.Equal(t, "OK", body.Message)
	assert.JSONEq(t, `{"hello":"world"}`, string(body.Data))
	assert.Nil(t, body.Error)
}

func TestWriteCreatedCarriesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteCreated(w, "Work order created", map[string]int{"id": 1})

	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, http.StatusCreated, body.StatusCode)
	assert.Equal(t, "Work order created", body.Message)
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.False(t, body.Success)
	assert.Equal(t, http.StatusBadRequest, body.StatusCode)
	assert.Equal(t, "bad input", body.Message)
	assert.Equal(t, "null", string(body.Data))
	require.NotNil(t, body.Error)
	assert.Equal(t, string(pkgerrors.CodeValidation), body.Error.Code)
	assert.Equal(t, "demo", body.Error.Details["field"])
}

func TestWriteErrorInvalidTransition(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot move from COMPLETED to PENDING")
	WriteError(context.Background(), nil, w, err)

	body := decode(t, w)
	assert.Equal(t, pkgerrors.MetadataFor(pkgerrors.CodeInvalidTransition).HTTPStatus, w.Code)
	assert.Equal(t, "cannot move from COMPLETED to PENDING", body.Message)
	assert.Equal(t, string(pkgerrors.CodeInvalidTransition), body.Error.Code)
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})

	w := httptest.NewRecorder()
	WriteError(context.Background(), logg, w, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, string(pkgerrors.CodeInternal), body.Error.Code)
	assert.NotContains(t, body.Message, "boom")
	assert.Contains(t, buf.String(), "request.error")
	assert.Contains(t, buf.String(), "boom")
}

func TestWriteErrorHidesDependencyMessage(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeDependency, "redis 10.0.0.4:6379 refused").
		WithDetails(map[string]any{"dependency": "redis"})
	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "dependency unavailable", body.Message)
	assert.Equal(t, "redis", body.Error.Details["dependency"])
}
