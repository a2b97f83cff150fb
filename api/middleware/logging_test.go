package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
)

func bufferLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: buf})
}

func TestLoggingRecordsRoutePatternAndPathIDs(t *testing.T) {
	var buf bytes.Buffer
	logg := bufferLogger(&buf)

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.With(PathFields(logg)).Get("/v1/orders/{orderId}/assignments/{assignmentId}", func(w http.ResponseWriter, r *http.Request) {
		logg.Info(r.Context(), "handler.reached")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/orders/wo-1/assignments/as-9", nil))
	assert.Equal(t, http.StatusAccepted, resp.Code)

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if assert.Len(t, lines, 2) {
		assert.Contains(t, lines[0], `"handler.reached"`)
		assert.Contains(t, lines[0], `"work_order_id":"wo-1"`)
		assert.Contains(t, lines[0], `"assignment_id":"as-9"`)
		assert.Contains(t, lines[1], `"request.complete"`)
		assert.Contains(t, lines[1], `"route":"/v1/orders/{orderId}/assignments/{assignmentId}"`)
		assert.Contains(t, lines[1], `"status":202`)
		assert.Contains(t, lines[1], `"bytes":2`)
	}
}

func TestLoggingSkipsHealthyProbes(t *testing.T) {
	var buf bytes.Buffer
	logg := bufferLogger(&buf)

	status := http.StatusOK
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Empty(t, buf.String())

	status = http.StatusServiceUnavailable
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Contains(t, buf.String(), `"status":503`)
}

func TestRequestIDReplacesUnusableHeader(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "has space")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	got := resp.Header().Get("X-Request-Id")
	assert.NotEqual(t, "has space", got)
	assert.Equal(t, got, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("a", maxRequestIDBytes+1))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Len(t, resp.Header().Get("X-Request-Id"), 36)
}

func TestRecovererReraisesAbortHandler(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
