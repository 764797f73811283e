package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRequestID() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(RequestIDFromContext(r.Context())))
	})
}

func TestRequestID_Generated(t *testing.T) {
	handler := RequestID()(echoRequestID())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	id := w.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "generated id should be a UUID")
	assert.Equal(t, id, w.Body.String(), "context id should match the header")
}

func TestRequestID_ClientValueKept(t *testing.T) {
	handler := RequestID()(echoRequestID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "trace-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "trace-42", w.Body.String())
}

func TestRequestID_InvalidValuesReplaced(t *testing.T) {
	handler := RequestID()(echoRequestID())

	for name, value := range map[string]string{
		"too long":  strings.Repeat("a", 129),
		"control":   "abc\ndef",
		"non-ascii": "id-\xff",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", value)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		got := w.Header().Get("X-Request-ID")
		assert.NotEqual(t, value, got, "%s value should be replaced", name)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "%s replacement should be a UUID", name)
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
