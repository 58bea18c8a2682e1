package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

func TestUser(t *testing.T) {
	var got string
	handler := User()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, AnonymousUser, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, "rider-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "rider-42", got)
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/faqs/search", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: &buf})

	handler := chimiddleware.RequestID(User()(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/escalations", nil)
	req.Header.Set(UserHeader, "agent-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	require.NotEmpty(t, line)
	assert.Contains(t, line, `"status":418`)
	assert.Contains(t, line, `"path":"/api/v1/escalations"`)
	assert.Contains(t, line, `"user_id":"agent-7"`)
	assert.Contains(t, line, `"request_id"`)
}
