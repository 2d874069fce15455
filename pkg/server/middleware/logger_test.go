package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Run("success - request context carries the logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)

		handler := Logger(&logger)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			zerolog.Ctx(req.Context()).Info().Msg("from handler")
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/entities/clinic-1/reports", nil))

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, buf.String(), "from handler")
		assert.Contains(t, buf.String(), `"path":"/api/v1/entities/clinic-1/reports"`)
	})

	t.Run("success - every request emits a completion log", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

		handler := Logger(&logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, buf.String(), "request handled")
		assert.Contains(t, buf.String(), `"elapsed"`)
	})

	t.Run("success - test writer backed logger survives a request", func(t *testing.T) {
		logger := zerolog.New(zerolog.NewTestWriter(t))

		handler := Logger(&logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		require.NotPanics(t, func() {
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
