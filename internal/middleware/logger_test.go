package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantLevel zapcore.Level
		wantSize  int64
	}{
		{name: "ok", status: http.StatusCreated, body: `{"id":"abc"}`, wantLevel: zapcore.InfoLevel, wantSize: 12},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantLevel: zapcore.ErrorLevel, wantSize: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/public-spots?x=1", nil)
			h.ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.All()
			require.Len(t, entries, 1)

			e := entries[0]
			assert.Equal(t, tt.wantLevel, e.Level)

			fields := e.ContextMap()
			assert.Equal(t, http.MethodPost, fields["method"])
			assert.Equal(t, "/api/public-spots?x=1", fields["uri"])
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, tt.wantSize, fields["size"])
		})
	}
}

func TestLogger_ImplicitOK(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/badges", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(http.StatusOK), logs.All()[0].ContextMap()["status"])
}
