package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerStoresLoggerAndLogsCompletion(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	var inner *zap.Logger
	h := middleware.RequestID(RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l, ok := FromContext(r.Context())
		require.True(t, ok)
		inner = l
		w.WriteHeader(http.StatusTeapot)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.NotNil(t, inner)
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, int64(http.StatusTeapot), fields["status"])
	require.Equal(t, "/healthz", fields["path"])
	require.NotEmpty(t, fields["request_id"])
}

func TestWithFieldsEnrichesContextLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	ctx = WithFields(ctx, zap.Int64("school_id", 7))
	l, ok := FromContext(ctx)
	require.True(t, ok)
	l.Info("hello")

	require.Equal(t, int64(7), logs.All()[0].ContextMap()["school_id"])
}

func TestWithFieldsWithoutLoggerIsNoop(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, ctx, WithFields(ctx, zap.String("k", "v")))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(Config{Level: "loud"})
	require.Error(t, err)

	l, err := NewLogger(Config{Component: "api", Level: "debug", Console: true})
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestRequestLoggerLevelFollowsStatusAndRecordsRoute(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	router := chi.NewRouter()
	router.Use(RequestLogger(zap.New(core)))
	router.Get("/schools/{schoolCode}/users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	router.Get("/ok", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/schools/oak/users", "/boom", "/ok"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, "/schools/{schoolCode}/users", entries[0].ContextMap()["route"])
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	require.Equal(t, zapcore.InfoLevel, entries[2].Level)
	require.Equal(t, int64(http.StatusOK), entries[2].ContextMap()["status"])
}

func TestNewLoggerWritesCloudLoggingJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(Config{Component: "api", Level: "warning", Output: &buf})
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("kept", zap.String("namespace", "school_oak"))
	require.NoError(t, l.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "WARNING", entry["severity"])
	require.Equal(t, "kept", entry["message"])
	require.Equal(t, "api", entry["component"])
	require.Equal(t, "school_oak", entry["namespace"])
}
