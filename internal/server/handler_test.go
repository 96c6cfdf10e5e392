package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FranLegon/drive-web/internal/logger"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })
	return logs
}

func TestServeWithErrorBeforeWrite(t *testing.T) {
	logs := observeLogs(t)

	h := serveWith(func(w http.ResponseWriter, r *http.Request) error {
		return &httpError{http.StatusNotFound, errors.New("no such file")}
	}, true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download_file/x/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no such file")

	rejected := logs.FilterMessage("request rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, int64(0), rejected[0].ContextMap()["bytes_written"])
}

func TestServeWithErrorAfterPartialBody(t *testing.T) {
	logs := observeLogs(t)

	h := serveWith(func(w http.ResponseWriter, r *http.Request) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("stream interrupted")
	}, true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download_file/x/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())

	failed := logs.FilterMessage("error serving request").All()
	require.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	assert.Equal(t, int64(len("partial")), fields["bytes_written"])
	assert.Equal(t, int64(http.StatusInternalServerError), fields["status"])
}
