// Package logger provides the process-wide structured logger. Messages can be
// tagged the same way across the codebase ("Drive", account email, route name)
// so related lines group together when filtering.
package logger

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
)

var (
	mu          sync.RWMutex
	global      *zap.Logger
	globalLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Config selects the level ("debug", "info", "warn", "error") and the encoding
// ("json" or "console").
type Config struct {
	Level  string
	Format string
	// OutputPath is stdout, stderr or a file path. Empty means stderr.
	OutputPath string
}

// Init replaces the global logger.
func Init(cfg Config) error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	globalLevel.SetLevel(level)
	zc.Level = globalLevel
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}

	l, err := zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return err
	}

	Replace(l)
	return nil
}

// Replace swaps the global logger. Tests use it with zaptest/observer cores.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
}

// SetLevel changes the minimum level at runtime. Unknown names are ignored.
func SetLevel(level string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return
	}
	globalLevel.SetLevel(l)
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}

// L returns the global logger, building a production logger on first use.
func L() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global, _ = zap.NewProduction()
	}
	return global
}

// WithContext returns the request-scoped logger stored by Middleware, or the
// global one.
func WithContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return L()
}

// RequestID returns the id Middleware assigned to the request, if any.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// wrapped is L skipping the package-level helper frame, so callers of Info and
// friends are reported instead of this file.
func wrapped() *zap.Logger {
	return L().WithOptions(zap.AddCallerSkip(1))
}

func tagField(tags []string) zap.Field {
	return zap.Strings("tags", tags)
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	wrapped().Debug(msg, fields...)
}

// Info logs an informational message.
func Info(msg string, fields ...zap.Field) {
	wrapped().Info(msg, fields...)
}

// InfoTagged logs an informational message with tags.
func InfoTagged(tags []string, msg string, fields ...zap.Field) {
	wrapped().Info(msg, append(fields, tagField(tags))...)
}

// Warning logs a warning message.
func Warning(msg string, fields ...zap.Field) {
	wrapped().Warn(msg, fields...)
}

// WarningTagged logs a warning message with tags.
func WarningTagged(tags []string, msg string, fields ...zap.Field) {
	wrapped().Warn(msg, append(fields, tagField(tags))...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	wrapped().Error(msg, fields...)
}

// ErrorTagged logs an error message with tags.
func ErrorTagged(tags []string, msg string, fields ...zap.Field) {
	wrapped().Error(msg, append(fields, tagField(tags))...)
}

// Fatal logs and exits.
func Fatal(msg string, fields ...zap.Field) {
	wrapped().Fatal(msg, fields...)
}

// responseWriter captures status and size for the access log.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware attaches a request id and a request-scoped logger to the context
// and writes one access log line per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		l := WithContext(r.Context()).With(zap.String("request_id", requestID))
		ctx := context.WithValue(r.Context(), loggerKey, l)
		ctx = context.WithValue(ctx, requestIDKey, requestID)
		r = r.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		l.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Int64("size", rw.size),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
