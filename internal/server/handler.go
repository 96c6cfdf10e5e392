package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/FranLegon/drive-web/internal/logger"
)

// handler is a route handler that reports failures by returning them.
type handler func(w http.ResponseWriter, r *http.Request) error

// serveWith wraps h to handle errors it returns. informative controls
// whether internal error messages reach the client.
func serveWith(h handler, informative bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := newRecorder(w)
		err := h(rw, r)
		if err == nil {
			return
		}

		c := errorHTTPStatusCode(err)
		log := logger.WithContext(r.Context())
		fields := []zap.Field{
			zap.Int("status", c),
			zap.String("uri", r.URL.RequestURI()),
			zap.Int64("bytes_written", rw.BodyLength),
			zap.Error(err),
		}
		if c >= http.StatusInternalServerError {
			log.Error("error serving request", fields...)
		} else {
			log.Info("request rejected", fields...)
		}

		if rw.Code == 0 {
			// No response written yet, so we can write a response.
			http.Error(w, errorMessage(err, c, informative), c)
		}
	})
}

// errorMessage formats an error message for the HTTP response.
func errorMessage(err error, c int, informative bool) string {
	if informative {
		return fmt.Sprintf("HTTP %d (%s): %s", c, http.StatusText(c), err)
	}
	return fmt.Sprintf("HTTP %d (%s)", c, http.StatusText(c))
}

// responseRecorder is an implementation of http.ResponseWriter that
// records its HTTP status code and body length.
type responseRecorder struct {
	Code       int // the HTTP response code from WriteHeader
	BodyLength int64

	underlying http.ResponseWriter
}

// newRecorder returns an initialized ResponseRecorder.
func newRecorder(underlying http.ResponseWriter) *responseRecorder {
	return &responseRecorder{underlying: underlying}
}

// Header returns the header map from the underlying ResponseWriter.
func (rw *responseRecorder) Header() http.Header {
	return rw.underlying.Header()
}

func (rw *responseRecorder) Write(buf []byte) (int, error) {
	if rw.Code == 0 {
		rw.Code = http.StatusOK
	}
	n, err := rw.underlying.Write(buf)
	rw.BodyLength += int64(n)
	return n, err
}

// WriteHeader sets rw.Code.
func (rw *responseRecorder) WriteHeader(code int) {
	rw.Code = code
	rw.underlying.WriteHeader(code)
}

func (rw *responseRecorder) Unwrap() http.ResponseWriter {
	return rw.underlying
}
