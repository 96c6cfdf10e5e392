// Package metrics provides Prometheus metrics for the drive-web server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drive_web_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drive_web_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Auth metrics
	authRedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drive_web_auth_redirects_total",
			Help: "Requests sent to the OAuth flow, by reason",
		},
		[]string{"reason"},
	)

	codeExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drive_web_oauth_code_exchanges_total",
			Help: "OAuth authorization code exchanges",
		},
		[]string{"result"},
	)

	// Transfer metrics
	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drive_web_bytes_downloaded_total",
			Help: "Total bytes streamed to browsers",
		},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drive_web_bytes_uploaded_total",
			Help: "Total bytes sent to the drive",
		},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drive_web_downloads_total",
			Help: "Total number of downloads",
		},
		[]string{"status"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drive_web_uploads_total",
			Help: "Total number of uploads",
		},
		[]string{"status"},
	)

	// Navigation
	navigationDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drive_web_navigation_depth",
			Help:    "Folders descended per listing request",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	// Drive API
	driveCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drive_web_drive_call_duration_seconds",
			Help:    "Drive API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// Sessions
	sessionsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drive_web_sessions_purged_total",
			Help: "Expired sessions removed from the store",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthRedirect records a request that had to go through the OAuth flow.
func RecordAuthRedirect(reason string) {
	authRedirectsTotal.WithLabelValues(reason).Inc()
}

// RecordCodeExchange records an authorization code exchange.
func RecordCodeExchange(success bool) {
	codeExchangesTotal.WithLabelValues(status(success)).Inc()
}

// RecordDownload records a download.
func RecordDownload(bytes int64, success bool) {
	bytesDownloaded.Add(float64(bytes))
	downloadsTotal.WithLabelValues(status(success)).Inc()
}

// RecordUpload records an upload.
func RecordUpload(bytes int64, success bool) {
	bytesUploaded.Add(float64(bytes))
	uploadsTotal.WithLabelValues(status(success)).Inc()
}

// RecordNavigation records how many folders a listing descended through.
func RecordNavigation(depth int) {
	navigationDepth.Observe(float64(depth))
}

// RecordDriveCall records a Drive API call.
func RecordDriveCall(operation string, duration time.Duration, success bool) {
	driveCallDuration.WithLabelValues(operation, status(success)).Observe(duration.Seconds())
}

// RecordSessionsPurged records removed sessions.
func RecordSessionsPurged(n int64) {
	sessionsPurged.Add(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request metrics labelled by route name, so paths that
// carry file or folder IDs do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil && cr.GetName() != "" {
			route = cr.GetName()
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
