package server

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/ninacare/nina-front/internal/log"
	"github.com/ninacare/nina-front/internal/metrics"
)

// responseWriterDelegator captures the status code written by a handler
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (d *responseWriterDelegator) WriteHeader(code int) {
	if !d.wroteHeader {
		d.status = code
		d.wroteHeader = true
	}
	d.ResponseWriter.WriteHeader(code)
}

func (d *responseWriterDelegator) Write(b []byte) (int, error) {
	if !d.wroteHeader {
		d.status = http.StatusOK
		d.wroteHeader = true
	}
	return d.ResponseWriter.Write(b)
}

// instrument wraps a handler with request duration metrics and debug logging.
// The route label is the registered pattern, never the raw path, to keep the
// metric cardinality bounded.
func instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		d := &responseWriterDelegator{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(d, r)

		elapsed := time.Since(start)
		metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(d.status)).Observe(elapsed.Seconds())
		log.LogDebugWithFields("http", "Request handled", map[string]any{
			"method":   r.Method,
			"route":    route,
			"status":   d.status,
			"duration": elapsed.String(),
		})
	})
}

// withRecovery converts handler panics into 500s instead of killing the
// connection
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.LogErrorWithFields("http", "Handler panic", map[string]any{
					"panic": rec,
					"path":  r.URL.Path,
					"stack": string(debug.Stack()),
				})
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
