package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/questline/storefront/internal/app/metrics"
)

// withMetrics records request count, duration and in-flight gauge for every
// handled request. Paths are collapsed to their route prefix so identifiers
// do not explode the label space.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.IncInFlight()
		defer metrics.DecInFlight()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		metrics.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path),
			strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "/"
	}
	switch parts[0] {
	case "gifts", "preorders":
		switch len(parts) {
		case 1:
			return "/" + parts[0]
		case 2:
			return "/" + parts[0] + "/{id}"
		default:
			return "/" + parts[0] + "/{id}/" + parts[2]
		}
	default:
		return "/" + parts[0]
	}
}

// responseWriter captures the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
