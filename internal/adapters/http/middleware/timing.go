package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"memberdesk/internal/adapters/http/perf"
)

// DefaultSlowRequestMs is the default threshold for slow request warnings.
const DefaultSlowRequestMs = 200

// RequestIDHeader carries the per-process request number back to the client.
const RequestIDHeader = "X-Request-Id"

// untimedPrefixes are paths polled or fetched often enough to drown the log.
var untimedPrefixes = []string{"/static/", "/healthz"}

var requestSeq atomic.Uint64

// recorder captures the status and body size written by the handler.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rec *recorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(p []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rec *recorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

var recorderPool = sync.Pool{
	New: func() any { return &recorder{} },
}

func untimed(path string) bool {
	for _, p := range untimedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Timing logs and records the duration of every request except static assets and health checks.
// PRE: slowMs <= 0 selects DefaultSlowRequestMs; collector may be nil
// POST: Each timed response carries RequestIDHeader; requests at or over the threshold log slow_request at WARN
func Timing(collector *perf.Collector, slowMs int) func(http.Handler) http.Handler {
	if slowMs <= 0 {
		slowMs = DefaultSlowRequestMs
	}
	threshold := float64(slowMs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if untimed(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			id := requestSeq.Add(1)
			w.Header().Set(RequestIDHeader, strconv.FormatUint(id, 10))

			rec := recorderPool.Get().(*recorder)
			rec.ResponseWriter, rec.status, rec.bytes = w, http.StatusOK, 0

			defer func() {
				ms := float64(time.Since(start).Microseconds()) / 1000.0
				level, event := slog.LevelDebug, "request"
				if ms >= threshold {
					level, event = slog.LevelWarn, "slow_request"
				}
				slog.Log(r.Context(), level, event,
					"request_id", id,
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"bytes", rec.bytes,
					"duration_ms", ms,
				)

				if collector != nil {
					collector.Record(perf.Entry{
						Kind:       perf.KindRequest,
						Path:       r.Method + " " + r.URL.Path,
						StatusCode: rec.status,
						DurationMs: ms,
						Timestamp:  start,
					})
				}

				rec.ResponseWriter = nil
				recorderPool.Put(rec)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
