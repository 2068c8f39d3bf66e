package handler

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FlorentB974/lanmon/internal/hub"
	"github.com/FlorentB974/lanmon/internal/logger"
)

// NewRouter assembles the API router: registry and scan endpoints plus
// the real-time stream transports.
func NewRouter(devices *DeviceHandler, scans *ScanHandler, stream *hub.Hub, log logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(log))
	r.Use(cors)

	r.Route("/api", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", devices.List)
			r.Get("/mac/{mac}", devices.GetByMAC)
			r.Get("/{id}", devices.Get)
			r.Patch("/{id}", devices.Update)
			r.Delete("/{id}", devices.Delete)
			r.Get("/{id}/events", devices.Events)
			r.Post("/{id}/rescan", devices.Rescan)
		})

		r.Post("/scan", scans.Trigger)
		r.Get("/scan/status", scans.Status)
		r.Get("/scans", scans.Sessions)
		r.Get("/events", scans.Events)
		r.Get("/stats", scans.Stats)

		// Long-lived connections; no per-request timeout applies.
		r.Get("/ws", stream.ServeWS)
		r.Get("/stream", stream.ServeSSE)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(log, w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	return r
}

// statusWriter captures the status code and bytes written for the
// access log.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Flush lets streaming handlers keep working behind the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// requestLog emits one structured line per request.
func requestLog(log logger.Logger) func(http.Handler) http.Handler {
	accessLog := log.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(ww, r)

			accessLog.Debug("request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.status),
				logger.Int("bytes", ww.bytes),
				logger.Duration("duration", time.Since(start)),
				logger.String("remote", r.RemoteAddr),
				logger.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// cors allows the dashboard to be served from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
