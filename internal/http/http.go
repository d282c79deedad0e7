package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"routeiq/internal/http/middleware"
	"routeiq/internal/logging"
	"routeiq/internal/metrics"
	"routeiq/internal/store"
	"routeiq/internal/web"
	"routeiq/resources"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Sim     Simulation
	Routes  RouteFinder
	Store   store.EventStore
	WS      http.Handler
	Metrics *metrics.Metrics
	// IngestLimiter throttles POSTs to the traffic API per client IP. Nil disables it.
	IngestLimiter *middleware.RateLimiter
}

func NewMux(d Deps) (*http.ServeMux, error) {
	mux := http.NewServeMux()

	rend, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}

	mux.Handle("GET /{$}", &LandingHandler{TPL: rend})
	mux.Handle("GET /status", &StatusHandler{Sim: d.Sim, TPL: rend})
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(resources.FS)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	th := &TrafficHandler{Sim: d.Sim, Store: d.Store, Metrics: d.Metrics, Limiter: d.IngestLimiter}
	th.Routes(mux)

	rh := &RouteHandler{Routes: d.Routes}
	mux.Handle("POST /api/v1/routes/optimal", rh)

	if d.WS != nil {
		mux.Handle("GET /ws", d.WS)
	}
	mux.Handle("GET /metrics", d.Metrics.Handler())

	return mux, nil
}

type MiddlewareOptions struct {
	Metrics *metrics.Metrics
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
}

func WithStandardMiddleware(next http.Handler, opts MiddlewareOptions) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(requestLogger(opts.Metrics, securityHeaders(next)))
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := logging.From(r.Context()).With("req_id", uuid.NewString())
		r = r.WithContext(logging.WithLogger(r.Context(), l))

		ww := &wrapWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		d := time.Since(start)
		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		m.ObserveRequest(r.Method, pattern, ww.status, d)
		l.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", d.Milliseconds(),
		)
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *wrapWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *wrapWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (w *wrapWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *wrapWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *wrapWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
