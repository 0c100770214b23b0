package diagnostics

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/basilfx/knx-devstack/internal/infrastructure/logging"
	"github.com/basilfx/knx-devstack/internal/knxconfig"
	"github.com/basilfx/knx-devstack/internal/knxdevice"
	"github.com/basilfx/knx-devstack/internal/knxdevice/store"
)

// gracefulShutdownTimeout bounds how long Start waits for in-flight
// requests once its context is cancelled.
const gracefulShutdownTimeout = 10 * time.Second

// maxRequestBodySize limits incoming request bodies.
const maxRequestBodySize = 1 << 20

// GroupWriter pushes a forced communication-object value change out onto
// the bus. Satisfied by the application layer.
type GroupWriter interface {
	UpdateComObject(ctx context.Context, index int, value []byte) error
}

// EventLister reads back the persisted device event log. Satisfied by the
// sqlite store.
type EventLister interface {
	ListEvents(ctx context.Context, limit int) ([]store.EventRecord, error)
}

// Deps holds the collaborators the diagnostics server reads from and
// writes through.
type Deps struct {
	Config knxconfig.DiagnosticsConfig
	Logger *logging.Logger
	Device *knxdevice.Device
	Writer GroupWriter
	Events EventLister
}

// Server is the diagnostics HTTP/WebSocket server.
type Server struct {
	cfg    knxconfig.DiagnosticsConfig
	logger *logging.Logger
	device *knxdevice.Device
	writer GroupWriter
	events EventLister
	hub    *Hub

	httpServer *http.Server
}

// New creates a diagnostics server. Call Start to begin serving and
// Monitor to obtain the telegram tap feeding the WebSocket bus monitor.
func New(deps Deps) *Server {
	s := &Server{
		cfg:    deps.Config,
		logger: deps.Logger,
		device: deps.Device,
		writer: deps.Writer,
		events: deps.Events,
		hub:    newHub(deps.Logger),
	}
	s.httpServer = &http.Server{
		Addr:              deps.Config.Addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second, //nolint:mnd // slow-loris guard
	}
	return s
}

// Monitor returns the hub every observed telegram should be fed to; wire
// it as a tap on the protocol stack.
func (s *Server) Monitor() *Hub {
	return s.hub
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/comobjects", s.handleListComObjects)
		r.Post("/api/comobjects/{index}/write", s.handleWriteComObject)
		r.Get("/api/events", s.handleListEvents)
		r.Get("/api/status", s.handleStatus)
		r.Get("/ws/monitor", s.hub.handleMonitor)
	})

	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests and
// closes every monitor connection.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("diagnostics listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.hub.closeAll()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err //nolint:wrapcheck // shutdown error surfaces as-is to the supervisor
	}
	return <-errCh
}

// requestIDMiddleware stamps each request with a unique id, honouring a
// client-supplied X-Request-ID.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with method, path, status, and
// duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// recoveryMiddleware catches handler panics and returns a 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// bodySizeLimitMiddleware bounds request bodies.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(status int) {
	if w.written {
		return
	}
	w.written = true
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	//nolint:wrapcheck // transparent wrapper
	return w.ResponseWriter.Write(b)
}

// Hijack implements http.Hijacker, required for WebSocket upgrades.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack() //nolint:wrapcheck // thin pass-through
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
