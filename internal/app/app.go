// Package app wires the voxrecap pipeline into a running application.
//
// [SessionManager] owns recording sessions: it joins voice channels, drives
// capture, and turns a stopped session into a transcript and a summary.
// [App] owns the process lifetime around it: the health and metrics HTTP
// server, and the ordered teardown of every subsystem on Shutdown.
//
// For testing, inject doubles through [SessionManagerConfig] and the
// functional options of [New].
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxrecap/internal/health"
	"github.com/MrWong99/voxrecap/internal/observe"
)

// ShutdownTimeout bounds the graceful shutdown of the whole application.
const ShutdownTimeout = 15 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	sessions *SessionManager

	listenAddr     string
	checkers       []health.Checker
	metrics        *observe.Metrics
	metricsHandler http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for New.
type Option func(*App)

// WithListenAddr sets the address of the health and metrics server. An empty
// address disables the server.
func WithListenAddr(addr string) Option {
	return func(a *App) { a.listenAddr = addr }
}

// WithCheckers adds readiness checks served on /readyz.
func WithCheckers(c ...health.Checker) Option {
	return func(a *App) { a.checkers = append(a.checkers, c...) }
}

// WithMetrics sets the metrics used by the HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler replaces the Prometheus handler served on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithCloser registers fn to run during Shutdown, after all sessions ended.
// Closers run in registration order.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New creates an App around sessions.
func New(sessions *SessionManager, opts ...Option) *App {
	a := &App{sessions: sessions}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsHandler == nil {
		a.metricsHandler = promhttp.Handler()
	}
	return a
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Handler returns the HTTP handler serving /healthz, /readyz and /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(a.checkers...).Register(mux)
	mux.Handle("GET /metrics", a.metricsHandler)
	return observe.Middleware(a.metrics)(mux)
}

// Run serves HTTP until ctx is cancelled. Without a listen address it only
// blocks on ctx. Cancellation is not an error; call Shutdown afterwards.
func (a *App) Run(ctx context.Context) error {
	if a.listenAddr == "" {
		<-ctx.Done()
		return nil
	}

	ln, err := net.Listen("tcp", a.listenAddr)
	if err != nil {
		return fmt.Errorf("app: listen on %s: %w", a.listenAddr, err)
	}
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.mu.Lock()
	a.server, a.listener = srv, ln
	a.mu.Unlock()

	slog.Info("app: http server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	}
}

// Addr returns the address the HTTP server listens on, or nil before Run
// bound it.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Shutdown stops the HTTP server, ends every active session and runs the
// registered closers. It is safe to call more than once; later calls return
// the first result.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		var errs []error

		a.mu.Lock()
		srv := a.server
		a.mu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http server: %w", err))
			}
		}

		if a.sessions != nil {
			if err := a.sessions.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		for _, fn := range a.closers {
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}

		if len(errs) > 0 {
			a.stopErr = fmt.Errorf("app: shutdown: %w", errors.Join(errs...))
		}
	})
	return a.stopErr
}
