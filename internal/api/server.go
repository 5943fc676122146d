package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"syscall"

	"github.com/glotchimo/afkguard/internal/auth"
	"github.com/glotchimo/afkguard/internal/handlers"
	"github.com/glotchimo/afkguard/internal/handlers/routes"
	"github.com/glotchimo/afkguard/internal/response"
	"github.com/graxinc/errutil"
)

var ErrAddrInUse = errors.New("address already in use")

type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

type Options struct {
	Port  int
	Token string
}

// Server is the admin REST service. It binds to loopback only and can be
// started and stopped any number of times.
type Server struct {
	mu    sync.Mutex
	state State

	l    *slog.Logger
	addr string
	gate *auth.Gate
	r    *response.Responder
	deps handlers.Dependencies
	mux  *http.ServeMux

	srv   *http.Server
	ln    net.Listener
	serve chan error
}

func NewServer(l *slog.Logger, opts Options, store handlers.Store, registry handlers.Registry, metrics handlers.Metrics) *Server {
	s := &Server{
		l:    l,
		addr: net.JoinHostPort("127.0.0.1", strconv.Itoa(opts.Port)),
		gate: auth.NewGate(l, opts.Token),
		r:    response.NewResponder(l),
		deps: handlers.Dependencies{
			Store:    store,
			Registry: registry,
			Metrics:  metrics,
			Logger:   l,
		},
		mux: http.NewServeMux(),
	}

	for _, h := range routes.All() {
		s.mux.Handle(h.Metadata().Pattern(), s.wrap(h))
	}
	s.mux.HandleFunc("/", s.notFound)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr is the bound address while running, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Start binds the listener and begins serving. It returns once the socket is
// bound. Starting a running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		s.l.Warn("admin api already started", "state", s.state.String(), "addr", s.addr)
		return nil
	}
	s.state = StateStarting

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.state = StateStopped
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s: %w", ErrAddrInUse, s.addr, err)
		}
		return errutil.With(err)
	}

	s.ln = ln
	s.srv = &http.Server{Handler: s.mux, ErrorLog: slog.NewLogLogger(s.l.Handler(), slog.LevelWarn)}
	s.serve = make(chan error, 1)

	go func(srv *http.Server, ln net.Listener, done chan<- error) {
		done <- srv.Serve(ln)
	}(s.srv, ln, s.serve)

	s.state = StateRunning
	s.l.Info("admin api listening", "addr", ln.Addr().String())

	return nil
}

// Stop closes the listener, waits for in-flight requests under ctx and
// returns once the serve loop has exited. Stopping a stopped server is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		s.l.Warn("admin api already stopped", "state", s.state.String(), "addr", s.addr)
		return nil
	}
	s.state = StateStopping

	shutdownErr := s.srv.Shutdown(ctx)
	if shutdownErr != nil {
		s.srv.Close()
	}

	serveErr := <-s.serve
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	addr := s.ln.Addr().String()
	s.srv, s.ln, s.serve = nil, nil, nil
	s.state = StateStopped
	s.l.Info("admin api stopped", "addr", addr)

	if err := errors.Join(shutdownErr, serveErr); err != nil {
		return errutil.With(err)
	}
	return nil
}
