// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package control provides the HTTP control socket used to manage a running
// host: health, status, shutdown, component administration and operator
// commands.
package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/admin"
	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/integration"
	"github.com/holomush/componenthost/internal/xdg"
	"github.com/holomush/componenthost/pkg/errutil"
)

// maxRequestBody bounds POST bodies on the control socket.
const maxRequestBody = 64 << 10

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is returned by the /status endpoint.
type StatusResponse struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Name          string `json:"name,omitempty"`
}

// MessageResponse carries a plain confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ExecRequest is the body of POST /commands.
type ExecRequest struct {
	Input string `json:"input"`
}

// ExecResponse carries the output of an operator command.
type ExecResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ActionResponse is returned by the per-component action endpoints.
type ActionResponse struct {
	admin.Result
}

// ShutdownFunc is called when shutdown is requested.
type ShutdownFunc func()

// Admin is the administrative backend served over the socket.
type Admin interface {
	List(pattern string) ([]component.Status, error)
	Enable(ctx context.Context, id component.ID) (admin.Result, error)
	Disable(ctx context.Context, id component.ID) (admin.Result, error)
	Save(ctx context.Context, id component.ID) error
	SaveAll(ctx context.Context)
	Reload(ctx context.Context, id component.ID) error
}

// Dispatcher runs operator commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, input string, out io.Writer, caller integration.Caller) error
}

// Option configures a Server.
type Option func(*Server)

// WithSocketPath overrides the default socket location.
func WithSocketPath(path string) Option {
	return func(s *Server) { s.socketPath = path }
}

// WithAdmin enables the /components endpoints.
func WithAdmin(a Admin) Option {
	return func(s *Server) { s.admin = a }
}

// WithDispatcher enables the /commands endpoint.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Server) { s.dispatcher = d }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReadiness reports readiness on /health.
func WithReadiness(ready func() bool) Option {
	return func(s *Server) { s.ready = ready }
}

// Server runs HTTP over a Unix socket for process management.
type Server struct {
	name         string
	startTime    time.Time
	listener     net.Listener
	httpServer   *http.Server
	socketPath   string
	shutdownFunc ShutdownFunc
	running      atomic.Bool

	admin      Admin
	dispatcher Dispatcher
	ready      func() bool
	logger     *slog.Logger
}

// NewServer creates a control socket server for the named process.
func NewServer(name string, shutdownFunc ShutdownFunc, opts ...Option) *Server {
	s := &Server{
		name:         name,
		startTime:    time.Now(),
		shutdownFunc: shutdownFunc,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.running.Store(true)
	return s
}

// SocketPath returns the default socket path for the named process.
func SocketPath(name string) (string, error) {
	runtimeDir, err := xdg.RuntimeDir()
	if err != nil {
		return "", oops.With("operation", "resolve runtime directory").Wrap(err)
	}
	return filepath.Join(runtimeDir, fmt.Sprintf("componenthost-%s.sock", name)), nil
}

// Path returns the socket path once Start has run.
func (s *Server) Path() string {
	return s.socketPath
}

// Handler returns the HTTP handler served on the socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	if s.admin != nil {
		mux.HandleFunc("GET /components", s.handleList)
		mux.HandleFunc("POST /components/save", s.handleSaveAll)
		mux.HandleFunc("POST /components/{id}/{action}", s.handleAction)
	}
	if s.dispatcher != nil {
		mux.HandleFunc("POST /commands", s.handleExec)
	}
	return instrument(mux)
}

// Start begins listening on the Unix socket.
func (s *Server) Start() error {
	if s.socketPath == "" {
		path, err := SocketPath(s.name)
		if err != nil {
			return err
		}
		s.socketPath = path
	}

	if err := xdg.EnsureDir(filepath.Dir(s.socketPath)); err != nil {
		return err
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return oops.With("path", s.socketPath).Wrapf(err, "remove stale socket")
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return oops.With("path", s.socketPath).Wrapf(err, "listen on control socket")
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = listener.Close()
		return oops.With("path", s.socketPath).Wrapf(err, "set socket permissions")
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control socket server error", "name", s.name, "error", err)
		}
	}()

	s.logger.Info("control socket listening", "path", s.socketPath)
	return nil
}

// Stop gracefully shuts down the control socket server.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return oops.With("operation", "shutdown control socket").Wrap(err)
		}
	}

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("failed to close control socket listener", "error", err)
		}
	}

	if s.socketPath != "" {
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove control socket file", "path", s.socketPath, "error", err)
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Ready:     s.ready == nil || s.ready(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	s.write(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Running:       s.running.Load(),
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Name:          s.name,
	}
	s.write(w, http.StatusOK, resp)
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, MessageResponse{Message: "shutdown initiated"})
	if s.shutdownFunc != nil {
		go s.shutdownFunc()
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.admin.List(r.URL.Query().Get("match"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.write(w, http.StatusOK, statuses)
}

func (s *Server) handleSaveAll(w http.ResponseWriter, r *http.Request) {
	s.admin.SaveAll(r.Context())
	s.write(w, http.StatusOK, MessageResponse{Message: "saved all components"})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id := component.ID(r.PathValue("id"))
	ctx := r.Context()

	var (
		res admin.Result
		err error
	)
	switch r.PathValue("action") {
	case "enable":
		res, err = s.admin.Enable(ctx, id)
	case "disable":
		res, err = s.admin.Disable(ctx, id)
	case "save":
		err = s.admin.Save(ctx, id)
		res = admin.Result{ID: id, Enabled: true, Message: "saved " + string(id)}
	case "reload":
		err = s.admin.Reload(ctx, id)
		res = admin.Result{ID: id, Enabled: true, Message: "reloaded " + string(id)}
	default:
		s.writeError(w, oops.Code("INVALID_ACTION").
			With("action", r.PathValue("action")).
			Errorf("unknown action %q", r.PathValue("action")))
		return
	}

	// A failed persistence write still applied the change in memory.
	if err != nil && !(res.ID != "" && errutil.HasCode(err, component.CodePersistenceWriteFailed)) {
		s.writeError(w, err)
		return
	}
	if err != nil {
		res.Message += " (not persisted: " + err.Error() + ")"
	}
	s.write(w, http.StatusOK, ActionResponse{Result: res})
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req ExecRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, oops.Code("INVALID_REQUEST").Wrapf(err, "decode command request"))
		return
	}

	var out bytes.Buffer
	caller := integration.Caller{Name: "control", Operator: true}
	err := s.dispatcher.Dispatch(r.Context(), req.Input, &out, caller)

	resp := ExecResponse{Output: out.String()}
	if err != nil {
		resp.Error = err.Error()
		resp.Code = errutil.Code(err)
	}
	s.write(w, http.StatusOK, resp)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errutil.Code(err)
	s.write(w, statusFor(code), ErrorResponse{Error: err.Error(), Code: code})
}

// statusFor maps error codes to HTTP status codes.
func statusFor(code string) int {
	switch {
	case code == component.CodeUnknownComponent:
		return http.StatusNotFound
	case code == component.CodeNotEnabled:
		return http.StatusConflict
	case strings.HasPrefix(code, "INVALID_"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) write(w http.ResponseWriter, statusCode int, v any) {
	if err := writeJSON(w, statusCode, v); err != nil {
		s.logger.Error("failed to write control response", "error", err)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.With("operation", "encode JSON response").Wrap(err)
	}
	return nil
}
