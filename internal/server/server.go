// Package server runs the local HTTP listener that receives push messages
// and exposes health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rihigo/notify/internal/metrics"
	"github.com/rihigo/notify/internal/model"
)

// maxPushPayload matches the 4 KiB limit push services enforce.
const maxPushPayload = 4096

// Endpoints validates push endpoint URLs.
type Endpoints interface {
	Accepts(ctx context.Context, endpoint string) bool
}

// PushHandler displays a received push payload.
type PushHandler interface {
	HandlePush(ctx context.Context, payload []byte) (model.DisplayNotification, error)
}

// Options configures the listener. Nil fields disable their routes.
type Options struct {
	// BaseURL is the externally visible root, e.g. http://127.0.0.1:7788.
	BaseURL   string
	Endpoints Endpoints
	Push      PushHandler
	Metrics   *metrics.Collectors
	Logger    *zap.Logger
}

// Server is the local listener.
type Server struct {
	opts   Options
	logger *zap.Logger
	http   *http.Server
}

// New creates a server for addr.
func New(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{opts: opts, logger: logger.Named("server")}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}

	if s.opts.Push != nil && s.opts.Endpoints != nil {
		r.Post("/push/{id}", s.handlePush)
	}

	return r
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	endpoint := s.opts.BaseURL + "/push/" + chi.URLParam(r, "id")
	if !s.opts.Endpoints.Accepts(r.Context(), endpoint) {
		s.record("unknown_endpoint")
		http.Error(w, "subscription not found", http.StatusGone)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushPayload))
	if err != nil {
		s.record("bad_request")
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	n, err := s.opts.Push.HandlePush(r.Context(), payload)
	if err != nil {
		s.record("failed")
		s.logger.Warn("handling push failed", zap.Error(err))
		http.Error(w, "could not display notification", http.StatusInternalServerError)
		return
	}

	s.record("shown")
	s.logger.Debug("push shown", zap.String("tag", n.Tag))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) record(outcome string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.Push(outcome)
	}
}
