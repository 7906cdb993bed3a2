// Package server exposes the chat pipeline over HTTP and serves the
// embeddable browser widget.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/valpere/bhasha/internal/lang"
	"github.com/valpere/bhasha/internal/orchestrator"
	"github.com/valpere/bhasha/internal/store"
)

const maxBodyBytes = 64 << 10

type Chatter interface {
	Handle(ctx context.Context, req orchestrator.Request) (*orchestrator.Reply, error)
}

// History records handled requests. Failures are logged and never reach
// the client.
type History interface {
	SaveExchange(ctx context.Context, e store.Exchange) error
}

type Server struct {
	chat        Chatter
	history     History
	logger      *zap.Logger
	corsOrigins []string
}

type Option func(*Server)

func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

func New(chat Chatter, opts ...Option) *Server {
	s := &Server{
		chat:        chat,
		logger:      zap.NewNop(),
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.Handle("GET /", widgetHandler())

	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.logRequests(mux))
}

// ListenAndServe blocks until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Langs  map[string]string `json:"langs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Langs: lang.Names()})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req orchestrator.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}

	reply, err := s.chat.Handle(r.Context(), req)
	switch {
	case errors.Is(err, lang.ErrUnsupportedLanguage):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, orchestrator.ErrEmptyInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Empty text"})
		return
	case err != nil:
		s.logger.Error("chat failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, orchestrator.Reply{OK: false, Error: err.Error()})
		return
	}

	status := http.StatusOK
	if !reply.OK {
		status = http.StatusInternalServerError
	}
	if reply.ID != "" {
		w.Header().Set("X-Request-Id", reply.ID)
	}
	writeJSON(w, status, reply)

	s.record(r.Context(), req, reply, time.Since(start))
}

func (s *Server) record(ctx context.Context, req orchestrator.Request, reply *orchestrator.Reply, latency time.Duration) {
	if s.history == nil {
		return
	}
	code, _ := lang.Parse(req.Lang)
	err := s.history.SaveExchange(context.WithoutCancel(ctx), store.Exchange{
		ID:         reply.ID,
		Lang:       string(code),
		Text:       req.Text,
		Normalized: reply.Normalized,
		Answer:     reply.Answer,
		Warn:       reply.Warn,
		Error:      reply.Error,
		Stage:      string(reply.Stage),
		OK:         reply.OK,
		Latency:    latency,
	})
	if err != nil {
		s.logger.Warn("failed to record exchange", zap.String("request_id", reply.ID), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}
