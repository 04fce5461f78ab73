// Package server exposes the trading pipeline to an external scheduler over
// HTTP.
//
// Three operations, each idempotent at the day level: prepare builds today's
// batch, execute submits it, reconcile folds exchange history back into
// local state. Every mutating route requires the shared-secret bearer token;
// an unauthorized call is rejected before any side effect.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/kalshi-trader/internal/store"
	"github.com/rickgao/kalshi-trader/internal/submit"
)

// Trader is the operation surface the server exposes.
type Trader interface {
	Prepare(ctx context.Context) (*PrepareResult, error)
	Execute(ctx context.Context) (*submit.CycleResult, error)
	Reconcile(ctx context.Context) (*ReconcileResult, error)
	SetPaused(ctx context.Context, paused bool) error
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the control HTTP server.
type Server struct {
	trader    Trader
	db        Pinger
	authToken string
	logger    *slog.Logger
	http      *http.Server
}

// New creates a server listening on the given port.
func New(port int, authToken string, trader Trader, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		trader:    trader,
		db:        db,
		authToken: authToken,
		logger:    logger,
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // Execute cycles span many group delays
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/batches/prepare", s.authorized(s.handlePrepare))
	mux.HandleFunc("POST /v1/batches/execute", s.authorized(s.handleExecute))
	mux.HandleFunc("POST /v1/batches/pause", s.authorized(s.handlePause(true)))
	mux.HandleFunc("POST /v1/batches/resume", s.authorized(s.handlePause(false)))
	mux.HandleFunc("POST /v1/reconcile", s.authorized(s.handleReconcile))
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// ListenAndServe runs the server until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("control server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// authorized wraps a handler with the bearer token check. The comparison is
// constant time so the token cannot be probed byte by byte.
func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.logger.Warn("unauthorized request", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	result, err := s.trader.Prepare(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrBatchExists) {
			writeError(w, http.StatusConflict, "batch already prepared for today")
			return
		}
		s.logger.Error("prepare failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]any{"prepare": result})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	result, err := s.trader.Execute(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrBatchPaused):
			writeError(w, http.StatusConflict, "batch is paused")
		case errors.Is(err, store.ErrBatchNotFound):
			writeError(w, http.StatusNotFound, "no batch prepared for today")
		default:
			s.logger.Error("execute failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	// Per-order outcomes ride along: a failed order is reported, not hidden
	// behind an all-or-nothing status.
	writeOK(w, map[string]any{"execute": result})
}

func (s *Server) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.trader.SetPaused(r.Context(), paused); err != nil {
			if errors.Is(err, store.ErrBatchNotFound) {
				writeError(w, http.StatusNotFound, "no batch prepared for today")
				return
			}
			s.logger.Error("pause update failed", "error", err, "paused", paused)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeOK(w, map[string]any{"paused": paused})
	}
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	result, err := s.trader.Reconcile(r.Context())
	if err != nil {
		s.logger.Error("reconcile failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]any{"reconcile": result})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "unhealthy",
			"database": err.Error(),
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "healthy",
		"database": "connected",
	})
}

func writeOK(w http.ResponseWriter, payload map[string]any) {
	payload["status"] = "ok"
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "error",
		"reason": reason,
	})
}
