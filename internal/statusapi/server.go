// Package statusapi is a read-only HTTP surface over the watcher's
// live state: a JSON snapshot endpoint and a websocket stream of the
// same snapshot on a timer. It never mutates pipeline state — there is
// no pause/resume/config endpoint here, by design.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

const shutdownTimeout = 5 * time.Second

// Snapshotter is the read-only view the server polls. *watch.Controller
// satisfies this.
type Snapshotter interface {
	Snapshot(ctx context.Context) watch.Status
}

// Server is an HTTP server exposing Snapshotter over /status and
// /status/stream.
type Server struct {
	controller   Snapshotter
	logger       *slog.Logger
	httpServer   *http.Server
	pushInterval time.Duration
}

// New builds a Server listening on addr. pushInterval governs how often
// the websocket stream re-polls the snapshot; it has no effect on
// GET /status, which always polls once per request.
func New(controller Snapshotter, addr string, pushInterval time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{controller: controller, logger: logger, pushInterval: pushInterval}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /status/stream", s.handleStream)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	return s
}

// Start binds addr and serves until ctx is canceled, at which point it
// performs a graceful shutdown. Start blocks; run it in its own
// goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("statusapi: binding listener: %w", err)
	}

	s.logger.Info("status API listening", slog.String("addr", listener.Addr().String()))

	errCh := make(chan error, 1)

	go func() {
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
			return
		}

		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("status API shutdown error", slog.String("error", err.Error()))
		}

		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.controller.Snapshot(r.Context())

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn("encoding status response", slog.String("error", err.Error()))
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	defer conn.CloseNow() //nolint:errcheck // best-effort on an already-broken connection

	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.controller.Snapshot(ctx)

			if err := writeJSON(ctx, conn, status); err != nil {
				s.logger.Debug("websocket write failed, closing stream", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("statusapi: marshaling snapshot: %w", err)
	}

	return conn.Write(ctx, websocket.MessageText, payload)
}
