// Package webserver exposes the latest usage state to local presentation
// collaborators (taskbar widgets, status bars, dashboards). It binds to
// loopback only and serves nothing but display data.
package webserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CandyFlex/pinch/internal/settings"
	"github.com/CandyFlex/pinch/internal/state"
)

type Server struct {
	state    *state.Store
	cfg      settings.StatusServer
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func New(st *state.Store, cfg settings.StatusServer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		state:  st,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			// Loopback-only server; local pages may connect freely.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("GET /events", s.handleSSE)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Start launches the listener when enabled. Errors after startup are logged,
// not fatal: the monitor keeps running without the feed.
func (s *Server) Start() {
	if !s.cfg.Enabled {
		return
	}
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server stopped", "err", err)
		}
	}()
	s.logger.Info("status server listening", "addr", addr)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	upd, ok := s.state.Latest()
	if !ok {
		http.Error(w, `{"error":"no data yet"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(upd)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.state.Subscribe()
	defer cancel()

	send := func(u state.Update) bool {
		data, err := json.Marshal(u)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if upd, ok := s.state.Latest(); ok {
		if !send(upd) {
			return
		}
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case upd, ok := <-ch:
			if !ok || !send(upd) {
				return
			}
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := s.state.Subscribe()
	defer cancel()

	// Drain client frames so close/ping handling works; we never expect
	// application data from the client.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	if upd, ok := s.state.Latest(); ok {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(upd); err != nil {
			return
		}
	}
	for upd := range ch {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(upd); err != nil {
			return
		}
	}
}
