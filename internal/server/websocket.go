package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var syncStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// syncStreamMessage is one frame pushed to a /sync/stream client: a
// tenant's scheduler stats, polled and re-sent only when they change.
type syncStreamMessage struct {
	Tenant        string     `json:"tenant"`
	IsInitialized bool       `json:"is_initialized"`
	Running       bool       `json:"running"`
	State         string     `json:"state"`
	Errors        int        `json:"errors"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// handleSyncStream upgrades the connection and polls one tenant's
// Scheduler.Stats() on a fixed interval, pushing a frame whenever the
// stats change, until the client disconnects.
func (s *Server) handleSyncStream(w http.ResponseWriter, r *http.Request) {
	codename := r.URL.Query().Get("tenant")
	if codename == "" {
		http.Error(w, "tenant parameter required", http.StatusBadRequest)
		return
	}

	rt, err := s.app.Registry.Resolve(codename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if rt.Scheduler == nil {
		http.Error(w, "tenant has no scheduler configured", http.StatusNotFound)
		return
	}

	conn, err := syncStreamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.app.Logger.Error().Err(err).Str("tenant", codename).Msg("failed to upgrade sync stream connection")
		return
	}
	defer conn.Close()

	s.app.Logger.Info().Str("tenant", codename).Msg("sync stream client connected")

	var writeMu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastSent string
	for {
		stats := rt.Scheduler.Stats()
		msg := syncStreamMessage{
			Tenant:        codename,
			IsInitialized: stats.IsInitialized,
			Running:       stats.Running,
			State:         string(stats.State),
			Errors:        stats.Errors,
			LastRun:       stats.LastRun,
			LastError:     stats.LastError,
		}
		data, err := json.Marshal(msg)
		if err == nil && string(data) != lastSent {
			writeMu.Lock()
			writeErr := conn.WriteMessage(websocket.TextMessage, data)
			writeMu.Unlock()
			if writeErr != nil {
				s.app.Logger.Warn().Err(writeErr).Str("tenant", codename).Msg("failed to write sync stream frame")
				return
			}
			lastSent = string(data)
		}

		select {
		case <-done:
			s.app.Logger.Info().Str("tenant", codename).Msg("sync stream client disconnected")
			return
		case <-ticker.C:
		}
	}
}
