package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	"github.com/dixieflatline76/Easel/util/log"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Event is pushed to WebSocket clients.
type Event struct {
	Type    string            `json:"type"` // "artwork" or "running"
	Artwork *provider.Artwork `json:"artwork,omitempty"`
	Running *bool             `json:"running,omitempty"`
}

func artworkEvent(art *provider.Artwork) Event {
	return Event{Type: "artwork", Artwork: art}
}

func runningEvent(running bool) Event {
	return Event{Type: "running", Running: &running}
}

// Status is the body of GET /current.
type Status struct {
	Running             bool              `json:"running"`
	NextRun             *time.Time        `json:"nextRun,omitempty"`
	LastUpdate          *time.Time        `json:"lastUpdate,omitempty"`
	LastScheduledUpdate *time.Time        `json:"lastScheduledUpdate,omitempty"`
	Artwork             *provider.Artwork `json:"artwork"`
	Title               string            `json:"title,omitempty"`
}

// UpdateResult is the body of the update endpoints.
type UpdateResult struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: encoding response: %v", err)
	}
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "running",
		"version": s.version,
	})
}

func (s *Server) status() Status {
	st := Status{Running: s.backend.IsRunning(), Artwork: s.backend.Current()}
	if next := s.backend.NextRun(); !next.IsZero() {
		st.NextRun = &next
	}
	last, scheduled := s.backend.LastUpdates()
	if !last.IsZero() {
		st.LastUpdate = &last
	}
	if !scheduled.IsZero() {
		st.LastScheduledUpdate = &scheduled
	}
	if st.Artwork != nil {
		st.Title = st.Artwork.Metadata.DisplayTitle()
	}
	return st
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleCurrentImage serves the image file on the desktop.
func (s *Server) handleCurrentImage(w http.ResponseWriter, r *http.Request) {
	art := s.backend.Current()
	if art == nil {
		http.Error(w, "No artwork applied yet", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, art.Path)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.runUpdate(w, r, s.backend.NextWallpaper)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.runUpdate(w, r, s.backend.PreviousWallpaper)
}

func (s *Server) runUpdate(w http.ResponseWriter, r *http.Request, update func(context.Context) (wallpaper.UpdateOutcome, error)) {
	outcome, err := update(r.Context())
	if err != nil {
		log.Printf("API: update failed: %v", err)
		writeJSON(w, http.StatusBadGateway, UpdateResult{Outcome: outcome.String(), Error: err.Error()})
		return
	}
	code := http.StatusOK
	if outcome == wallpaper.OutcomeBusy {
		code = http.StatusConflict
	}
	writeJSON(w, code, UpdateResult{Outcome: outcome.String()})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.backend.RestartService()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
}

// handleWebSocket upgrades the connection, sends the current state and keeps the
// client registered until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("API: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.clientsMu.Lock()
	err = conn.WriteJSON(runningEvent(s.backend.IsRunning()))
	if err == nil {
		err = conn.WriteJSON(artworkEvent(s.backend.Current()))
	}
	if err == nil {
		s.clients[conn] = true
	}
	s.clientsMu.Unlock()
	if err != nil {
		return
	}

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()

	for {
		// Clients only keep the connection alive; their messages are ignored.
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("API: websocket closed: %v", err)
			}
			return
		}
	}
}
