package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	"github.com/dixieflatline76/Easel/util/log"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backend is what the control API drives and observes.
type Backend interface {
	Current() *provider.Artwork
	IsRunning() bool
	NextRun() time.Time
	LastUpdates() (last, scheduled time.Time)
	NextWallpaper(ctx context.Context) (wallpaper.UpdateOutcome, error)
	PreviousWallpaper(ctx context.Context) (wallpaper.UpdateOutcome, error)
	RestartService()
	SubscribeCurrent() (<-chan *provider.Artwork, func())
	SubscribeRunning() (<-chan bool, func())
}

// Server is the local REST/WebSocket control surface.
type Server struct {
	addr       string
	version    string
	backend    Backend
	httpServer *http.Server
	mux        *http.ServeMux
	upgrader   websocket.Upgrader

	// WebSocket management; writes to any client happen under clientsMu.
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
}

// NewServer creates a server for backend listening on addr. gatherer backs /metrics.
func NewServer(addr, version string, backend Backend, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		addr:    addr,
		version: version,
		backend: backend,
		mux:     http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]bool),
	}
	s.setupRoutes(gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /health", s.enableCORS(s.handleHealth))
	s.mux.HandleFunc("GET /current", s.enableCORS(s.handleCurrent))
	s.mux.HandleFunc("GET /current/image", s.handleCurrentImage)
	s.mux.HandleFunc("POST /next", s.handleNext)
	s.mux.HandleFunc("POST /previous", s.handlePrevious)
	s.mux.HandleFunc("POST /restart", s.handleRestart)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

// enableCORS lets browser pages read the status endpoints.
func (s *Server) enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next(w, r)
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds the listener and serves in the background. The returned address is
// the bound one, useful with port 0.
func (s *Server) Start(ctx context.Context) (string, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", err
	}
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("API: server stopped: %v", err)
		}
	}()
	artworks, stopArtworks := s.backend.SubscribeCurrent()
	running, stopRunning := s.backend.SubscribeRunning()
	go func() {
		defer stopArtworks()
		defer stopRunning()
		s.forwardEvents(ctx, artworks, running)
	}()
	log.Printf("API: listening on %s", ln.Addr())
	return ln.Addr().String(), nil
}

// Stop shuts the server down and disconnects WebSocket clients.
func (s *Server) Stop(ctx context.Context) error {
	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
	s.clientsMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// forwardEvents pushes artwork and running changes to WebSocket clients until ctx is done.
func (s *Server) forwardEvents(ctx context.Context, artworks <-chan *provider.Artwork, running <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case art, ok := <-artworks:
			if !ok {
				return
			}
			s.broadcast(artworkEvent(art))
		case r, ok := <-running:
			if !ok {
				return
			}
			s.broadcast(runningEvent(r))
		}
	}
}

// broadcast sends ev to all connected clients, dropping the ones that fail.
func (s *Server) broadcast(ev Event) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(ev); err != nil {
			log.Printf("API: dropping websocket client: %v", err)
			client.Close()
			delete(s.clients, client)
		}
	}
}
