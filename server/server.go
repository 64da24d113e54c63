// Package server exposes the optimization engine over HTTP: scenario
// documents are posted to /api/optimize and solved synchronously, the last
// results are served on /api/status and pushed to WebSocket subscribers.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hass-energy/haeo/scenario"
)

// Server is the HTTP front end. One optimization runs at a time; concurrent
// posts are serialized on the solve mutex since a Network must not be shared
// across goroutines. All WebSocket writes to registered clients go through
// the broadcast channel, drained by a single goroutine, so request handlers
// never write to a shared connection themselves.
type Server struct {
	server    *http.Server
	logger    *logrus.Logger
	startTime time.Time
	upgrader  websocket.Upgrader

	solveMu sync.Mutex

	mu        sync.RWMutex
	last      *scenario.Results
	runs      int
	failed    int
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}
}

// HealthResponse is the /api/health payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
	Runs      int    `json:"runs"`
	Failed    int    `json:"failed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a server listening on the given port.
func New(port int, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	mux := http.NewServeMux()
	s := &Server{
		logger:    logger,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("/api/health", s.healthHandler)
	mux.HandleFunc("/api/status", s.statusHandler)
	mux.HandleFunc("/api/optimize", s.optimizeHandler)
	mux.HandleFunc("/api/ws", s.wsHandler)

	// The broadcast drainer runs for the server's whole lifetime, whether
	// requests arrive through Start or through Handler.
	go s.handleBroadcasts()

	return s
}

// Handler returns the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.WithField("addr", s.server.Addr).Info("http server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("http server failed")
		}
	}()
}

// Stop ends the broadcast drainer, closes all WebSocket connections and
// shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	close(s.done)
	s.clients.Range(func(key, _ any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	runs, failed := s.runs, s.failed
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Runs:      runs,
		Failed:    failed,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no optimization has run yet"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (s *Server) optimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doc, err := scenario.Parse(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	started := time.Now()
	s.solveMu.Lock()
	results, err := doc.Run()
	s.solveMu.Unlock()

	if err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		s.logger.WithError(err).WithField("scenario", doc.Name).Warn("optimization failed")
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	s.mu.Lock()
	s.last = results
	s.runs++
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"scenario": doc.Name,
		"cost":     results.Cost,
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Info("optimization completed")

	s.publish(results)
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	// Push the last results right away so a client does not wait for the
	// next optimization. The write happens before registration: until the
	// client is stored, the broadcast drainer cannot touch this connection.
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last != nil {
		if err := conn.WriteJSON(last); err != nil {
			s.logger.WithError(err).Debug("initial websocket write failed")
			conn.Close()
			return
		}
	}

	s.clients.Store(conn, true)
	s.logger.Debug("websocket client connected")

	defer func() {
		s.clients.Delete(conn)
		conn.Close()
		s.logger.Debug("websocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WithError(err).Debug("websocket read failed")
			}
			return
		}
	}
}

// publish queues results for the broadcast drainer. A stopped server
// discards the message instead of blocking the request handler.
func (s *Server) publish(results *scenario.Results) {
	message, err := json.Marshal(results)
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal results for broadcast")
		return
	}
	select {
	case s.broadcast <- message:
	case <-s.done:
	}
}

// handleBroadcasts sends queued messages to all connected clients. It is
// the only goroutine writing to registered connections.
func (s *Server) handleBroadcasts() {
	for {
		select {
		case message := <-s.broadcast:
			s.clients.Range(func(key, _ any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					s.logger.WithError(err).Debug("websocket write failed, dropping client")
					conn.Close()
					s.clients.Delete(conn)
				}
				return true
			})
		case <-s.done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
