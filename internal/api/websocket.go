package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/rigerr"
)

const (
	wsWriteWait     = 200 * time.Millisecond
	previewQueueLen = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// DrawAck is written back on a draw socket after a commit or a rejected message.
type DrawAck struct {
	Mode      string `json:"mode,omitempty"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) registerWebsocketRoutes() {
	s.mux.HandleFunc("GET /ws/draw", s.handleDrawWS)
	s.mux.HandleFunc("GET /ws/preview", s.handlePreviewWS)
}

// handleDrawWS feeds binary messages to the active drawer. Each message is a fragment,
// or a whole frame when the socket was opened with ?frame=1. Empty messages restart
// fragment reassembly.
func (s *Server) handleDrawWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", authRealm)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	whole := r.URL.Query().Get("frame") == "1"

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Draw websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.logger.Info("Draw client connected", "remote_addr", r.RemoteAddr, "whole_frames", whole)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Draw client read failed", "error", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		ack, reply := s.drawMessage(r.Context(), data, whole)
		if !reply {
			continue
		}
		payload, _ := json.Marshal(ack)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// drawMessage applies one draw message and reports whether the client needs an ack.
// Accumulated fragments are not acknowledged individually.
func (s *Server) drawMessage(ctx context.Context, data []byte, whole bool) (DrawAck, bool) {
	target, ok := s.driver.ActiveBufferTarget()
	if !ok {
		return DrawAck{Error: "active mode does not accept frames"}, true
	}

	var delivered bool
	var err error
	if whole {
		delivered, err = target.Update(ctx, data)
	} else {
		delivered, err = target.PotentialUpdate(ctx, data)
	}

	ack := DrawAck{Mode: target.Name(), Delivered: delivered}
	if err != nil {
		if !errors.Is(err, rigerr.ErrOverflow) {
			s.logger.Warn("Websocket draw failed", "mode", target.Name(), "error", err)
		}
		ack.Error = err.Error()
		return ack, true
	}
	return ack, whole || delivered
}

// handlePreviewWS streams every committed drawer frame as a binary message.
func (s *Server) handlePreviewWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", authRealm)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Preview websocket upgrade failed", "error", err)
		return
	}
	s.preview.serve(conn)
}

// previewHub fans committed frames out to preview sockets. Slow clients drop frames.
type previewHub struct {
	logger  *slog.Logger
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
}

func newPreviewHub(logger *slog.Logger) *previewHub {
	return &previewHub{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// attach subscribes the hub to committed frames on bus.
func (h *previewHub) attach(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.FrameCommittedEvent) {
		h.broadcast(e.Data)
	})
}

func (h *previewHub) broadcast(frame []byte) {
	if len(frame) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, queue := range h.clients {
		select {
		case queue <- frame:
		default:
		}
	}
}

func (h *previewHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// serve registers conn and blocks until the client goes away.
func (h *previewHub) serve(conn *websocket.Conn) {
	queue := make(chan []byte, previewQueueLen)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = queue
	h.mu.Unlock()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-gone:
			return
		case frame, ok := <-queue:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				h.logger.Debug("Preview write failed", "error", err)
				return
			}
		}
	}
}

// close disconnects every preview client and rejects new ones.
func (h *previewHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, queue := range h.clients {
		close(queue)
		delete(h.clients, conn)
	}
}
