package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ATHScanner/internal/logger"
	"ATHScanner/internal/model"
	"ATHScanner/internal/recorder"
)

const writeWait = 5 * time.Second

// Event is one message on the live stream.
type Event struct {
	Type     string                    `json:"type"` // "progress" or "report"
	Progress *model.ScanProgress       `json:"progress,omitempty"`
	Report   *recorder.ResultsDocument `json:"report,omitempty"`
}

// Hub broadcasts progress and finished reports to websocket clients. New
// clients get the latest progress first.
type Hub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	last     *model.ScanProgress
	loc      *time.Location
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

func NewHub(loc *time.Location) *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
		loc:   loc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger.GetLogger().WithComponent("hub"),
	}
}

func (h *Hub) Publish(_ context.Context, report *model.ScanReport) error {
	h.broadcast(Event{Type: "report", Report: recorder.NewResultsDocument(report, h.loc)})
	return nil
}

func (h *Hub) UpdateProgress(p model.ScanProgress) {
	h.mu.Lock()
	h.last = &p
	h.mu.Unlock()
	h.broadcast(Event{Type: "progress", Progress: &p})
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %v", err)
		return
	}

	// Register and send the snapshot under one lock so no broadcast can
	// slip in between.
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	if h.last != nil {
		if err := h.write(conn, Event{Type: "progress", Progress: h.last}); err != nil {
			h.drop(conn)
		}
	}
	h.mu.Unlock()

	go h.readLoop(conn)
}

// readLoop discards client messages and unregisters on disconnect.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.mu.Lock()
			h.drop(conn)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := h.write(conn, ev); err != nil {
			h.log.Debugf("drop websocket client: %v", err)
			h.drop(conn)
		}
	}
}

// write and drop require h.mu.
func (h *Hub) write(conn *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) drop(conn *websocket.Conn) {
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		h.drop(conn)
	}
}
