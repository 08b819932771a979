package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type streamEvent struct {
	Type  string    `json:"type"`
	Trade tradeView `json:"trade"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans settled trades out to websocket subscribers of the same game.
// A subscriber that falls streamBuffer messages behind is disconnected.
type Hub struct {
	log    *slog.Logger
	mu     sync.Mutex
	games  map[string]map[*subscriber]struct{}
	closed bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{log: logger, games: make(map[string]map[*subscriber]struct{})}
}

func (h *Hub) Publish(gameID string, trade tradeView) {
	msg, err := json.Marshal(streamEvent{Type: "trade", Trade: trade})
	if err != nil {
		h.log.Error("encode stream event", "game_id", gameID, "error", err.Error())
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.games[gameID] {
		select {
		case sub.send <- msg:
		default:
			h.log.Warn("dropping slow stream subscriber", "game_id", gameID)
			h.removeLocked(gameID, sub)
		}
	}
}

// Subscribers reports how many connections are following gameID.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.games[gameID])
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for gameID, subs := range h.games {
		for sub := range subs {
			h.removeLocked(gameID, sub)
		}
	}
}

// Serve upgrades the request and blocks until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, gameID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("stream upgrade failed", "game_id", gameID, "error", err.Error())
		return
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, streamBuffer)}
	if !h.add(gameID, sub) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(streamWriteWait))
		conn.Close()
		return
	}
	h.log.Info("stream subscriber joined", "game_id", gameID)

	go h.writePump(sub)
	h.readPump(sub)

	h.mu.Lock()
	h.removeLocked(gameID, sub)
	h.mu.Unlock()
	h.log.Info("stream subscriber left", "game_id", gameID)
}

func (h *Hub) add(gameID string, sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	subs, ok := h.games[gameID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.games[gameID] = subs
	}
	subs[sub] = struct{}{}
	return true
}

// removeLocked closes sub.send exactly once: only the caller that finds sub
// still registered closes it.
func (h *Hub) removeLocked(gameID string, sub *subscriber) {
	subs, ok := h.games[gameID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(h.games, gameID)
	}
}

// readPump discards client frames; it exists to process control frames and
// notice disconnects.
func (h *Hub) readPump(sub *subscriber) {
	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := sub.conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
