package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Stream event types.
const (
	EventTypeTrade  = "trade"
	EventTypeFreeze = "freeze"
	EventTypeLaunch = "launch"
)

// StreamEvent is one message on a curve's live event feed.
type StreamEvent struct {
	Type    string      `json:"type"`
	CurveID string      `json:"curveId"`
	At      int64       `json:"at"` // ms
	Payload interface{} `json:"payload,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	sendBufferSize = 32
)

// Hub fans curve events out to websocket subscribers, one subscriber set
// per curve. Slow subscribers are dropped rather than blocking the feed.
type Hub struct {
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from app origins; auth happens at
			// the gateway in front of this service.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Broadcast sends an event to every subscriber of its curve.
func (h *Hub) Broadcast(ev StreamEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[stream] marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.CurveID] {
		select {
		case sub.send <- msg:
		default:
			// Subscriber is not keeping up; its writer will notice the
			// closed channel and drop the connection.
			go h.unsubscribe(ev.CurveID, sub)
		}
	}
}

// SubscriberCount returns the number of live subscribers for a curve.
func (h *Hub) SubscriberCount(curveID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[curveID])
}

// ServeWS upgrades the request and streams the curve's events until the
// client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, curveID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stream] upgrade: %v", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	if h.subs[curveID] == nil {
		h.subs[curveID] = make(map[*subscriber]struct{})
	}
	h.subs[curveID][sub] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(curveID, sub)
	h.readLoop(curveID, sub)
}

// readLoop consumes and discards client frames. Its only job is noticing
// the disconnect.
func (h *Hub) readLoop(curveID string, sub *subscriber) {
	defer h.unsubscribe(curveID, sub)

	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(curveID string, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			if !ok {
				sub.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unsubscribe(curveID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[curveID]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			close(sub.send)
			if len(set) == 0 {
				delete(h.subs, curveID)
			}
		}
	}
}
