// Package ws pushes engine events to members' browser sessions over
// websockets. Delivery is best-effort: a slow or absent client never blocks
// or fails a resolution.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomasvalente/coinraid-backend/internal/domain"
)

const (
	writeTimeout   = 5 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	sessionBacklog = 16
)

// Hub keeps the live sessions per member and implements domain.Notifier.
type Hub struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[uuid.UUID]map[*session]struct{}
}

type session struct {
	out chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // same-host party UI
		},
		sessions: make(map[uuid.UUID]map[*session]struct{}),
	}
}

// eventMsg is the wire shape of a pushed event.
type eventMsg struct {
	Type    string              `json:"type"`
	Kind    domain.EventKind    `json:"kind"`
	Payload domain.EventPayload `json:"payload"`
	At      time.Time           `json:"at"`
}

// Notify implements domain.Notifier. Sends are non-blocking; a session whose
// backlog is full just misses the event.
func (h *Hub) Notify(memberID uuid.UUID, kind domain.EventKind, payload domain.EventPayload) {
	b, err := json.Marshal(eventMsg{
		Type:    "event",
		Kind:    kind,
		Payload: payload,
		At:      time.Now().UTC(),
	})
	if err != nil {
		log.Printf("ws: marshal %s event: %v", kind, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sess := range h.sessions[memberID] {
		select {
		case sess.out <- b:
		default:
			// Slow client; drop.
		}
	}
}

// Handler upgrades GET /ws?member_id=... and keeps the connection registered
// until it drops.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		memberID, err := uuid.Parse(r.URL.Query().Get("member_id"))
		if err != nil {
			http.Error(rw, "invalid member_id", http.StatusBadRequest)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := &session{out: make(chan []byte, sessionBacklog)}
		h.register(memberID, sess)
		defer h.unregister(memberID, sess)

		done := make(chan struct{})

		// Writer goroutine: pushed events plus keepalive pings.
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case b, ok := <-sess.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						return
					}
				case <-ticker.C:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop: clients send nothing meaningful; this only notices
		// pongs and disconnects.
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		close(done)
	}
}

func (h *Hub) register(memberID uuid.UUID, sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[memberID] == nil {
		h.sessions[memberID] = make(map[*session]struct{})
	}
	h.sessions[memberID][sess] = struct{}{}
}

func (h *Hub) unregister(memberID uuid.UUID, sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions[memberID], sess)
	if len(h.sessions[memberID]) == 0 {
		delete(h.sessions, memberID)
	}
}

// SessionCount reports how many live sessions a member has. For tests.
func (h *Hub) SessionCount(memberID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[memberID])
}
