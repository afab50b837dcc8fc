package http

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"liveclass-service/internal/domain"
)

// liveQuizMessage is the only message shape the realtime channels carry.
type liveQuizMessage struct {
	Type     string               `json:"type"`
	QuizData *domain.QuizSnapshot `json:"quiz_data"`
}

// client is one admitted websocket connection. Writes go through a buffered
// channel drained by a single writer goroutine, so broadcasts never write
// to the connection concurrently. pushMu serializes producers: a push always
// lands its own payload, so the newest state is never the one shed.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	pushMu sync.Mutex
}

// Hub holds the two audience groups and fans live-quiz snapshots out to
// them. Membership changes only on connect/disconnect; broadcasts only
// read it. This is a closed two-audience design, not a generic broker.
type Hub struct {
	log *zap.Logger

	mu     sync.RWMutex
	groups map[domain.Audience]map[*client]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log: log,
		groups: map[domain.Audience]map[*client]struct{}{
			domain.AudienceInstructor: {},
			domain.AudienceStudent:    {},
		},
	}
}

// register joins a connection to an audience group and starts its writer.
// The catch-up snapshot is enqueued under the same lock that admits the
// client, so every broadcast the client receives is ordered after it; a
// catch-up can never overwrite a newer broadcast in the queue.
func (h *Hub) register(audience domain.Audience, conn *websocket.Conn, snapshot *domain.QuizSnapshot) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 16),
	}

	h.mu.Lock()
	h.groups[audience][c] = struct{}{}
	if payload, ok := h.marshalLive(audience, snapshot); ok {
		c.send <- payload
	}
	h.mu.Unlock()

	go func() {
		for payload := range c.send {
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Debug("websocket write failed", zap.Error(err))
				h.unregister(audience, c)
				return
			}
		}
	}()
	return c
}

// unregister removes a connection from its group. No reconnection state is
// kept; a returning client is admitted from scratch with a fresh ticket.
func (h *Hub) unregister(audience domain.Audience, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.groups[audience][c]; !ok {
		return
	}
	delete(h.groups[audience], c)
	close(c.send)
}

// BroadcastLiveQuiz pushes the snapshot to every member of the audience's
// group. Best-effort: a slow client has its oldest queued message dropped,
// and nothing here can fail the transition that triggered the push.
func (h *Hub) BroadcastLiveQuiz(audience domain.Audience, snapshot *domain.QuizSnapshot) {
	payload, ok := h.marshalLive(audience, snapshot)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.groups[audience] {
		h.push(c, payload)
	}
}

func (h *Hub) marshalLive(audience domain.Audience, snapshot *domain.QuizSnapshot) ([]byte, bool) {
	payload, err := json.Marshal(liveQuizMessage{
		Type:     audience.MessageType(),
		QuizData: snapshot,
	})
	if err != nil {
		h.log.Error("marshal live quiz message", zap.Error(err))
		return nil, false
	}
	return payload, true
}

// push enqueues without blocking; only the latest state matters, so a full
// queue sheds its oldest entry. pushMu keeps shed-then-send atomic per
// client: no concurrent producer can refill the freed slot, so the payload
// being pushed always lands.
func (h *Hub) push(c *client, payload []byte) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	select {
	case c.send <- payload:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- payload:
	default:
	}
}

// GroupSize reports current membership, used by tests.
func (h *Hub) GroupSize(audience domain.Audience) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[audience])
}
