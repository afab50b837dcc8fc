package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"liveclass-service/internal/app"
	"liveclass-service/internal/domain"
)

// Close codes sent when admission fails.
const (
	closeInvalidTicket = 4001
	closeForbidden     = 4003
)

// WSHandler admits realtime connections. Admission requires a single-use
// ticket passed as a query parameter; the instructor channel additionally
// requires staff privilege. Admitted connections are receive-only.
type WSHandler struct {
	service  *app.LiveService
	tickets  app.TicketStore
	hub      *Hub
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LiveService, tickets app.TicketStore, hub *Hub, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		tickets: tickets,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeInstructor(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, domain.AudienceInstructor)
}

func (h *WSHandler) ServeStudent(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, domain.AudienceStudent)
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, audience domain.Audience) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Consuming the ticket deletes it in the same step; a replay loses even
	// inside the TTL window.
	identity, err := h.tickets.Consume(r.Context(), r.URL.Query().Get("ticket"))
	if err != nil {
		if !errors.Is(err, domain.ErrTicketInvalid) {
			h.log.Error("ticket lookup failed", zap.Error(err))
		}
		h.reject(conn, closeInvalidTicket, "Invalid ticket.")
		return
	}
	if audience == domain.AudienceInstructor && !identity.Staff {
		h.reject(conn, closeForbidden, "Insufficient privilege.")
		return
	}

	// Catch-up: one snapshot for this client only, computed before admission
	// and enqueued atomically with it, so broadcasts triggered afterwards are
	// always ordered behind it.
	snapshot, err := h.service.LiveSnapshot(r.Context(), audience)
	if err != nil {
		h.log.Error("live snapshot on connect failed",
			zap.String("audience", string(audience)),
			zap.Int64("user_id", identity.UserID),
			zap.Error(err))
		h.reject(conn, websocket.CloseInternalServerErr, "")
		return
	}
	c := h.hub.register(audience, conn, snapshot)
	defer h.hub.unregister(audience, c)

	h.log.Info("websocket admitted",
		zap.String("audience", string(audience)),
		zap.Int64("user_id", identity.UserID))

	// No client-to-server application messages are defined; the read loop
	// only notices disconnects.
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHandler) reject(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
