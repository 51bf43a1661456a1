// Package websocket streams reminder messages to connected clients. Patients
// receive their own reminders; administrators receive every reminder.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/covidtrack/covid-server/internal/platform/auth"
	"github.com/covidtrack/covid-server/internal/platform/notification"
)

// TopicAll receives every published message.
const TopicAll = "all"

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
)

// PatientTopic is the topic carrying one patient's reminders.
func PatientTopic(patientID string) string {
	return "patient:" + patientID
}

// TopicFor picks the topic a principal is allowed to follow.
func TopicFor(p auth.Principal) (string, error) {
	switch p.Role {
	case auth.RoleAdmin:
		return TopicAll, nil
	case auth.RoleUser:
		return PatientTopic(p.UserID.String()), nil
	default:
		return "", fmt.Errorf("role %s has no reminder feed", p.Role)
	}
}

// Client is one connected subscriber.
type Client struct {
	ID    string
	Topic string
	Send  chan []byte
}

func newClient(topic string) *Client {
	return &Client{ID: uuid.New().String(), Topic: topic, Send: make(chan []byte, sendBuffer)}
}

// Hub tracks connected clients by topic. It satisfies notification.Publisher
// so it can sit next to the broker publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	dropped int
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.Topic] == nil {
		h.clients[c.Topic] = make(map[*Client]struct{})
	}
	h.clients[c.Topic][c] = struct{}{}
}

// Unregister removes c and closes its Send channel. Calling it twice is a
// no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.clients[c.Topic]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.clients, c.Topic)
	}
	close(c.Send)
}

// Publish fans m out to the patient's topic and to TopicAll. Slow clients
// whose buffer is full miss the message.
func (h *Hub) Publish(_ context.Context, m notification.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range []string{PatientTopic(m.PatientID), TopicAll} {
		for c := range h.clients[topic] {
			select {
			case c.Send <- data:
			default:
				h.dropped++
			}
		}
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, subs := range h.clients {
		for c := range subs {
			close(c.Send)
		}
		delete(h.clients, topic)
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.clients {
		n += len(subs)
	}
	return n
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Dropped counts messages skipped because a client buffer was full.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests to a reminder stream.
type Handler struct {
	hub    *Hub
	logger zerolog.Logger
}

func NewHandler(hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications/stream", h.Connect, auth.RequireRole(auth.RoleUser, auth.RoleAdmin))
}

func (h *Handler) Connect(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	topic, err := TopicFor(p)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		return nil
	}

	client := newClient(topic)
	h.hub.Register(client)
	h.logger.Debug().Str("client_id", client.ID).Str("topic", topic).Msg("reminder stream connected")

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

// readPump discards inbound frames and unregisters the client once the
// connection is gone.
func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()
	for message := range client.Send {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = ws.WriteControl(gorillawebsocket.CloseMessage,
		gorillawebsocket.FormatCloseMessage(gorillawebsocket.CloseGoingAway, ""), time.Now().Add(writeWait))
}
