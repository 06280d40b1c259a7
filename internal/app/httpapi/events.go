package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	optionsvc "github.com/covenant-network/option-layer/internal/app/services/option"
	"github.com/covenant-network/option-layer/pkg/logger"
)

const eventWriteTimeout = 5 * time.Second

// Hub fans committed transition events out to websocket subscribers.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]*subscriber
}

// subscriber serialises writes; the websocket allows one concurrent writer.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(ev optionsvc.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	return s.conn.WriteJSON(ev)
}

var _ optionsvc.EventSink = (*Hub)(nil)

// NewHub creates an empty event hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:   log,
		conns: make(map[*websocket.Conn]*subscriber),
	}
}

// Serve upgrades the request and subscribes the connection to the feed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.conns[conn] = &subscriber{conn: conn}
	h.mu.Unlock()

	// drain control frames; unsubscribe on first read error
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish sends the event to every live subscriber, dropping dead ones.
func (h *Hub) Publish(ev optionsvc.Event) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.conns))
	for _, sub := range h.conns {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(ev); err != nil {
			h.drop(sub.conn)
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]*subscriber)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
	}
	h.mu.Unlock()
	conn.Close()
}
