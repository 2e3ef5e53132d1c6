package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/XavierBriggs/Pythia/pkg/contracts"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

const broadcastBufferSize = 64

// Hub maintains the set of active clients and pushes every fresh snapshot to them
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan ServerMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	upgrader websocket.Upgrader
	log      *zap.Logger
}

var _ contracts.UpdateListener = (*Hub)(nil)

// NewHub creates a hub; allowedOrigins empty or containing "*" accepts any origin
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan ServerMessage, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.Named("hub"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Run starts the hub's main loop; it returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.clientsMu.Unlock()
			h.log.Debug("client connected", zap.String("client_id", c.ID), zap.Int("total", total))

		case c := <-h.unregister:
			h.removeClient(c)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Name identifies the listener in logs and metrics
func (h *Hub) Name() string {
	return "live-hub"
}

// OnOddsUpdated queues the snapshot for every subscribed client.
// A full broadcast buffer drops the update rather than stalling the scheduler.
func (h *Hub) OnOddsUpdated(ctx context.Context, snapshot models.Snapshot) error {
	msg := ServerMessage{
		Type: MessageTypeOddsUpdated,
		Payload: OddsUpdated{
			Sport:     snapshot.SportKey,
			Events:    snapshot.Events,
			FetchedAt: snapshot.Timestamp,
		},
		Timestamp: time.Now().UTC(),
	}

	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast buffer full, dropping update", zap.String("sport", snapshot.SportKey))
	}
	return nil
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and starts the client's pumps under ctx
func (h *Hub) ServeWS(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		c := newClient(uuid.NewString(), conn, h)
		h.Register(c)

		go c.writePump(ctx)
		go c.readPump(ctx)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closeSend()
		h.log.Debug("client disconnected", zap.String("client_id", c.ID), zap.Int("total", len(h.clients)))
	}
}

// broadcastMessage delivers to every interested client, dropping those whose buffer is full
func (h *Hub) broadcastMessage(msg ServerMessage) {
	sport := ""
	if update, ok := msg.Payload.(OddsUpdated); ok {
		sport = update.Sport
	}

	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		if sport != "" && !c.Wants(sport) {
			continue
		}
		if !c.trySend(msg) {
			h.log.Warn("client too slow, disconnecting", zap.String("client_id", c.ID))
			h.removeClient(c)
		}
	}
}

// shutdown closes all client connections
func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for c := range h.clients {
		c.closeSend()
		delete(h.clients, c)
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
