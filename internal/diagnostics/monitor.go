package diagnostics

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/basilfx/knx-devstack/internal/infrastructure/logging"
	"github.com/basilfx/knx-devstack/internal/knx"
)

// WebSocket tuning constants.
const (
	// monitorSendBufferSize is the per-client outbound message buffer. A
	// client that cannot drain its buffer is disconnected rather than
	// allowed to stall the broadcast path.
	monitorSendBufferSize = 64

	monitorWriteWait = 10 * time.Second
	monitorPongWait  = 60 * time.Second
	monitorPingEvery = 45 * time.Second
)

// MonitorMessage is one telegram observation streamed to monitor
// clients.
type MonitorMessage struct {
	Ts             string `json:"ts"`
	Direction      string `json:"direction"` // "rx" or "tx"
	Raw            string `json:"raw"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	GroupAddressed bool   `json:"group_addressed"`
}

// upgrader configures the WebSocket upgrader. Origin checking is not
// enforced — the diagnostics surface is LAN-scoped and already gated by
// the bearer token.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Hub fans telegram observations out to every connected monitor client.
type Hub struct {
	logger  *logging.Logger
	clients map[*monitorClient]struct{}
	mu      sync.RWMutex
}

type monitorClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*monitorClient]struct{}),
	}
}

// Tap records one telegram crossing the link driver. Wire it as a tap on
// the protocol stack; direction is "rx" or "tx". Serialisation happens
// once per observation, not per client.
func (h *Hub) Tap(direction string, t knx.Telegram) {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	msg := MonitorMessage{
		Ts:             time.Now().UTC().Format(time.RFC3339Nano),
		Direction:      direction,
		Raw:            hex.EncodeToString(t),
		Source:         t.Source().FormatPhysical(),
		Destination:    t.Destination().FormatPhysical(),
		GroupAddressed: t.GroupAddressed(),
	}
	if msg.GroupAddressed {
		msg.Destination = t.Destination().FormatGroup()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(payload)
}

// broadcast fans one payload out to every registered client. The read
// lock is held across the sends so no unregister (which closes the send
// channel) can interleave with them; slow consumers are collected and
// dropped after the lock is released.
func (h *Hub) broadcast(payload []byte) {
	var slow []*monitorClient

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow consumer: drop the connection, not the broadcast.
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
		c.conn.Close()
	}
}

func (h *Hub) register(c *monitorClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("monitor client connected", "clients", h.clientCount())
}

// unregister removes a client. Only the goroutine that wins the map
// removal closes the send channel, preventing double-close during
// shutdown races.
func (h *Hub) unregister(c *monitorClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects every monitor client; used at shutdown. Only the
// connections are closed here — the read pumps observe the close and
// run the usual unregister path, so send channels are closed exactly
// once and never while a broadcast may still be writing to them.
func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*monitorClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

// handleMonitor upgrades the request and streams telegram observations
// until the client disconnects.
func (h *Hub) handleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("monitor upgrade failed", "error", err)
		return
	}

	client := &monitorClient{
		conn: conn,
		send: make(chan []byte, monitorSendBufferSize),
	}
	h.register(client)

	go h.writePump(client)
	h.readPump(client)
}

// readPump discards inbound frames (the monitor is one-way) and tears
// the client down when the connection drops.
func (h *Hub) readPump(c *monitorClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512) //nolint:mnd // monitor clients only send control frames
	//nolint:errcheck // deadline errors surface on the next ReadMessage
	c.conn.SetReadDeadline(time.Now().Add(monitorPongWait))
	c.conn.SetPongHandler(func(string) error {
		//nolint:errcheck // deadline errors surface on the next ReadMessage
		c.conn.SetReadDeadline(time.Now().Add(monitorPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the client's send buffer and keeps the connection
// alive with pings.
func (h *Hub) writePump(c *monitorClient) {
	ticker := time.NewTicker(monitorPingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			//nolint:errcheck // write errors surface as a failed WriteMessage
			c.conn.SetWriteDeadline(time.Now().Add(monitorWriteWait))
			if !ok {
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // write errors surface as a failed WriteMessage
			c.conn.SetWriteDeadline(time.Now().Add(monitorWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
