package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

type HubOptions struct {
	Logger       *logrus.Logger
	CheckOrigin  func(r *http.Request) bool
	OnConnect    func(r *http.Request, hub *Hub, conn *Connection) error
	OnDisconnect func(conn *Connection)
}

// Hub tracks websocket connections and the logical channels they joined.
// Broadcasts never block: a connection whose send buffer is full is dropped
// and left to reconnect.
type Hub struct {
	mu           sync.RWMutex
	upgrader     websocket.Upgrader
	logger       *logrus.Logger
	channels     map[string]map[*Connection]struct{}
	connections  map[*Connection]struct{}
	onConnect    func(r *http.Request, hub *Hub, conn *Connection) error
	onDisconnect func(conn *Connection)
}

func NewHub(opts *HubOptions) *Hub {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return false }
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger:       opts.Logger,
		channels:     make(map[string]map[*Connection]struct{}),
		connections:  make(map[*Connection]struct{}),
		onConnect:    opts.OnConnect,
		onDisconnect: opts.OnDisconnect,
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Warn("ws: upgrade failed")
		}
		return
	}

	conn := &Connection{
		hub:  h,
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.connections[conn] = struct{}{}
	h.mu.Unlock()

	if h.onConnect != nil {
		if err := h.onConnect(r, h, conn); err != nil {
			if h.logger != nil {
				h.logger.WithError(err).Warn("ws: connect hook rejected connection")
			}
			h.remove(conn)
			_ = ws.Close()
			return
		}
	}

	go conn.writePump()
	go conn.readPump()
}

func (h *Hub) JoinChannel(channel string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[*Connection]struct{})
		h.channels[channel] = set
	}
	set[conn] = struct{}{}
}

func (h *Hub) LeaveChannel(channel string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.channels[channel]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.channels, channel)
		}
	}
}

// BroadcastToChannel queues message to every member of channel. Slow
// consumers are disconnected rather than awaited.
func (h *Hub) BroadcastToChannel(channel string, message []byte) {
	h.mu.RLock()
	members := make([]*Connection, 0, len(h.channels[channel]))
	for conn := range h.channels[channel] {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	for _, conn := range members {
		conn.trySend(message)
	}
}

// Broadcast queues message to every connection.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	members := make([]*Connection, 0, len(h.connections))
	for conn := range h.connections {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	for _, conn := range members {
		conn.trySend(message)
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) ChannelSize(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	if _, ok := h.connections[conn]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.connections, conn)
	for channel, set := range h.channels {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.channels, channel)
		}
	}
	h.mu.Unlock()

	if h.onDisconnect != nil {
		h.onDisconnect(conn)
	}
}
