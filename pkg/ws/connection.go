package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is a single websocket client. All writes go through the send
// channel; the write pump owns the underlying socket.
type Connection struct {
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func (c *Connection) trySend(message []byte) {
	select {
	case c.send <- message:
	default:
		// send buffer full, the consumer is too slow to keep
		c.close()
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.hub.remove(c)
		close(c.send)
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.close()
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	// clients only listen; inbound frames are drained for control handling
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
