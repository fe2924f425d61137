package chathub

import (
	"encoding/json"
	"log"
	"time"

	"pulse/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	connID  string
	userID  string
	Conn    *websocket.Conn
	Gateway *Gateway
	Send    chan models.ServerEvent
}

// NewWebSocketClient wraps an upgraded, authenticated connection. The
// caller registers it with the gateway and then calls Run.
func NewWebSocketClient(g *Gateway, conn *websocket.Conn, userID string) *WebSocketClient {
	return &WebSocketClient{
		connID:  uuid.New().String(),
		userID:  userID,
		Conn:    conn,
		Gateway: g,
		Send:    make(chan models.ServerEvent, 256),
	}
}

func (c *WebSocketClient) ConnID() string                            { return c.connID }
func (c *WebSocketClient) UserID() string                            { return c.userID }
func (c *WebSocketClient) GetSendChannel() chan<- models.ServerEvent { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// readPump decodes inbound events and hands them to the gateway. It runs on
// this connection's own goroutine, so a blocking persistence call here never
// stalls anyone else's dispatch. Exiting the loop for any reason tears the
// connection down.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Gateway.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading from connection %s: %v", c.connID, err)
			}
			break
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("Error decoding event from user %s: %v", c.userID, err)
			continue
		}

		c.Gateway.HandleEvent(c, ev)
	}
}

// writePump drains Send into the socket and keeps the connection alive with
// pings. It exits when the gateway closes Send or the socket dies.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Gateway dropped us.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("Error encoding event for user %s: %v", c.userID, err)
				continue
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Flush whatever else is already queued into the same frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				extra, _ := json.Marshal(<-c.Send)
				w.Write(extra)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
