package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one device connection of an identity. Its send channel carries
// typed messages; encoding to the wire happens in the write pump.
type Client struct {
	ID       string
	Identity string
	DeviceID string
	Conn     *websocket.Conn
	Manager  *Manager
	Send     chan *Message
}

func NewClient(id, identity, deviceID string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		DeviceID: deviceID,
		Conn:     conn,
		Manager:  manager,
		Send:     make(chan *Message, 256),
	}
}

// ReadPump decodes inbound frames into messages and hands them to the
// manager. Frames that do not parse are dropped, not fatal.
func (c *Client) ReadPump() {
	defer func() {
		c.Manager.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("dropping malformed frame from client %s: %v", c.ID, err)
			continue
		}

		c.Manager.HandleMessage <- &ClientMessage{
			Client:  c,
			Message: &msg,
		}
	}
}

// WritePump writes one frame per queued message and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Manager.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
