// Package websocket fans domain events out to connected clients. Each
// identity may hold several device connections; events reach every device
// except, optionally, the one that caused them.
package websocket

import (
	"log"
	"sync"
	"time"
)

type ClientMessage struct {
	Client  *Client
	Message *Message
}

type Manager struct {
	clients        map[string]*Client
	identityIndex  map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	HandleMessage  chan *ClientMessage
	maxConnPerUser int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	messageHandler MessageHandler
}

type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
}

func NewManager(maxConnPerUser int, writeWait, pongWait, pingPeriod time.Duration) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		identityIndex:  make(map[string]map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		HandleMessage:  make(chan *ClientMessage),
		maxConnPerUser: maxConnPerUser,
		writeWait:      writeWait,
		pongWait:       pongWait,
		pingPeriod:     pingPeriod,
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.identityIndex[client.Identity] == nil {
		m.identityIndex[client.Identity] = make(map[string]bool)
	}

	if len(m.identityIndex[client.Identity]) >= m.maxConnPerUser {
		log.Printf("max connections reached for identity %s", client.Identity)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.identityIndex[client.Identity][client.ID] = true

	log.Printf("client registered: %s (identity: %s, device: %s)", client.ID, client.Identity, client.DeviceID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.identityIndex[client.Identity], client.ID)

		if len(m.identityIndex[client.Identity]) == 0 {
			delete(m.identityIndex, client.Identity)
		}

		close(client.Send)
		log.Printf("client unregistered: %s", client.ID)
	}
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	msg := clientMsg.Message

	if msg.Type == TypePing {
		pong, err := NewMessage(TypePong, nil)
		if err == nil {
			m.SendToClient(clientMsg.Client.ID, pong)
		}
		return
	}

	if m.messageHandler != nil {
		if err := m.messageHandler.HandleWebSocketMessage(clientMsg.Client, msg); err != nil {
			log.Printf("error handling message: %v", err)
		}
	}
}

// BroadcastToIdentity sends to every device of the identity, skipping the
// device that originated the change when excludeDeviceID is set.
func (m *Manager) BroadcastToIdentity(identity string, message *Message, excludeDeviceID string) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	clientIDs, exists := m.identityIndex[identity]
	if !exists {
		return nil
	}

	for clientID := range clientIDs {
		client := m.clients[clientID]
		if client.DeviceID != excludeDeviceID {
			select {
			case client.Send <- message:
			default:
				log.Printf("client %s send buffer full, closing connection", clientID)
				m.Unregister <- client
			}
		}
	}

	return nil
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return nil
	}

	select {
	case client.Send <- message:
	default:
		log.Printf("client %s send buffer full", clientID)
	}

	return nil
}

func (m *Manager) IdentityConnections(identity string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if clients, exists := m.identityIndex[identity]; exists {
		return len(clients)
	}
	return 0
}
