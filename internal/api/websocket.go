package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nqd1/MacroRecorder/internal/controller"
	"github.com/nqd1/MacroRecorder/internal/protocol"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 256
	syncLogLines    = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API only listens on loopback
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.Mutex
	broadcast  chan protocol.Message
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// WebSocketClient represents a connected watcher
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message, broadcastBuffer),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.unregister:
			m.clientsMu.Lock()
			if m.clients[client] {
				delete(m.clients, client)
				close(client.send)
				log.Printf("WS: Client unregistered from %s. Total clients: %d", client.ip, len(m.clients))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				close(client.send)
				delete(m.clients, client)
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

// publish turns a controller notification into broadcast messages. It never
// blocks the controller; messages are dropped when the hub falls behind.
func (m *WSManager) publish(n controller.Notification) {
	m.enqueue(protocol.Message{Type: protocol.TypeStatus, Payload: statusPayload(n.Status)})
	if n.Line != "" {
		m.enqueue(protocol.Message{Type: protocol.TypeLog, Payload: protocol.LogPayload{Line: n.Line}})
	}
}

func (m *WSManager) enqueue(msg protocol.Message) {
	select {
	case m.broadcast <- msg:
	default:
		log.Printf("WS: broadcast queue full, dropping %s message", msg.Type)
	}
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			close(client.send)
			delete(m.clients, client)
		}
	}
}

// add registers a client before its pumps start so replies to its first
// message are never lost
func (m *WSManager) add(c *WebSocketClient) bool {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	select {
	case <-m.shutdown:
		return false
	default:
	}
	m.clients[c] = true
	log.Printf("WS: New client registered from %s. Total clients: %d", c.ip, len(m.clients))
	return true
}

// sendTo queues a message for one client if it is still registered
func (m *WSManager) sendTo(c *WebSocketClient, msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WS: Failed to marshal reply: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if !m.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, clientBuffer),
		ip:      r.RemoteAddr,
	}

	if !m.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	srv := c.manager.server
	switch msg.Type {
	case protocol.TypeCommand:
		var cmd protocol.CommandPayload
		if err := msg.DecodePayload(&cmd); err != nil {
			log.Printf("WS: Invalid command payload: %v", err)
			return
		}
		log.Printf("WS: Received %s command from %s", cmd.Action, c.ip)

		// Stop joins the player loop; keep the read pump responsive
		go func() {
			if _, err := srv.execute(cmd); err != nil {
				log.Printf("WS: %s failed: %v", cmd.Action, err)
				c.manager.sendTo(c, protocol.Message{
					Type:    protocol.TypeError,
					Payload: protocol.ErrorPayload{Action: cmd.Action, Message: err.Error()},
				})
			}
		}()

	case protocol.TypeSyncRequest:
		logs := srv.ctrl.Logs()
		if len(logs) > syncLogLines {
			logs = logs[len(logs)-syncLogLines:]
		}
		c.manager.sendTo(c, protocol.Message{
			Type: protocol.TypeSyncResponse,
			Payload: protocol.SyncResponsePayload{
				Status: statusPayload(srv.ctrl.Status()),
				Logs:   logs,
			},
		})
	}
}
