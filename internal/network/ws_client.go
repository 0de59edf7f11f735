// Package network follows a running instance over its control websocket.
package network

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nqd1/MacroRecorder/internal/protocol"
)

const reconnectDelay = 5 * time.Second

// WSClient handles the WebSocket connection to a running instance
type WSClient struct {
	hostAddr string
	token    string
	send     chan protocol.Message
	done     chan struct{}
	stopOnce sync.Once

	// Callbacks
	OnStatus func(status protocol.StatusPayload)
	OnLog    func(line string)
	OnSync   func(sync protocol.SyncResponsePayload)
	OnError  func(action, message string)

	mu          sync.Mutex
	isConnected bool
}

// NewWSClient creates a new WebSocket client for host:port
func NewWSClient(hostAddr, token string) *WSClient {
	return &WSClient{
		hostAddr: hostAddr,
		token:    token,
		send:     make(chan protocol.Message, 100),
		done:     make(chan struct{}),
	}
}

// Start begins the client loop (connect & process)
func (c *WSClient) Start() {
	go c.loop()
}

func (c *WSClient) loop() {
	for {
		c.connect()

		select {
		case <-c.done:
			return
		case <-time.After(reconnectDelay):
			log.Println("WS Client: Attempting reconnection...")
		}
	}
}

func (c *WSClient) connect() {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	log.Printf("WS Client: Connecting to %s", u.String())

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Printf("WS Client: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)
	log.Println("WS Client: Connected")

	c.SendSyncRequest()

	connDone := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(connDone)
		c.writePump(conn, stop)
	}()
	// Close unblocks the read pump
	go func() {
		select {
		case <-c.done:
			conn.Close()
		case <-stop:
		}
	}()

	c.readPump(conn)

	close(stop)
	<-connDone
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS Client: Read error: %v", err)
			}
			return
		}
		// Server traffic also proves liveness
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WS Client: Invalid message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("WS Client: Write error: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-stop:
			return
		}
	}
}

func (c *WSClient) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeStatus:
		var payload protocol.StatusPayload
		if err := msg.DecodePayload(&payload); err != nil {
			log.Printf("WS Client: Invalid status payload: %v", err)
			return
		}
		if c.OnStatus != nil {
			c.OnStatus(payload)
		}

	case protocol.TypeLog:
		var payload protocol.LogPayload
		if err := msg.DecodePayload(&payload); err != nil {
			log.Printf("WS Client: Invalid log payload: %v", err)
			return
		}
		if c.OnLog != nil {
			c.OnLog(payload.Line)
		}

	case protocol.TypeSyncResponse:
		var payload protocol.SyncResponsePayload
		if err := msg.DecodePayload(&payload); err != nil {
			log.Printf("WS Client: Invalid sync payload: %v", err)
			return
		}
		if c.OnSync != nil {
			c.OnSync(payload)
		}

	case protocol.TypeError:
		var payload protocol.ErrorPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return
		}
		if c.OnError != nil {
			c.OnError(payload.Action, payload.Message)
		}
	}
}

// SendCommand asks the instance to run an action
func (c *WSClient) SendCommand(cmd protocol.CommandPayload) {
	c.enqueue(protocol.Message{Type: protocol.TypeCommand, Payload: cmd})
}

// SendSyncRequest asks the instance for its status and recent log lines
func (c *WSClient) SendSyncRequest() {
	c.enqueue(protocol.Message{Type: protocol.TypeSyncRequest})
}

func (c *WSClient) enqueue(msg protocol.Message) {
	select {
	case c.send <- msg:
	default:
		log.Printf("WS Client: send queue full, dropping %s", msg.Type)
	}
}

func (c *WSClient) setConnected(v bool) {
	c.mu.Lock()
	c.isConnected = v
	c.mu.Unlock()
}

// IsConnected returns true if client is connected
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Close stops the client
func (c *WSClient) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}
