package api

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thereceipt/label-engine/internal/engine"
)

// WebSocket message types
const (
	EventExport   = "export"
	EventCommand  = "command"
	EventResponse = "response"
	EventError    = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
	mu     sync.Mutex
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, 256),
		server: s,
	}

	s.log.Info("📡 WebSocket client connected")

	s.addClient(client)
	go client.readPump()
	go client.writePump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.mu.Lock()
		err := c.conn.WriteJSON(msg)
		c.mu.Unlock()

		if err != nil {
			c.server.log.Warn("websocket write error", "err", err)
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
		c.server.log.Info("📡 WebSocket client disconnected")
	}()

	for {
		var msg WSMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Warn("websocket error", "err", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	data, _ := msg.Data.(map[string]interface{})

	switch msg.Event {
	case EventExport:
		c.handleExportEvent(data)
	case EventCommand:
		c.handleCommandEvent(data)
	default:
		c.sendError(fmt.Sprintf("unknown event: %s", msg.Event))
	}
}

func (c *WSClient) handleExportEvent(data map[string]interface{}) {
	raw, _ := json.Marshal(data)
	var req engine.ExportRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError(fmt.Sprintf("invalid export request: %v", err))
		return
	}

	id, err := c.server.engine.SubmitExport(req)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	c.sendResponse(map[string]interface{}{
		"success": true,
		"job_id":  id,
	})
}

func (c *WSClient) handleCommandEvent(data map[string]interface{}) {
	cmd, ok := data["command"].(string)
	if !ok || cmd == "" {
		c.sendError("command is required")
		return
	}

	c.server.sessionMu.Lock()
	result := c.server.executor.Execute(cmd)
	c.server.sessionMu.Unlock()

	if !result.Success {
		c.sendError(result.Error)
		return
	}
	c.sendResponse(map[string]interface{}{
		"success": true,
		"message": result.Message,
		"data":    result.Data,
	})
}

func (c *WSClient) sendResponse(data map[string]interface{}) {
	c.send <- WSMessage{
		Event: EventResponse,
		Data:  data,
	}
}

func (c *WSClient) sendError(message string) {
	c.send <- WSMessage{
		Event: EventError,
		Data: map[string]interface{}{
			"error": message,
		},
	}
}

func (s *Server) addClient(client *WSClient) {
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
}

func (s *Server) removeClient(client *WSClient) {
	s.clientsMu.Lock()
	if s.clients[client] {
		delete(s.clients, client)
		close(client.send)
	}
	s.clientsMu.Unlock()
}

// broadcast forwards an engine event to every connected client
func (s *Server) broadcast(ev engine.Event) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	message := WSMessage{Event: ev.Type, Data: ev.Data}
	for client := range s.clients {
		select {
		case client.send <- message:
		default:
			// Client send buffer full, skip
		}
	}
}
