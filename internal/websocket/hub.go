package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/progress"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 256
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
)

// Origin is checked by auth.TokenMiddleware on the /ws/events route: local
// mode only admits loopback origins, token mode admits bearer holders.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans operation events out to every connected websocket client.
// Publishing never blocks: when the hub or a client falls behind, messages
// are dropped rather than stalling the archive operation that produced them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logging.Logger
	now        func() time.Time
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger.With(zap.String("component", "websocket_hub")),
		now:        time.Now,
	}
}

// Run dispatches until Stop is called.
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")

	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()

			h.logger.Info("WebSocket client connected",
				zap.Int("client_count", clientCount))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			clientCount := len(h.clients)
			h.mutex.Unlock()

			h.logger.Info("WebSocket client disconnected",
				zap.Int("client_count", clientCount))

		case message := <-h.broadcast:
			h.mutex.Lock()
			recipientCount := 0
			failedCount := 0

			for client := range h.clients {
				select {
				case client.send <- message:
					recipientCount++
				default:
					h.logger.Warn("WebSocket client too slow, removing client")
					delete(h.clients, client)
					close(client.send)
					failedCount++
				}
			}
			h.mutex.Unlock()

			h.logger.Debug("Message broadcast completed",
				zap.Int("recipient_count", recipientCount),
				zap.Int("failed_count", failedCount))
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(messageType MessageType, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal websocket event",
			zap.String("message_type", string(messageType)),
			zap.Error(err))
		return
	}

	select {
	case <-h.done:
	case h.broadcast <- data:
	default:
		h.logger.Warn("WebSocket broadcast queue full, dropping message",
			zap.String("message_type", string(messageType)))
	}
}

func (h *Hub) base(messageType MessageType) BaseMessage {
	return BaseMessage{Type: messageType, Timestamp: h.now().UTC()}
}

func (h *Hub) BroadcastOperationProgress(operationID string, kind archive.Kind, event progress.Event) {
	h.publish(MessageTypeOperationProgress, OperationProgressEvent{
		BaseMessage: h.base(MessageTypeOperationProgress),
		OperationID: operationID,
		Kind:        string(kind),
		Percent:     event.Percent,
		Message:     event.Message,
	})
}

func (h *Hub) BroadcastOperationComplete(operationID string, kind archive.Kind, result archive.OperationResult) {
	h.publish(MessageTypeOperationComplete, OperationCompleteEvent{
		BaseMessage: h.base(MessageTypeOperationComplete),
		OperationID: operationID,
		Kind:        string(kind),
		Result:      result,
	})
}

// Reporter adapts the hub into a progress sink for one operation.
func (h *Hub) Reporter(operationID string, kind archive.Kind) progress.Reporter {
	return progress.Func(func(e progress.Event) {
		h.BroadcastOperationProgress(operationID, kind, e)
	})
}

// Notify pushes a completion notification to connected clients. It satisfies
// notify.Notifier and never fails.
func (h *Hub) Notify(_ context.Context, title, body string) error {
	h.publish(MessageTypeNotification, NotificationEvent{
		BaseMessage: h.base(MessageTypeNotification),
		Title:       title,
		Body:        body,
	})
	return nil
}

func (h *Hub) ServeWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			zap.Error(err))
		return err
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()

	return nil
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients never send anything meaningful; reading only drives pong and
	// close handling.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Unexpected WebSocket close error", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
