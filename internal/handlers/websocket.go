package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/avelichko/triplink/internal/middleware"
	ws "github.com/avelichko/triplink/internal/websocket"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub         *ws.Hub
	chatHandler *ChatHandler
	upgrader    websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, chatHandler *ChatHandler) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		chatHandler: chatHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Проверить origin в prod
				return true
			},
		},
	}
}

// HandleWebSocket обрабатывает апгрейд соединения. Личность пользователя
// резолвится здесь один раз и живет на клиенте до конца соединения —
// connect и disconnect читают одно и то же значение.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		// Соединение без личности получает connection-scoped ID.
		// За штатным роутером сюда не попасть: маршрут за auth middleware.
		userID = uuid.New()
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, userID.(uuid.UUID))

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.chatHandler)
}
