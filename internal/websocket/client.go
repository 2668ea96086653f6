package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер события
	maxEventSize = 512 * 1024 // 512KB
)

// ClientEventHandler обрабатывает прикладные события соединения
type ClientEventHandler interface {
	HandleEvent(client *Client, ev *Event) error
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Rooms:  make(map[uuid.UUID]bool),
		Hub:    hub,
	}
}

// ReadPump читает события от клиента. joinRoom/leaveRoom замыкаются на hub,
// остальное уходит в handler.
func (c *Client) ReadPump(handler ClientEventHandler) {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxEventSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev Event
		err := c.Conn.ReadJSON(&ev)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warnf("websocket error: %v", err)
			}
			break
		}

		// Личность соединения определяется один раз при апгрейде,
		// поле из события не принимается на веру
		ev.UserID = c.UserID

		switch ev.Type {
		case TypePong:
			continue

		case TypeJoinRoom:
			if ev.RoomID == nil {
				c.SendError(ErrInvalidEvent.Error())
				continue
			}
			ok, err := c.Hub.Authorize(c, *ev.RoomID)
			if err != nil {
				c.Hub.logger.Warnf("authorize failed for %s: %v", c.UserID, err)
				c.SendError(err.Error())
				continue
			}
			if !ok {
				c.SendError(ErrUnauthorized.Error())
				continue
			}
			c.Hub.JoinRoom(c, *ev.RoomID)
			continue

		case TypeLeaveRoom:
			if ev.RoomID != nil {
				c.Hub.LeaveRoom(c, *ev.RoomID)
			}
			continue
		}

		if handler != nil {
			if err := handler.HandleEvent(c, &ev); err != nil {
				c.Hub.logger.Warnf("error handling %s event: %v", ev.Type, err)
				c.SendError(err.Error())
			}
		}
	}
}

// WritePump отправляет события клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.Conn.WriteMessage(websocket.TextMessage, payload)

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendEvent(evType EventType, roomID *uuid.UUID, data interface{}) error {
	ev := Event{
		Type:      evType,
		RoomID:    roomID,
		UserID:    c.UserID,
		Timestamp: time.Now().UTC(),
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		ev.Data = jsonData
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	// Флаг closed читается под тем же замком, под которым канал закрывают:
	// во время shutdown записи в закрытый канал быть не может
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.Send <- payload:
		return nil
	default:
		return ErrClientQueueFull
	}
}

// closeSend закрывает канал отправки ровно один раз
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) SendError(errorMsg string) {
	c.SendEvent(TypeError, nil, map[string]string{
		"error": errorMsg,
	})
}

func (c *Client) IsInRoom(roomID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Rooms[roomID]
}

func (c *Client) GetRooms() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]uuid.UUID, 0, len(c.Rooms))
	for roomID := range c.Rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}
