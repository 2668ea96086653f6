package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelichko/triplink/internal/database"
	"github.com/avelichko/triplink/internal/handlers/dto"
	"github.com/avelichko/triplink/internal/middleware"
	"github.com/avelichko/triplink/internal/models"
	"github.com/avelichko/triplink/internal/websocket"
)

// HTTPMessageHandler — история сообщений и HTTP-отправка для клиентов
// без живого соединения. Идемпотентность та же, что у WebSocket-пути:
// дедупликация по client_message_id.
type HTTPMessageHandler struct {
	db     *database.Database
	chat   *ChatHandler
	logger *zap.SugaredLogger
}

func NewHTTPMessageHandler(db *database.Database, chat *ChatHandler, logger *zap.SugaredLogger) *HTTPMessageHandler {
	return &HTTPMessageHandler{db: db, chat: chat, logger: logger}
}

// GetRoomMessages получает историю комнаты: limit сообщений до before.
// Это путь догона для соединений, пропустивших live-рассылку.
func (h *HTTPMessageHandler) GetRoomMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID := c.Param("id")

	if !h.requireMember(c, roomID, userID) {
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	var before *time.Time
	if b := c.Query("before"); b != "" {
		parsed, err := time.Parse(time.RFC3339, b)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
			return
		}
		before = &parsed
	}

	messages, err := h.db.GetRoomMessages(c.Request.Context(), roomID, before, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	result := make([]dto.MessageResponse, len(messages))
	for i := range messages {
		result[i] = formatMessageResponse(&messages[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": result,
		"has_more": len(messages) == limit,
	})
}

// SendMessage отправляет сообщение через HTTP (альтернатива WebSocket)
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if !h.requireMember(c, roomID.String(), userID) {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, created, err := h.chat.Ingest(c.Request.Context(), roomID, userID, req.ClientMessageID, req.Text, req.VoyageID)
	if err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		h.logger.Errorf("http ingest failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}

	if created {
		if err := h.chat.broadcast(websocket.TypeMessageReceived, roomID, userID, websocket.MessageReceivedPayload{
			RoomID:          saved.RoomID,
			SenderID:        saved.SenderID,
			ClientMessageID: saved.ClientID,
			Text:            saved.Text,
			Timestamp:       saved.CreatedAt,
			VoyageID:        saved.VoyageID,
		}); err != nil {
			h.logger.Warnf("http send fan-out failed: %v", err)
		}
		c.JSON(http.StatusCreated, formatMessageResponse(saved))
		return
	}

	// Ретрай: строка уже существует, возвращаем ее без повторной рассылки
	c.JSON(http.StatusOK, formatMessageResponse(saved))
}

func (h *HTTPMessageHandler) requireMember(c *gin.Context, roomID string, userID uuid.UUID) bool {
	room, err := h.db.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		}
		return false
	}

	for _, p := range room.Participants {
		if p.UserID == userID {
			return true
		}
	}

	c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
	return false
}

func formatMessageResponse(msg *models.Message) dto.MessageResponse {
	resp := dto.MessageResponse{
		ID:              msg.ID,
		ClientMessageID: msg.ClientID,
		RoomID:          msg.RoomID,
		SenderID:        msg.SenderID,
		Text:            msg.Text,
		VoyageID:        msg.VoyageID,
		CreatedAt:       msg.CreatedAt,
	}

	if msg.UpdatedAt.After(msg.CreatedAt) {
		edited := msg.UpdatedAt
		resp.EditedAt = &edited
	}

	if msg.Sender.ID != uuid.Nil {
		resp.Sender = &dto.UserInfo{
			ID:        msg.Sender.ID,
			Username:  msg.Sender.Username,
			AvatarURL: msg.Sender.AvatarURL,
		}
	}

	return resp
}
