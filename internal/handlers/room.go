package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelichko/triplink/internal/database"
	"github.com/avelichko/triplink/internal/handlers/dto"
	"github.com/avelichko/triplink/internal/middleware"
	"github.com/avelichko/triplink/internal/models"
	"github.com/avelichko/triplink/internal/services"
	"github.com/avelichko/triplink/internal/websocket"
)

// Расширения, допустимые для картинки и баннера комнаты
var allowedImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

type RoomHandler struct {
	db         *database.Database
	hub        *websocket.Hub
	membership services.RoomMembership
	logger     *zap.SugaredLogger
}

func NewRoomHandler(db *database.Database, hub *websocket.Hub, membership services.RoomMembership, logger *zap.SugaredLogger) *RoomHandler {
	return &RoomHandler{db: db, hub: hub, membership: membership, logger: logger}
}

func validateMediaExt(ext string) error {
	if ext == "" {
		return nil
	}
	if !allowedImageExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))] {
		return ErrUnsupportedMediaType
	}
	return nil
}

// CreateRoom создает групповую комнату вместе со всем составом участников.
// Состав пишется одной транзакцией: либо комната со всеми, либо ничего.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Медиа проверяем до какой-либо записи
	if err := validateMediaExt(req.ImageExt); err != nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	}
	if err := validateMediaExt(req.BannerExt); err != nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	}

	room := &models.Room{
		Type:        models.RoomTypeGroup,
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   userID,
		CreatedAt:   time.Now().UTC(),
	}

	participants := []models.Participant{
		{UserID: userID, IsAdmin: true},
	}
	for _, raw := range req.ParticipantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
			return
		}
		if id != userID {
			participants = append(participants, models.Participant{UserID: id})
		}
	}

	if err := h.db.CreateRoomWithParticipants(c.Request.Context(), room, participants); err != nil {
		h.logger.Errorf("create room failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	// Состав комнат участников изменился — кэш обязан об этом узнать
	for _, p := range participants {
		h.membership.Invalidate(c.Request.Context(), p.UserID.String())
	}

	fullRoom, err := h.db.GetRoom(c.Request.Context(), room.ID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	c.JSON(http.StatusCreated, h.formatRoomResponse(fullRoom))
}

// CreatePrivateRoom создает или находит приватную комнату двух пользователей
func (h *RoomHandler) CreatePrivateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	targetUserID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if userID == targetUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot create private room with yourself"})
		return
	}

	room, err := h.db.GetOrCreatePrivateRoom(c.Request.Context(), userID, targetUserID)
	if err != nil {
		h.logger.Errorf("get or create private room failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create private room"})
		return
	}

	h.membership.Invalidate(c.Request.Context(), userID.String())
	h.membership.Invalidate(c.Request.Context(), targetUserID.String())

	c.JSON(http.StatusOK, h.formatRoomResponse(room))
}

// GetMyRooms получает список комнат пользователя постранично
func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	rooms, err := h.db.GetUserRooms(c.Request.Context(), userID.String(), page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get rooms"})
		return
	}

	roomsResponse := make([]gin.H, len(rooms))
	for i, room := range rooms {
		roomResponse := h.formatRoomResponse(&room)

		if last, err := h.db.GetLastMessage(c.Request.Context(), room.ID.String()); err == nil {
			roomResponse["last_message"] = gin.H{
				"client_message_id": last.ClientID,
				"text":              last.Text,
				"sender_id":         last.SenderID,
				"created_at":        last.CreatedAt,
			}
		}

		roomResponse["online_count"] = len(h.hub.RoomUsers(room.ID))

		roomsResponse[i] = roomResponse
	}

	c.JSON(http.StatusOK, gin.H{"rooms": roomsResponse})
}

// GetRoom получает информацию о конкретной комнате
func (h *RoomHandler) GetRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	response := h.formatRoomResponse(room)
	response["online_users"] = h.hub.RoomUsers(room.ID)

	c.JSON(http.StatusOK, response)
}

// UpdateRoom обновляет комнату, доступно только админам группы
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	if room.Type == models.RoomTypePrivate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "private room cannot be updated"})
		return
	}

	if !h.isAdmin(room, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only room admin can update room"})
		return
	}

	var req dto.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validateMediaExt(extOf(req.ImageURL)); err != nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	}
	if err := validateMediaExt(extOf(req.BannerURL)); err != nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	}

	// Обновляем только переданные поля
	if req.Title != "" {
		room.Title = req.Title
	}
	if req.Description != "" {
		room.Description = req.Description
	}
	if req.ImageURL != "" {
		room.ImageURL = req.ImageURL
	}
	if req.BannerURL != "" {
		room.BannerURL = req.BannerURL
	}

	if err := h.db.UpdateRoom(c.Request.Context(), room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update room"})
		return
	}

	c.JSON(http.StatusOK, h.formatRoomResponse(room))
}

// AddParticipant добавляет участника. Повторное добавление — no-op.
func (h *RoomHandler) AddParticipant(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	if room.Type == models.RoomTypePrivate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot add participants to private room"})
		return
	}

	if !h.isAdmin(room, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only room admin can add participants"})
		return
	}

	var req dto.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &models.Participant{
		RoomID:  room.ID,
		UserID:  req.UserID,
		IsAdmin: req.IsAdmin,
	}

	if err := h.db.AddParticipant(c.Request.Context(), p); err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add participant"})
		return
	}

	h.membership.Invalidate(c.Request.Context(), req.UserID.String())

	c.JSON(http.StatusOK, gin.H{"message": "participant added"})
}

// LeaveRoom удаляет пользователя из комнаты
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	if room.Type == models.RoomTypePrivate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot leave private room"})
		return
	}

	if err := h.db.RemoveParticipant(c.Request.Context(), room.ID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave room"})
		return
	}

	h.membership.Invalidate(c.Request.Context(), userID.String())

	c.JSON(http.StatusOK, gin.H{"message": "left room successfully"})
}

// GetRoomMembers получает список участников комнаты
func (h *RoomHandler) GetRoomMembers(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	onlineUsers := h.hub.RoomUsers(room.ID)

	members := make([]gin.H, len(room.Participants))
	for i, p := range room.Participants {
		isOnline := false
		for _, onlineID := range onlineUsers {
			if onlineID == p.UserID {
				isOnline = true
				break
			}
		}

		member := gin.H{
			"id":         p.UserID,
			"username":   p.User.Username,
			"avatar_url": p.User.AvatarURL,
			"is_admin":   p.IsAdmin,
			"joined_at":  p.JoinedAt,
		}
		// Видимость статусов подчиняется настройкам профиля
		if p.User.ShowOnline {
			member["is_online"] = isOnline
		}
		if p.User.ShowLastSeen {
			member["last_seen_at"] = p.User.LastSeenAt
		}

		members[i] = member
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// loadRoomForMember загружает комнату и проверяет членство вызывающего
func (h *RoomHandler) loadRoomForMember(c *gin.Context, userID uuid.UUID) (*models.Room, bool) {
	roomID := c.Param("id")

	room, err := h.db.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		}
		return nil, false
	}

	for _, p := range room.Participants {
		if p.UserID == userID {
			return room, true
		}
	}

	c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
	return nil, false
}

func (h *RoomHandler) isAdmin(room *models.Room, userID uuid.UUID) bool {
	for _, p := range room.Participants {
		if p.UserID == userID && p.IsAdmin {
			return true
		}
	}
	return false
}

func (h *RoomHandler) formatRoomResponse(room *models.Room) gin.H {
	participants := make([]gin.H, len(room.Participants))
	for i, p := range room.Participants {
		participants[i] = gin.H{
			"id":         p.UserID,
			"username":   p.User.Username,
			"avatar_url": p.User.AvatarURL,
			"is_admin":   p.IsAdmin,
		}
	}

	return gin.H{
		"id":           room.ID,
		"type":         room.Type,
		"title":        room.Title,
		"description":  room.Description,
		"image_url":    room.ImageURL,
		"banner_url":   room.BannerURL,
		"created_by":   room.CreatedBy,
		"created_at":   room.CreatedAt,
		"participants": participants,
	}
}

func extOf(url string) string {
	if url == "" {
		return ""
	}
	i := strings.LastIndex(url, ".")
	if i < 0 || i == len(url)-1 {
		return ""
	}
	return url[i+1:]
}
