package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avelichko/triplink/internal/cache"
	"github.com/avelichko/triplink/internal/database"
	"github.com/avelichko/triplink/internal/middleware"
)

type UserHandler struct {
	db       *database.Database
	presence *cache.PresenceCache
}

func NewUserHandler(db *database.Database, presence *cache.PresenceCache) *UserHandler {
	return &UserHandler{db: db, presence: presence}
}

// GetMe возвращает чат-профиль текущего пользователя
func (h *UserHandler) GetMe(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	user, err := h.db.GetUser(c.Request.Context(), userID.String())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"avatar_url":     user.AvatarURL,
		"status_text":    user.StatusText,
		"accepts_dm":     user.AcceptsDM,
		"show_last_seen": user.ShowLastSeen,
		"show_online":    user.ShowOnline,
		"created_at":     user.CreatedAt,
		"last_seen_at":   user.LastSeenAt,
	})
}

// UpdateMe обновляет чат-профиль текущего пользователя
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Username     string  `json:"username"`
		AvatarURL    string  `json:"avatar_url"`
		StatusText   *string `json:"status_text"`
		AcceptsDM    *bool   `json:"accepts_dm"`
		ShowLastSeen *bool   `json:"show_last_seen"`
		ShowOnline   *bool   `json:"show_online"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUser(c.Request.Context(), userID.String())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	// Обновляем только переданные поля
	if req.Username != "" {
		user.Username = req.Username
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}
	if req.StatusText != nil {
		user.StatusText = *req.StatusText
	}
	if req.AcceptsDM != nil {
		user.AcceptsDM = *req.AcceptsDM
	}
	if req.ShowLastSeen != nil {
		user.ShowLastSeen = *req.ShowLastSeen
	}
	if req.ShowOnline != nil {
		user.ShowOnline = *req.ShowOnline
	}

	if err := h.db.UpdateUser(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"avatar_url":     user.AvatarURL,
		"status_text":    user.StatusText,
		"accepts_dm":     user.AcceptsDM,
		"show_last_seen": user.ShowLastSeen,
		"show_online":    user.ShowOnline,
	})
}

// GetUser возвращает профиль пользователя по ID.
// last_seen и online показываются только с разрешения владельца профиля.
func (h *UserHandler) GetUser(c *gin.Context) {
	userID := c.Param("id")

	user, err := h.db.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	response := gin.H{
		"id":          user.ID,
		"username":    user.Username,
		"avatar_url":  user.AvatarURL,
		"status_text": user.StatusText,
		"accepts_dm":  user.AcceptsDM,
	}

	if user.ShowLastSeen {
		response["last_seen_at"] = user.LastSeenAt
	}

	if user.ShowOnline {
		online, err := h.presence.IsOnline(c.Request.Context(), user.ID)
		if err == nil {
			response["is_online"] = online
		}
		// Redis недоступен — статус просто неизвестен, запрос не роняем
	}

	c.JSON(http.StatusOK, response)
}

// SearchUsers поиск пользователей по username
func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	users, err := h.db.SearchUsersByUsername(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}

	result := make([]gin.H, len(users))
	for i, user := range users {
		result[i] = gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"avatar_url": user.AvatarURL,
		}
	}

	c.JSON(http.StatusOK, gin.H{"users": result})
}
