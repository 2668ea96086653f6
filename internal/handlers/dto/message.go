package dto

import (
	"github.com/google/uuid"
	"time"
)

// SendMessageRequest — HTTP-вариант отправки (альтернатива WebSocket).
// ClientMessageID обязателен: по нему работает дедупликация ретраев.
type SendMessageRequest struct {
	ClientMessageID string     `json:"client_message_id" binding:"required"`
	Text            string     `json:"text" binding:"required"`
	VoyageID        *uuid.UUID `json:"voyage_id,omitempty"`
}

type MessageResponse struct {
	ID              uuid.UUID  `json:"id"`
	ClientMessageID string     `json:"client_message_id"`
	RoomID          uuid.UUID  `json:"room_id"`
	SenderID        uuid.UUID  `json:"sender_id"`
	Text            string     `json:"text"`
	VoyageID        *uuid.UUID `json:"voyage_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
	Sender          *UserInfo  `json:"sender,omitempty"`
}

type UserInfo struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}
