package services

import (
	"context"

	"github.com/avelichko/triplink/internal/models"
	"github.com/google/uuid"
)

// ChatStore — срез Persistent Store Gateway, нужный обработчику событий
type ChatStore interface {
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	InsertMessageIfAbsent(ctx context.Context, message *models.Message) (*models.Message, bool, error)
	GetMessageByClientID(ctx context.Context, clientID string) (*models.Message, error)
	UpdateMessage(ctx context.Context, message *models.Message) error
	DeleteMessage(ctx context.Context, clientID string) error
	InsertDeliveredReceipt(ctx context.Context, receipt *models.DeliveredReceipt) (bool, error)
	InsertReadReceipt(ctx context.Context, receipt *models.ReadReceipt) (bool, error)
	UpdateLastSeen(ctx context.Context, id string) error
}

// PresenceTracker — внешнее множество "кто онлайн" (Redis).
// Отражает переходы 0→1 и 1→0 соединений пользователя, не каждое соединение.
type PresenceTracker interface {
	MarkOnline(ctx context.Context, userID uuid.UUID) error
	MarkOffline(ctx context.Context, userID uuid.UUID) error
}

// RoomMembership — read-through доступ к составу комнат пользователя
type RoomMembership interface {
	RoomIDs(ctx context.Context, userID string) ([]uuid.UUID, error)
	Invalidate(ctx context.Context, userID string)
}
