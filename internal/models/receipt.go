package models

import (
	"github.com/google/uuid"
	"time"
)

// Квитанции привязаны к клиентскому ID сообщения и пользователю.
// Delivered и Read ведутся независимо: прочитать можно и на устройстве,
// которое не получало live-push (догрузка истории).

type DeliveredReceipt struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ClientMessageID string    `gorm:"not null;uniqueIndex:idx_delivered_msg_user"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_delivered_msg_user"`
	DeliveredAt     time.Time
}

type ReadReceipt struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ClientMessageID string    `gorm:"not null;uniqueIndex:idx_read_msg_user"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_read_msg_user"`
	ReadAt          time.Time
}
