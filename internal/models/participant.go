package models

import (
	"github.com/google/uuid"
	"time"
)

// Participant — членство пользователя в комнате.
// Не больше одной записи на пару (room, user).
type Participant struct {
	RoomID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsAdmin  bool      `gorm:"default:false"`
	JoinedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}
