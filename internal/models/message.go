package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"time"
)

// Message хранит клиентский ClientID как ключ дедупликации,
// по нему же джойнятся квитанции (не по серверному ID).
type Message struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID string    `gorm:"uniqueIndex;not null"`
	RoomID   uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID uuid.UUID `gorm:"type:uuid;not null"`
	Text     string    `gorm:"not null"`

	// Ссылка на вояж (внешняя сущность Triplink), опционально
	VoyageID *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	// Связи
	Sender User `gorm:"foreignKey:SenderID"`
	Room   Room `gorm:"foreignKey:RoomID"`
}
