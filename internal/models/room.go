package models

import (
	"github.com/google/uuid"
	"time"
)

const (
	RoomTypePrivate = "private"
	RoomTypeGroup   = "group"
)

type Room struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Type        string    `gorm:"not null;check:type IN ('private','group')"`
	Title       string    `gorm:"not null"`
	Description string
	ImageURL    string
	BannerURL   string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time

	// Связи
	Participants []Participant `gorm:"foreignKey:RoomID"`
	Messages     []Message     `gorm:"foreignKey:RoomID"`
}
