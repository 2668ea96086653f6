package models

import (
	"github.com/google/uuid"
	"time"
)

// User — чат-профиль пользователя. ID совпадает с ID аккаунта Triplink
// (расширение 1:1, не отдельная сущность).
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	AvatarURL    string
	StatusText   string
	AcceptsDM    bool `gorm:"default:true"`
	ShowLastSeen bool `gorm:"default:true"`
	ShowOnline   bool `gorm:"default:true"`
	LastSeenAt   time.Time
	CreatedAt    time.Time
}
