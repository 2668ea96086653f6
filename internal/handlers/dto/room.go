package dto

import "github.com/google/uuid"

type CreateRoomRequest struct {
	Title          string   `json:"title" binding:"required"`
	Description    string   `json:"description"`
	ParticipantIDs []string `json:"participant_ids"`

	// Заявленные расширения файлов картинки и баннера,
	// проверяются по allow-list до какой-либо записи в базу
	ImageExt  string `json:"image_ext"`
	BannerExt string `json:"banner_ext"`
}

type AddParticipantRequest struct {
	UserID  uuid.UUID `json:"user_id" binding:"required"`
	IsAdmin bool      `json:"is_admin"`
}

type UpdateRoomRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	BannerURL   string `json:"banner_url"`
}
