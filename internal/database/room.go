package database

import (
	"context"
	"errors"
	"time"

	"github.com/avelichko/triplink/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRoomWithParticipants создает комнату и весь состав участников
// одной транзакцией: частично собранный состав зафиксирован быть не может.
func (d *Database) CreateRoomWithParticipants(ctx context.Context, room *models.Room, participants []models.Participant) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}

		if len(participants) == 0 {
			return nil
		}

		now := time.Now().UTC()
		for i := range participants {
			participants[i].RoomID = room.ID
			if participants[i].JoinedAt.IsZero() {
				participants[i].JoinedAt = now
			}
		}

		return tx.Create(&participants).Error
	})
}

func (d *Database) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// GetUserRooms возвращает комнаты пользователя постранично
func (d *Database) GetUserRooms(ctx context.Context, userID string, page, size int) ([]models.Room, error) {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}

	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Joins("JOIN participants ON participants.room_id = rooms.id").
		Where("participants.user_id = ?", userID).
		Order("rooms.created_at DESC").
		Offset(page * size).
		Limit(size).
		Preload("Participants").
		Preload("Participants.User").
		Find(&rooms).Error

	return rooms, err
}

func (d *Database) GetUserRoomIDs(ctx context.Context, userID string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("user_id = ?", userID).
		Pluck("room_id", &ids).Error
	return ids, err
}

// AddParticipant идемпотентен: повторное добавление того же участника — no-op.
func (d *Database) AddParticipant(ctx context.Context, p *models.Participant) error {
	exists, err := d.roomExists(ctx, p.RoomID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoomNotFound
	}

	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}

	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(p).Error
}

func (d *Database) RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	return d.db.WithContext(ctx).
		Delete(&models.Participant{}, "room_id = ? AND user_id = ?", roomID, userID).Error
}

func (d *Database) GetParticipant(ctx context.Context, roomID, userID uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	err := d.db.WithContext(ctx).
		First(&p, "room_id = ? AND user_id = ?", roomID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (d *Database) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	var participants []models.Participant
	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Preload("User").
		Find(&participants).Error
	return participants, err
}

// GetOrCreatePrivateRoom находит приватную комнату двух пользователей
// или создает новую вместе с обоими участниками.
func (d *Database) GetOrCreatePrivateRoom(ctx context.Context, user1ID, user2ID uuid.UUID) (*models.Room, error) {
	var room models.Room

	err := d.db.WithContext(ctx).
		Joins("JOIN participants p1 ON p1.room_id = rooms.id").
		Joins("JOIN participants p2 ON p2.room_id = rooms.id").
		Where("rooms.type = ? AND p1.user_id = ? AND p2.user_id = ?", models.RoomTypePrivate, user1ID, user2ID).
		First(&room).Error

	if err == nil {
		return d.GetRoom(ctx, room.ID.String())
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	room = models.Room{
		Type:      models.RoomTypePrivate,
		Title:     "Private",
		CreatedBy: user1ID,
		CreatedAt: time.Now().UTC(),
	}

	participants := []models.Participant{
		{UserID: user1ID},
		{UserID: user2ID},
	}

	if err := d.CreateRoomWithParticipants(ctx, &room, participants); err != nil {
		return nil, err
	}

	return d.GetRoom(ctx, room.ID.String())
}

func (d *Database) UpdateRoom(ctx context.Context, room *models.Room) error {
	return d.db.WithContext(ctx).Save(room).Error
}

func (d *Database) DeleteRoom(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Message{}, "room_id = ?", id).Error; err != nil {
			return err
		}

		if err := tx.Delete(&models.Participant{}, "room_id = ?", id).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Room{}, "id = ?", id).Error
	})
}

func (d *Database) roomExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
