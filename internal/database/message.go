package database

import (
	"context"
	"errors"
	"time"

	"github.com/avelichko/triplink/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertMessageIfAbsent вставляет сообщение, если клиентского ID еще нет.
// Дедупликация атомарна: уникальный индекс по client_id плюс
// ON CONFLICT DO NOTHING, никакого check-then-insert.
// Возвращает итоговую строку и флаг "создано".
func (d *Database) InsertMessageIfAbsent(ctx context.Context, message *models.Message) (*models.Message, bool, error) {
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			DoNothing: true,
		}).
		Create(message)
	if res.Error != nil {
		return nil, false, res.Error
	}

	if res.RowsAffected > 0 {
		return message, true, nil
	}

	// Дубликат: возвращаем уже существующую строку как есть
	existing, err := d.GetMessageByClientID(ctx, message.ClientID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (d *Database) GetMessageByClientID(ctx context.Context, clientID string) (*models.Message, error) {
	var message models.Message
	err := d.db.WithContext(ctx).First(&message, "client_id = ?", clientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

func (d *Database) UpdateMessage(ctx context.Context, message *models.Message) error {
	return d.db.WithContext(ctx).Save(message).Error
}

// DeleteMessage помечает сообщение удаленным (soft delete)
func (d *Database) DeleteMessage(ctx context.Context, clientID string) error {
	return d.db.WithContext(ctx).Delete(&models.Message{}, "client_id = ?", clientID).Error
}

// GetRoomMessages получает сообщения комнаты до указанного момента
func (d *Database) GetRoomMessages(ctx context.Context, roomID string, before *time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := d.db.WithContext(ctx).Where("room_id = ?", roomID)
	if before != nil {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.Message
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Preload("Sender").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Разворачиваем порядок, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (d *Database) GetLastMessage(ctx context.Context, roomID string) (*models.Message, error) {
	var message models.Message
	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}
