package database

import (
	"context"

	"github.com/avelichko/triplink/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// Квитанции вставляются insert-if-absent: повторный вызов для той же пары
// (сообщение, пользователь) — no-op, возвращается created=false.

func (d *Database) InsertDeliveredReceipt(ctx context.Context, receipt *models.DeliveredReceipt) (bool, error) {
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(receipt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (d *Database) InsertReadReceipt(ctx context.Context, receipt *models.ReadReceipt) (bool, error) {
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(receipt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (d *Database) HasDeliveredReceipt(ctx context.Context, clientMessageID string, userID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.DeliveredReceipt{}).
		Where("client_message_id = ? AND user_id = ?", clientMessageID, userID).
		Count(&count).Error
	return count > 0, err
}

func (d *Database) HasReadReceipt(ctx context.Context, clientMessageID string, userID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.ReadReceipt{}).
		Where("client_message_id = ? AND user_id = ?", clientMessageID, userID).
		Count(&count).Error
	return count > 0, err
}
