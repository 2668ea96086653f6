package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Database struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewDatabase(db *gorm.DB, logger *zap.SugaredLogger) *Database {
	return &Database{db: db, logger: logger}
}
