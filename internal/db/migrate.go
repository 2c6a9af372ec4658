package db

import (
	"streetmaint/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.DataSource{},
		&models.EventType{},
		&models.Vehicle{},
		&models.Location{},
		&models.ImportState{},
	)
}
