package db

import (
	"fmt"

	"github.com/lotline/lotline/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Vehicle{},
		&models.LeadEvent{},
		&models.LeadProfile{},
		&models.Sale{},
		&models.Escalation{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Migrate runs AutoMigrate under the store mutex.
func (h *Handle) Migrate() error {
	return h.WithLock(AutoMigrate)
}
