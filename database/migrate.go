package database

import (
	"fmt"

	"zapstack-backend/models"

	"gorm.io/gorm"
)

// AutoMigrate applies (idempotent) migrations for the payment core:
// - AutoMigrate (tables/columns/index tags)
// - Postgres-only helper indexes
func AutoMigrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.Project{},
			&models.Nonce{},
			&models.PaymentLog{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_nonces_project_nonce ON nonces (project_id, nonce)`,
			`CREATE INDEX IF NOT EXISTS idx_payment_logs_project_created ON payment_logs (project_id, created_at DESC)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}
		return nil
	})
}
