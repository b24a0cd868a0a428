package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addItemsEmailIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_items_email_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_items_email ON items (lower(email))`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_items_email`).Error
		},
	}
}
