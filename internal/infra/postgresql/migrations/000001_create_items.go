package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/item-processor/internal/repository"
	"gorm.io/gorm"
)

func createItemsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_items",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ItemModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_items_status ON items (status)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ItemModel{})
		},
	}
}
