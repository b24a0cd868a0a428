package repository

import (
	"time"

	"github.com/kursadbilgin/item-processor/internal/domain"
)

// ItemModel is the persistence model for the items table.
type ItemModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text;not null"`
	Status      string `gorm:"type:varchar(50);not null"`
	Email       string `gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ItemModel) TableName() string {
	return "items"
}

func itemModelFromDomain(i *domain.Item) *ItemModel {
	if i == nil {
		return nil
	}

	return &ItemModel{
		ID:          i.ID,
		Name:        i.Name,
		Description: i.Description,
		Status:      i.Status,
		Email:       i.Email,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func itemModelToDomain(m *ItemModel) *domain.Item {
	if m == nil {
		return nil
	}

	return &domain.Item{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Status:      m.Status,
		Email:       m.Email,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
