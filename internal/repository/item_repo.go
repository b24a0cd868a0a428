package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/item-processor/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	List(ctx context.Context) ([]domain.Item, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Save(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, id int64) error
}

type GormItemRepo struct {
	db *gorm.DB
}

func NewGormItemRepo(db *gorm.DB) *GormItemRepo {
	return &GormItemRepo{db: db}
}

func (r *GormItemRepo) Create(ctx context.Context, item *domain.Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is required", domain.ErrValidation)
	}

	model := itemModelFromDomain(item)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*item = *itemModelToDomain(model)
	return nil
}

func (r *GormItemRepo) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	var model ItemModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return itemModelToDomain(&model), nil
}

func (r *GormItemRepo) List(ctx context.Context) ([]domain.Item, error) {
	var models []ItemModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(models))
	for i := range models {
		items = append(items, *itemModelToDomain(&models[i]))
	}
	return items, nil
}

// ListIDs returns every stored item id in ascending order.
func (r *GormItemRepo) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&ItemModel{}).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Save overwrites the mutable columns of an existing item and refreshes
// item with the persisted row.
func (r *GormItemRepo) Save(ctx context.Context, item *domain.Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is required", domain.ErrValidation)
	}
	if item.ID <= 0 {
		return fmt.Errorf("%w: item id is required", domain.ErrValidation)
	}

	model := itemModelFromDomain(item)
	result := r.db.WithContext(ctx).
		Model(model).
		Clauses(clause.Returning{}).
		Select("name", "description", "status", "email", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	*item = *itemModelToDomain(model)
	return nil
}

func (r *GormItemRepo) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&ItemModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
