package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/item-processor/internal/domain"
	"github.com/kursadbilgin/item-processor/internal/observability"
	"github.com/kursadbilgin/item-processor/internal/repository"
	"go.uber.org/zap"
)

type ItemService struct {
	items  repository.ItemRepository
	logger *zap.Logger
}

func NewItemService(items repository.ItemRepository, logger *zap.Logger) (*ItemService, error) {
	if items == nil {
		return nil, fmt.Errorf("item repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ItemService{
		items:  items,
		logger: logger,
	}, nil
}

func (s *ItemService) List(ctx context.Context) ([]domain.Item, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

func (s *ItemService) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id must be positive", domain.ErrValidation)
	}
	return s.items.GetByID(ctx, id)
}

// Create validates item and stores it under a new id. Any caller supplied id is ignored.
func (s *ItemService) Create(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	if err := prepareItem(item); err != nil {
		return nil, err
	}
	item.ID = 0

	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("item created", zap.Int64("itemId", item.ID))
	return item, nil
}

// Update replaces every field of the item stored under id.
func (s *ItemService) Update(ctx context.Context, id int64, item *domain.Item) (*domain.Item, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id must be positive", domain.ErrValidation)
	}
	if err := prepareItem(item); err != nil {
		return nil, err
	}

	if _, err := s.items.GetByID(ctx, id); err != nil {
		return nil, err
	}

	item.ID = id
	if err := s.items.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update item %d: %w", id, err)
	}
	return item, nil
}

func (s *ItemService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: id must be positive", domain.ErrValidation)
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("item deleted", zap.Int64("itemId", id))
	return nil
}

func prepareItem(item *domain.Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is required", domain.ErrValidation)
	}
	item.Normalize()
	return item.Validate()
}
