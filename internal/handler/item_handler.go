package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/item-processor/internal/domain"
	"github.com/kursadbilgin/item-processor/internal/observability"
	"github.com/kursadbilgin/item-processor/internal/service"
)

// HeaderProcessRunID carries the id of the processing run that produced a response.
const HeaderProcessRunID = "X-Process-Run-Id"

type ItemService interface {
	List(ctx context.Context) ([]domain.Item, error)
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	Create(ctx context.Context, item *domain.Item) (*domain.Item, error)
	Update(ctx context.Context, id int64, item *domain.Item) (*domain.Item, error)
	Delete(ctx context.Context, id int64) error
}

type ProcessingService interface {
	ProcessAll(ctx context.Context) (*service.ProcessResult, error)
	Status(id int64) domain.ProcessingStatus
	CompletedCount() int64
}

type ItemHandler struct {
	items      ItemService
	processing ProcessingService
}

func NewItemHandler(items ItemService, processing ProcessingService) (*ItemHandler, error) {
	if items == nil {
		return nil, fmt.Errorf("item service is required")
	}
	if processing == nil {
		return nil, fmt.Errorf("processing service is required")
	}
	return &ItemHandler{items: items, processing: processing}, nil
}

func RegisterItemRoutes(router fiber.Router, items ItemService, processing ProcessingService) error {
	h, err := NewItemHandler(items, processing)
	if err != nil {
		return err
	}

	api := router.Group("/api/items")
	api.Get("/", h.ListItems)
	api.Post("/", h.CreateItem)
	// Registered ahead of /:id so "process" is never parsed as an id.
	api.Get("/process", h.ProcessItems)
	api.Get("/process/stats", h.ProcessStats)
	api.Get("/:id", h.GetItem)
	api.Put("/:id", h.UpdateItem)
	api.Delete("/:id", h.DeleteItem)
	api.Get("/:id/status", h.GetItemStatus)

	return nil
}

type itemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Email       string `json:"email"`
}

type itemResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type itemStatusResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type processStatsResponse struct {
	CompletedCount int64 `json:"completedCount"`
}

func (h *ItemHandler) ListItems(c *fiber.Ctx) error {
	items, err := h.items.List(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toItemResponses(items))
}

func (h *ItemHandler) CreateItem(c *fiber.Ctx) error {
	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	item := req.toDomain()
	created, err := h.items.Create(requestContext(c), &item)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toItemResponse(created))
}

func (h *ItemHandler) GetItem(c *fiber.Ctx) error {
	id, err := parseItemID(c)
	if err != nil {
		return toHTTPError(err)
	}

	item, err := h.items.GetByID(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toItemResponse(item))
}

func (h *ItemHandler) UpdateItem(c *fiber.Ctx) error {
	id, err := parseItemID(c)
	if err != nil {
		return toHTTPError(err)
	}

	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	item := req.toDomain()
	updated, err := h.items.Update(requestContext(c), id, &item)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toItemResponse(updated))
}

func (h *ItemHandler) DeleteItem(c *fiber.Ctx) error {
	id, err := parseItemID(c)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.items.Delete(requestContext(c), id); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ProcessItems runs a full processing pass and responds with the items that
// completed, in store order. It blocks until every item is finished.
func (h *ItemHandler) ProcessItems(c *fiber.Ctx) error {
	result, err := h.processing.ProcessAll(requestContext(c))
	if err != nil {
		return err
	}

	c.Set(HeaderProcessRunID, result.RunID)
	return c.Status(fiber.StatusOK).JSON(toItemResponses(result.Items))
}

func (h *ItemHandler) ProcessStats(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(processStatsResponse{
		CompletedCount: h.processing.CompletedCount(),
	})
}

func (h *ItemHandler) GetItemStatus(c *fiber.Ctx) error {
	id, err := parseItemID(c)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(itemStatusResponse{
		ID:     id,
		Status: h.processing.Status(id).String(),
	})
}

func (r itemRequest) toDomain() domain.Item {
	return domain.Item{
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		Email:       r.Email,
	}
}

func parseItemID(c *fiber.Ctx) (int64, error) {
	raw := strings.TrimSpace(c.Params("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid item id %q", domain.ErrValidation, raw)
	}
	return id, nil
}

// requestContext returns the request context tagged with the request id set by
// the requestid middleware, so service logs can be correlated.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if correlationID := requestCorrelationID(c); correlationID != "" {
		ctx = observability.WithCorrelationID(ctx, correlationID)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value, ok := c.Locals("requestid").(string); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
}

func toItemResponses(items []domain.Item) []itemResponse {
	responses := make([]itemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, toItemResponse(&items[i]))
	}
	return responses
}

func toItemResponse(item *domain.Item) itemResponse {
	if item == nil {
		return itemResponse{}
	}

	return itemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Status:      item.Status,
		Email:       item.Email,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
