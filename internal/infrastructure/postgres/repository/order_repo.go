package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultOrderRepository struct {
	DB *gorm.DB
}

func NewDefaultOrderRepository(db *gorm.DB) *DefaultOrderRepository {
	return &DefaultOrderRepository{DB: db}
}

// CreateOrder stores an order announced by the order service.
func (r *DefaultOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	orderModel := mappers.ToGORMOrder(order)
	if err := r.DB.WithContext(ctx).Create(orderModel).Error; err != nil {
		return err
	}
	return nil
}

func (r *DefaultOrderRepository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var order models.OrderModel
	if err := r.DB.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return mappers.ToDomainOrder(&order), nil
}

func (r *DefaultOrderRepository) CancelOrder(ctx context.Context, orderID string, fromVersion int64, now time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", orderID, fromVersion).
		Updates(map[string]any{
			"status":     string(domain.StatusCanceled),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetOrderByID(ctx, orderID); err != nil {
			return err
		}
		return domain.ErrConcurrentUpdate
	}
	return nil
}
