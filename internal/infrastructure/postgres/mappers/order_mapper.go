package mappers

import (
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/models"
)

func ToDomainOrder(model *models.OrderModel) *domain.Order {
	order := &domain.Order{
		ID:            model.ID,
		UserID:        model.UserID,
		TotalAmount:   model.TotalAmount,
		Currency:      model.Currency,
		PaymentMethod: domain.PaymentMethod(model.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(model.PaymentStatus),
		Status:        domain.OrderStatus(model.Status),
		Version:       model.Version,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
	if model.TransactionID != nil {
		order.TransactionID = *model.TransactionID
	}
	return order
}

func ToGORMOrder(order *domain.Order) *models.OrderModel {
	model := &models.OrderModel{
		ID:            order.ID,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		Status:        string(order.Status),
		Version:       order.Version,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	if order.TransactionID != "" {
		id := order.TransactionID
		model.TransactionID = &id
	}
	return model
}
