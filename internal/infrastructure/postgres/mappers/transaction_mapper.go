package mappers

import (
	"encoding/json"
	"fmt"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func ToDomainTransaction(model *models.TransactionModel) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:                model.ID,
		OrderID:           model.OrderID,
		UserID:            model.UserID,
		Amount:            model.Amount,
		Currency:          model.Currency,
		PaymentMethod:     domain.PaymentMethod(model.PaymentMethod),
		Gateway:           model.Gateway,
		Status:            domain.TransactionStatus(model.Status),
		ProviderPaymentID: model.ProviderPaymentID,
		ProviderTrxID:     model.ProviderTrxID,
		GatewayResponse:   map[string]json.RawMessage{},
		FailureReason:     model.FailureReason,
		Version:           model.Version,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
	if len(model.GatewayResponse) > 0 {
		if err := json.Unmarshal(model.GatewayResponse, &tx.GatewayResponse); err != nil {
			return nil, fmt.Errorf("decode gateway_response of %s: %w", model.ID, err)
		}
	}
	if model.RefundAmount.Valid {
		refund := &domain.RefundInfo{
			Amount:     model.RefundAmount.Decimal,
			Reason:     model.RefundReason,
			RefundedBy: model.RefundedBy,
		}
		if model.RefundedAt != nil {
			refund.RefundedAt = *model.RefundedAt
		}
		tx.Refund = refund
	}
	return tx, nil
}

func ToGORMTransaction(tx *domain.Transaction) (*models.TransactionModel, error) {
	model := &models.TransactionModel{
		ID:                tx.ID,
		OrderID:           tx.OrderID,
		UserID:            tx.UserID,
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		PaymentMethod:     string(tx.PaymentMethod),
		Gateway:           tx.Gateway,
		Status:            string(tx.Status),
		ProviderPaymentID: tx.ProviderPaymentID,
		ProviderTrxID:     tx.ProviderTrxID,
		FailureReason:     tx.FailureReason,
		Version:           tx.Version,
		CreatedAt:         tx.CreatedAt,
		UpdatedAt:         tx.UpdatedAt,
	}
	if len(tx.GatewayResponse) > 0 {
		raw, err := json.Marshal(tx.GatewayResponse)
		if err != nil {
			return nil, fmt.Errorf("encode gateway_response of %s: %w", tx.ID, err)
		}
		model.GatewayResponse = datatypes.JSON(raw)
	}
	if tx.Refund != nil {
		refundedAt := tx.Refund.RefundedAt
		model.RefundAmount = decimal.NewNullDecimal(tx.Refund.Amount)
		model.RefundReason = tx.Refund.Reason
		model.RefundedBy = tx.Refund.RefundedBy
		model.RefundedAt = &refundedAt
	}
	return model, nil
}

// TransactionUpdates lists every mutable column, zero values included.
func TransactionUpdates(model *models.TransactionModel) map[string]any {
	return map[string]any{
		"status":           model.Status,
		"provider_trx_id":  model.ProviderTrxID,
		"gateway_response": model.GatewayResponse,
		"failure_reason":   model.FailureReason,
		"refund_amount":    model.RefundAmount,
		"refund_reason":    model.RefundReason,
		"refunded_by":      model.RefundedBy,
		"refunded_at":      model.RefundedAt,
		"version":          model.Version,
		"updated_at":       model.UpdatedAt,
	}
}
