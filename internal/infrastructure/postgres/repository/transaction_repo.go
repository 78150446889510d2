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

type DefaultTransactionRepository struct {
	DB *gorm.DB
}

func NewDefaultTransactionRepository(db *gorm.DB) *DefaultTransactionRepository {
	return &DefaultTransactionRepository{DB: db}
}

func (r *DefaultTransactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction, order *domain.Order, superseded *domain.Transition) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	tx.Version = 1
	model, err := mappers.ToGORMTransaction(tx)
	if err != nil {
		return err
	}

	err = r.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if superseded != nil {
			if err := applyTransactionCAS(db, *superseded); err != nil {
				return err
			}
		}
		if err := db.Create(model).Error; err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return updateOrderCAS(db, order, "")
	})
	if err != nil {
		tx.Version = 0
		return err
	}

	if superseded != nil {
		superseded.Transaction.Version = superseded.FromVersion + 1
	}
	order.Version++
	return nil
}

func (r *DefaultTransactionRepository) GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var model models.TransactionModel
	if err := r.DB.WithContext(ctx).First(&model, "id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return mappers.ToDomainTransaction(&model)
}

func (r *DefaultTransactionRepository) GetTransactionByPaymentID(ctx context.Context, paymentID string) (*domain.Transaction, error) {
	var model models.TransactionModel
	if err := r.DB.WithContext(ctx).First(&model, "provider_payment_id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return mappers.ToDomainTransaction(&model)
}

func (r *DefaultTransactionRepository) FindStaleTransactions(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Transaction, error) {
	var rows []models.TransactionModel
	query := r.DB.WithContext(ctx).
		Where("status IN ?", []string{string(domain.TransactionPending), string(domain.TransactionProcessing)}).
		Where("updated_at < ?", updatedBefore).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	transactions := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := mappers.ToDomainTransaction(&rows[i])
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// ApplyTransition writes the transaction and its linked order in one database transaction.
// Zero affected rows on either side rolls back and reports domain.ErrConcurrentUpdate.
func (r *DefaultTransactionRepository) ApplyTransition(ctx context.Context, t domain.Transition) error {
	if err := t.Transaction.Validate(); err != nil {
		return err
	}

	err := r.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := applyTransactionCAS(db, t); err != nil {
			return err
		}
		if t.Order != nil {
			return updateOrderCAS(db, t.Order, t.Transaction.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.Transaction.Version = t.FromVersion + 1
	if t.Order != nil {
		t.Order.Version++
	}
	return nil
}

func applyTransactionCAS(db *gorm.DB, t domain.Transition) error {
	next := t.Transaction.Clone()
	next.Version = t.FromVersion + 1
	model, err := mappers.ToGORMTransaction(next)
	if err != nil {
		return err
	}

	res := db.Model(&models.TransactionModel{}).
		Where("id = ? AND status = ? AND version = ?", t.Transaction.ID, string(t.FromStatus), t.FromVersion).
		Updates(mappers.TransactionUpdates(model))
	if res.Error != nil {
		return fmt.Errorf("update transaction %s: %w", t.Transaction.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

// updateOrderCAS bumps the order version. linkedTx, when set, must still be the order's transaction.
func updateOrderCAS(db *gorm.DB, order *domain.Order, linkedTx string) error {
	model := mappers.ToGORMOrder(order)

	query := db.Model(&models.OrderModel{}).Where("id = ? AND version = ?", order.ID, order.Version)
	if linkedTx != "" {
		query = query.Where("transaction_id = ?", linkedTx)
	}
	res := query.Updates(map[string]any{
		"payment_status": model.PaymentStatus,
		"status":         model.Status,
		"transaction_id": model.TransactionID,
		"version":        gorm.Expr("version + 1"),
		"updated_at":     model.UpdatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("update order %s: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}
