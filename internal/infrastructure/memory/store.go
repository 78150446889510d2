package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

// Store keeps transactions and orders in process memory. It applies the same
// conditional-update rules as the postgres repositories and is used for local runs and tests.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	byPaymentID  map[string]string
	orders       map[string]*domain.Order
}

func NewStore() *Store {
	return &Store{
		transactions: map[string]*domain.Transaction{},
		byPaymentID:  map[string]string{},
		orders:       map[string]*domain.Order{},
	}
}

// PutOrder inserts or replaces an order as written by the order service.
func (s *Store) PutOrder(order *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.Clone()
}

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *Store) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (s *Store) CancelOrder(ctx context.Context, orderID string, fromVersion int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if stored.Version != fromVersion {
		return domain.ErrConcurrentUpdate
	}
	cancelled := stored.Clone()
	cancelled.Status = domain.StatusCanceled
	cancelled.UpdatedAt = now
	s.writeOrderLocked(cancelled)
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction, order *domain.Order, superseded *domain.Transition) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; exists {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	if _, exists := s.byPaymentID[tx.ProviderPaymentID]; exists {
		return fmt.Errorf("provider payment %s already recorded", tx.ProviderPaymentID)
	}
	if err := s.checkOrderLocked(order, ""); err != nil {
		return err
	}
	if superseded != nil {
		if err := s.checkTransitionLocked(*superseded); err != nil {
			return err
		}
	}

	// all checks passed, nothing below can fail
	if superseded != nil {
		s.writeTransactionLocked(superseded.Transaction, superseded.FromVersion+1)
	}
	tx.Version = 1
	s.transactions[tx.ID] = tx.Clone()
	s.byPaymentID[tx.ProviderPaymentID] = tx.ID
	s.writeOrderLocked(order)
	return nil
}

func (s *Store) GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

func (s *Store) GetTransactionByPaymentID(ctx context.Context, paymentID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPaymentID[paymentID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return s.transactions[id].Clone(), nil
}

func (s *Store) FindStaleTransactions(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*domain.Transaction
	for _, tx := range s.transactions {
		if tx.Status != domain.TransactionPending && tx.Status != domain.TransactionProcessing {
			continue
		}
		if !tx.UpdatedAt.Before(updatedBefore) {
			continue
		}
		stale = append(stale, tx.Clone())
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (s *Store) ApplyTransition(ctx context.Context, t domain.Transition) error {
	if err := t.Transaction.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTransitionLocked(t); err != nil {
		return err
	}
	if t.Order != nil {
		if err := s.checkOrderLocked(t.Order, t.Transaction.ID); err != nil {
			return err
		}
	}

	s.writeTransactionLocked(t.Transaction, t.FromVersion+1)
	if t.Order != nil {
		s.writeOrderLocked(t.Order)
	}
	return nil
}

func (s *Store) checkTransitionLocked(t domain.Transition) error {
	stored, ok := s.transactions[t.Transaction.ID]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if stored.Status != t.FromStatus || stored.Version != t.FromVersion {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

// checkOrderLocked verifies the order version and, when linkedTx is set, that the order still points at it.
func (s *Store) checkOrderLocked(order *domain.Order, linkedTx string) error {
	stored, ok := s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if stored.Version != order.Version {
		return domain.ErrConcurrentUpdate
	}
	if linkedTx != "" && stored.TransactionID != linkedTx {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func (s *Store) writeTransactionLocked(tx *domain.Transaction, version int64) {
	tx.Version = version
	s.transactions[tx.ID] = tx.Clone()
}

func (s *Store) writeOrderLocked(order *domain.Order) {
	order.Version++
	s.orders[order.ID] = order.Clone()
}
