package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/metrics"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	"github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
)

type PaymentUsecase interface {
	InitiatePayment(ctx context.Context, input *paymentdto.InitiatePaymentInput) (*paymentdto.InitiatePaymentOutput, error)
	CompletePayment(ctx context.Context, input *paymentdto.CompletePaymentInput) (*paymentdto.TransactionOutput, error)
	QueryPaymentStatus(ctx context.Context, input *paymentdto.QueryPaymentInput) (*paymentdto.PaymentStatusOutput, error)
	CancelPayment(ctx context.Context, input *paymentdto.CancelPaymentInput) (*paymentdto.TransactionOutput, error)
	// GetTransaction returns a transaction of userID. Another user's transaction is reported as not found.
	GetTransaction(ctx context.Context, transactionID, userID string) (*paymentdto.TransactionOutput, error)

	Refund(ctx context.Context, input *paymentdto.RefundInput) (*paymentdto.TransactionOutput, error)

	Reconcile(ctx context.Context, transactionIDs []string) *paymentdto.ReconcileResult
	ReconcileStale(ctx context.Context) (*paymentdto.ReconcileResult, error)
}

// Options configures the payment use case. Zero BatchSize and Concurrency fall back to defaults.
type Options struct {
	CallbackURL string
	Currency    string
	// StaleAfter is how long a PENDING/PROCESSING transaction may stay untouched before reconciliation picks it up.
	StaleAfter  time.Duration
	BatchSize   int
	Concurrency int
}

// DefaultPaymentUsecase drives transactions through the provider and keeps the linked order in step.
type DefaultPaymentUsecase struct {
	TransactionRepo domain.TransactionRepository
	OrderRepo       domain.OrderRepository
	Gateway         domain.PaymentGateway
	Refunder        domain.RefundProvider
	Publisher       domain.PaymentEventPublisher
	AttemptLogger   domain.PaymentAttemptLogger
	Metrics         *metrics.PaymentMetrics
	Logger          *zap.Logger
	Options         Options

	// Now is replaced in tests.
	Now        func() time.Time
	generateID func() string
}

func NewDefaultPaymentUsecase(
	transactionRepo domain.TransactionRepository,
	orderRepo domain.OrderRepository,
	gateway domain.PaymentGateway,
	refunder domain.RefundProvider,
	publisher domain.PaymentEventPublisher,
	attemptLogger domain.PaymentAttemptLogger,
	paymentMetrics *metrics.PaymentMetrics,
	logger *zap.Logger,
	opts Options,
) (*DefaultPaymentUsecase, error) {
	if opts.CallbackURL == "" {
		return nil, &domain.ConfigError{Field: "gateway.callback_url"}
	}
	if opts.Currency == "" {
		return nil, &domain.ConfigError{Field: "gateway.currency"}
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if refunder == nil {
		refunder = NewBookkeepingRefunder(logger)
	}

	idGenerator, err := nanoid.Standard(15)
	if err != nil {
		return nil, fmt.Errorf("failed to init id generator: %w", err)
	}

	return &DefaultPaymentUsecase{
		TransactionRepo: transactionRepo,
		OrderRepo:       orderRepo,
		Gateway:         gateway,
		Refunder:        refunder,
		Publisher:       publisher,
		AttemptLogger:   attemptLogger,
		Metrics:         paymentMetrics,
		Logger:          logger,
		Options:         opts,
		Now:             func() time.Time { return time.Now().UTC() },
		generateID:      idGenerator,
	}, nil
}

func (uc *DefaultPaymentUsecase) now() time.Time {
	return uc.Now()
}

func (uc *DefaultPaymentUsecase) GetTransaction(ctx context.Context, transactionID, userID string) (*paymentdto.TransactionOutput, error) {
	tx, err := uc.TransactionRepo.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, loadError("get transaction", err)
	}
	if tx.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrTransactionNotFound)
	}
	return uc.output(ctx, tx), nil
}

// output pairs tx with its order. A missing order is not an error for read paths.
func (uc *DefaultPaymentUsecase) output(ctx context.Context, tx *domain.Transaction) *paymentdto.TransactionOutput {
	order, err := uc.OrderRepo.GetOrderByID(ctx, tx.OrderID)
	if err != nil {
		uc.Logger.Warn("failed to load order of transaction",
			zap.String("transaction_id", tx.ID),
			zap.String("order_id", tx.OrderID),
			zap.Error(err),
		)
		order = nil
	}
	return &paymentdto.TransactionOutput{Transaction: tx, Order: order}
}
