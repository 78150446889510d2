package gateway

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy bounds the exponential backoff of retried gateway calls.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// RetryingGateway retries transport failures of create and query with exponential backoff.
// Execute goes through once: an ambiguous execute is resolved by a query, never by a resend.
type RetryingGateway struct {
	next   domain.PaymentGateway
	policy RetryPolicy
	logger *zap.Logger
}

func NewRetryingGateway(next domain.PaymentGateway, policy RetryPolicy, logger *zap.Logger) *RetryingGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingGateway{next: next, policy: policy, logger: logger}
}

func (g *RetryingGateway) Name() string { return g.next.Name() }

func (g *RetryingGateway) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error) {
	var result *domain.CreatePaymentResult
	err := g.retry(ctx, opCreate, func() error {
		var err error
		result, err = g.next.CreatePayment(ctx, req)
		return err
	})
	return result, err
}

func (g *RetryingGateway) ExecutePayment(ctx context.Context, paymentID string) (*domain.ExecutePaymentResult, error) {
	return g.next.ExecutePayment(ctx, paymentID)
}

func (g *RetryingGateway) QueryPayment(ctx context.Context, paymentID string) (*domain.QueryPaymentResult, error) {
	var result *domain.QueryPaymentResult
	err := g.retry(ctx, opQuery, func() error {
		var err error
		result, err = g.next.QueryPayment(ctx, paymentID)
		return err
	})
	return result, err
}

func (g *RetryingGateway) retry(ctx context.Context, op string, call func() error) error {
	operation := func() error {
		err := call()
		if err == nil {
			return nil
		}
		if !domain.IsTransportError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		g.logger.Warn("gateway call failed, retrying",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(operation, g.backOff(ctx), notify)
}

func (g *RetryingGateway) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if g.policy.InitialInterval > 0 {
		exp.InitialInterval = g.policy.InitialInterval
	}
	if g.policy.MaxInterval > 0 {
		exp.MaxInterval = g.policy.MaxInterval
	}
	exp.MaxElapsedTime = g.policy.MaxElapsedTime

	return backoff.WithContext(backoff.WithMaxRetries(exp, g.policy.MaxRetries), ctx)
}
