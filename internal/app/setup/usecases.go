package setup

import (
	"fmt"

	"github.com/LavaJover/shvark-payment-service/internal/app/background"
	usecase "github.com/LavaJover/shvark-payment-service/internal/usecase/payment"
)

type UseCases struct {
	PaymentUsecase usecase.PaymentUsecase
}

func InitializeUseCases(deps *Dependencies) (*UseCases, error) {
	cfg := deps.Config
	paymentUsecase, err := usecase.NewDefaultPaymentUsecase(
		deps.Repositories.TransactionRepo,
		deps.Repositories.OrderRepo,
		deps.Gateway,
		nil,
		deps.Publisher,
		deps.Repositories.AttemptLogger,
		deps.Metrics,
		deps.Logger,
		usecase.Options{
			CallbackURL: cfg.Gateway.CallbackURL,
			Currency:    cfg.Gateway.Currency,
			StaleAfter:  cfg.Reconciliation.StaleAfter,
			BatchSize:   cfg.Reconciliation.BatchSize,
			Concurrency: cfg.Reconciliation.Concurrency,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("payment usecase: %w", err)
	}

	return &UseCases{PaymentUsecase: paymentUsecase}, nil
}

func InitializeBackgroundTasks(deps *Dependencies, ucs *UseCases) *background.BackgroundTasks {
	var sub background.Subscriber
	if deps.Subscriber != nil {
		sub = deps.Subscriber
	}
	return background.NewBackgroundTasks(
		ucs.PaymentUsecase,
		deps.Repositories.OrderWriter,
		sub,
		background.Config{
			ReconcileEnabled:  deps.Config.Reconciliation.Enabled,
			ReconcileInterval: deps.Config.Reconciliation.Interval,
			OrderTopic:        deps.Config.KafkaService.OrderTopic,
			GroupID:           deps.Config.KafkaService.GroupID,
		},
		deps.Logger,
	)
}
