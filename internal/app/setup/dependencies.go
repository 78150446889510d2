package setup

import (
	"fmt"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/gateway"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/logger"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/memory"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/migrate"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Dependencies struct {
	Config       *config.PaymentConfig
	Logger       *zap.Logger
	DB           *gorm.DB
	Registry     *prometheus.Registry
	Metrics      *metrics.PaymentMetrics
	Gateway      domain.PaymentGateway
	Publisher    domain.PaymentEventPublisher
	Subscriber   *kafka.DefaultKafkaSubscriber
	Repositories *Repositories

	kafkaPublisher *kafka.DefaultKafkaPublisher
}

type Repositories struct {
	TransactionRepo domain.TransactionRepository
	OrderRepo       domain.OrderRepository
	OrderWriter     domain.OrderWriter
	AttemptLogger   domain.PaymentAttemptLogger
}

func InitializeDependencies(cfg *config.PaymentConfig, log *zap.Logger) (*Dependencies, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	deps := &Dependencies{
		Config:   cfg,
		Logger:   log,
		Registry: registry,
		Metrics:  paymentMetrics,
	}

	switch cfg.PaymentDB.Driver {
	case "memory":
		log.Warn("using in-memory storage, payments are lost on restart")
		store := memory.NewStore()
		deps.Repositories = &Repositories{
			TransactionRepo: store,
			OrderRepo:       store,
			OrderWriter:     store,
		}
	default:
		db := postgres.MustInitDB(cfg)
		if err := migrate.RunMigrations(db, cfg.PaymentDB.MigrationsPath, log); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		orderRepo := repository.NewDefaultOrderRepository(db)
		deps.DB = db
		deps.Repositories = &Repositories{
			TransactionRepo: repository.NewDefaultTransactionRepository(db),
			OrderRepo:       orderRepo,
			OrderWriter:     orderRepo,
			AttemptLogger:   logger.NewPGPaymentAttemptLogger(db),
		}
	}

	gw, err := initGateway(cfg, log, paymentMetrics)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	deps.Gateway = gw

	if len(cfg.KafkaService.Brokers) > 0 {
		deps.kafkaPublisher = kafka.NewDefaultKafkaPublisher(cfg.KafkaService.Brokers)
		deps.Publisher = kafka.NewPaymentEventPublisher(deps.kafkaPublisher, cfg.KafkaService.Topic)
		deps.Subscriber = kafka.NewDefaultKafkaSubscriber(cfg.KafkaService.Brokers, log)
	} else {
		log.Warn("no kafka brokers configured, payment events are not published")
	}

	return deps, nil
}

func initGateway(cfg *config.PaymentConfig, log *zap.Logger, m *metrics.PaymentMetrics) (domain.PaymentGateway, error) {
	client, err := gateway.NewClient(gateway.Config{
		Name:        cfg.Gateway.Name,
		BaseURL:     cfg.Gateway.BaseURL,
		Username:    cfg.Gateway.Username,
		Password:    cfg.Gateway.Password,
		AppKey:      cfg.Gateway.AppKey,
		AppSecret:   cfg.Gateway.AppSecret,
		Currency:    cfg.Gateway.Currency,
		Timeout:     cfg.Gateway.Timeout,
		TokenMargin: cfg.Gateway.TokenMargin,
	}, log, gateway.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	policy := gateway.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Gateway.MaxRetries
	return gateway.NewRetryingGateway(client, policy, log), nil
}

// Close releases the kafka writer and the database pool.
func (d *Dependencies) Close() {
	if d.kafkaPublisher != nil {
		if err := d.kafkaPublisher.Close(); err != nil {
			d.Logger.Warn("failed to close kafka publisher", zap.Error(err))
		}
	}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
