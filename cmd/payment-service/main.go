package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/app/setup"
	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/delivery/grpcapi"
	httpapi "github.com/LavaJover/shvark-payment-service/internal/delivery/http"
	"github.com/LavaJover/shvark-payment-service/internal/delivery/http/handlers"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	// Reading config
	cfg := config.MustLoad()

	zlog, err := logger.New(logger.Config{
		ServiceName: "payment-service",
		Env:         cfg.Env,
		Level:       cfg.LogConfig.LogLevel,
		Format:      cfg.LogConfig.LogFormat,
	})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync(zlog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup.InitializeDependencies(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to init dependencies", zap.Error(err))
	}
	defer deps.Close()

	ucs, err := setup.InitializeUseCases(deps)
	if err != nil {
		zlog.Fatal("failed to init usecases", zap.Error(err))
	}

	tasks := setup.InitializeBackgroundTasks(deps, ucs)
	if err := tasks.StartAll(ctx); err != nil {
		zlog.Fatal("failed to start background tasks", zap.Error(err))
	}

	// HTTP API
	router := httpapi.NewRouter(handlers.NewPaymentHandler(ucs.PaymentUsecase, zlog), deps.Registry)
	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	// gRPC health
	health := grpcapi.NewHealth()
	grpcServer := grpcapi.NewServer(zlog)
	health.Register(grpcServer)

	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.GRPCServer.Host, cfg.GRPCServer.Port))
	if err != nil {
		zlog.Fatal("failed to listen", zap.Error(err))
	}

	serveErr := make(chan error, 2)
	go func() {
		zlog.Info("http server started", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	go func() {
		zlog.Info("grpc server started", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- err
		}
	}()

	health.SetServing()
	if deps.DB != nil {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			go health.Watch(ctx, 15*time.Second, sqlDB.PingContext, zlog)
		}
	}

	select {
	case <-ctx.Done():
		zlog.Info("shutdown signal received")
	case err := <-serveErr:
		zlog.Error("server failed", zap.Error(err))
	}
	stop()

	health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	zlog.Info("payment service stopped")
}
