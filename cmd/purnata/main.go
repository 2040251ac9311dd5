// Package main запускает HTTP-сервер консоли Purnata.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/purnata-console/internal/config"
	"github.com/mmeshcher/purnata-console/internal/courier"
	"github.com/mmeshcher/purnata-console/internal/handler"
	"github.com/mmeshcher/purnata-console/internal/inventory"
	"github.com/mmeshcher/purnata-console/internal/jobs"
	"github.com/mmeshcher/purnata-console/internal/locker"
	"github.com/mmeshcher/purnata-console/internal/middleware"
	"github.com/mmeshcher/purnata-console/internal/model"
	"github.com/mmeshcher/purnata-console/internal/repository"
	"github.com/mmeshcher/purnata-console/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	gateways := map[model.CourierType]courier.Gateway{
		model.CourierSteadfast: courier.NewSteadfastClient(cfg.SteadfastBaseURL),
	}

	opts := []service.Option{}
	if cfg.StrictTransitions {
		opts = append(opts, service.WithPolicy(service.StrictPolicy))
	}

	if cfg.RedisAddr != "" {
		redisLocker := locker.NewRedis(cfg.RedisAddr, "purnata")
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisLocker.Ping(pingCtx)
		cancel()
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer redisLocker.Close()

		opts = append(opts, service.WithLocker(redisLocker))
		sugar.Infow("using redis order locks", "addr", cfg.RedisAddr)
	}

	svc := service.NewService(repo, inventory.NewLedger(repo), gateways, opts...)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Сверка отправлений по расписанию включается только явно
	if cfg.SyncSchedule != "" {
		syncJob := jobs.NewCourierSyncJob(svc, cfg.SyncSchedule, logger)
		if err := syncJob.Start(); err != nil {
			sugar.Fatalw("courier sync job error", "error", err.Error())
		}

		g.Go(func() error {
			<-ctx.Done()
			syncJob.Stop()
			return nil
		})
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting purnata console", "addr", cfg.RunAddress, "strict", cfg.StrictTransitions)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
