// Package jobs содержит фоновые задания консоли, работающие по расписанию.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 100
	runTimeout       = 2 * time.Minute
)

// ShipmentSyncer сверяет отправленные заказы со службами доставки.
type ShipmentSyncer interface {
	SyncShipments(ctx context.Context, limit int) (int, error)
}

// CourierSyncJob периодически сверяет статусы отправлений с курьерами.
type CourierSyncJob struct {
	syncer    ShipmentSyncer
	schedule  string
	batchSize int
	cron      *cron.Cron
	logger    *zap.Logger
}

// NewCourierSyncJob создаёт задание с cron-расписанием, например "*/15 * * * *" или "@every 10m".
func NewCourierSyncJob(syncer ShipmentSyncer, schedule string, logger *zap.Logger) *CourierSyncJob {
	return &CourierSyncJob{
		syncer:    syncer,
		schedule:  schedule,
		batchSize: defaultBatchSize,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger.With(zap.String("component", "courier_sync_job")),
	}
}

// Start регистрирует задание и запускает планировщик.
func (j *CourierSyncJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.runOnce); err != nil {
		return fmt.Errorf("schedule courier sync %q: %w", j.schedule, err)
	}

	j.cron.Start()
	j.logger.Info("courier sync job started", zap.String("schedule", j.schedule))
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущей сверки.
func (j *CourierSyncJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("courier sync job stopped")
}

func (j *CourierSyncJob) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	j.Run(ctx)
}

// Run выполняет одну сверку. Ошибки отдельных заказов логируются и не прерывают задание.
func (j *CourierSyncJob) Run(ctx context.Context) int {
	start := time.Now()

	changed, err := j.syncer.SyncShipments(ctx, j.batchSize)
	if err != nil {
		j.logger.Warn("courier sync finished with errors",
			zap.Int("changed", changed), zap.Error(err), zap.Duration("duration", time.Since(start)))
		return changed
	}

	if changed > 0 {
		j.logger.Info("courier sync finished",
			zap.Int("changed", changed), zap.Duration("duration", time.Since(start)))
	}
	return changed
}
