package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adforge/core/internal/modules/storage/hosting"
	pkgcron "github.com/adforge/core/internal/pkg/cron"
	"github.com/adforge/core/internal/pkg/taskqueue"
)

// registerCronJobs registers the background maintenance jobs.
func registerCronJobs(sched *pkgcron.Scheduler, pipeline *hosting.Pipeline, tasks *taskqueue.Service, logger *zap.Logger) {
	sched.Register(pkgcron.Job{
		Name:        "promote_local_assets",
		Description: "re-upload assets stranded on the local tier to object storage",
		Interval:    10 * time.Minute,
		Fn: func(ctx context.Context) error {
			promoted, err := pipeline.PromoteLocal(ctx, 50)
			if err != nil {
				logger.Warn("asset promotion failed", zap.Error(err))
				return err
			}
			if promoted > 0 {
				logger.Info(fmt.Sprintf("promoted %d local assets", promoted))
			}
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "prune_tasks",
		Description: "delete terminal background tasks older than 72h",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			cutoff := time.Now().Add(-72 * time.Hour).UnixMilli()
			if err := tasks.DeleteCompleted(ctx, cutoff); err != nil {
				logger.Warn("task pruning failed", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
