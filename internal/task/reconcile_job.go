package task

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/blues/carbonledger/internal/config"
	"github.com/blues/carbonledger/internal/logger"
)

// Refresher 从账本全量刷新缓存, *logic.Facade 实现了该接口
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ReconcileJob 账本对账任务, 用最新查询结果覆盖本地缓存
type ReconcileJob struct {
	refresher Refresher
	config    *config.Config
}

// NewReconcileJob 创建账本对账任务
func NewReconcileJob(refresher Refresher, cfg *config.Config) *ReconcileJob {
	return &ReconcileJob{
		refresher: refresher,
		config:    cfg,
	}
}

// GetName 获取任务名称
func (j *ReconcileJob) GetName() string {
	return "ledger_reconciler"
}

// GetSchedule 获取调度配置
func (j *ReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval())
}

// Execute 执行任务, 单次刷新不超过一个调度周期
func (j *ReconcileJob) Execute() {
	logger.Debug("Starting ledger reconcile task")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), j.interval())
	defer cancel()

	if err := j.refresher.Refresh(ctx); err != nil {
		logger.Error("Ledger reconcile failed: %v", err)
		return
	}

	logger.Debug("Ledger reconcile task completed in %s", time.Since(start))
}

func (j *ReconcileJob) interval() time.Duration {
	return time.Duration(j.config.Task.Interval) * time.Second
}
