package logic

import (
	"context"
	"time"

	"github.com/blues/carbonledger/internal/model"
)

// Journal 审计日志, 由 repository.OperationJournal 实现
type Journal interface {
	Record(ctx context.Context, op *model.OperationModel) error
}

// Metrics 运行指标, 由 metrics.Metrics 实现
type Metrics interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	ObserveRefresh(err error)
	SetBusy(busy bool)
}

type options struct {
	journal        Journal
	metrics        Metrics
	poolSize       int
	refreshTimeout time.Duration
}

func defaultOptions() options {
	return options{
		poolSize:       4,
		refreshTimeout: 30 * time.Second,
	}
}

// Option Facade 选项
type Option func(*options)

// WithJournal 记录每次变更操作
func WithJournal(j Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithMetrics 上报操作与刷新指标
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithPoolSize 后台对账协程池大小
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithRefreshTimeout 后台对账单次超时
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshTimeout = d
		}
	}
}
