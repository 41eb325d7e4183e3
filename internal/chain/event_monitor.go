package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/blues/carbonledger/internal/logger"
)

// LogReader 读取区块头和合约日志, *ethclient.Client 实现了该接口
type LogReader interface {
	HeaderReader
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Refresher 从账本全量刷新缓存
type Refresher interface {
	Refresh(ctx context.Context) error
}

// EventMonitor 轮询注册合约日志, 发现其他客户端的变更时立即刷新缓存
type EventMonitor struct {
	reader    LogReader
	contract  *Contract
	refresher Refresher
	interval  time.Duration
	maxRange  uint64 // 单次查询的最大区块跨度

	mu        sync.Mutex
	lastBlock uint64
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewEventMonitor 创建事件监控, 从合约部署区块开始扫描
func NewEventMonitor(reader LogReader, contract *Contract, refresher Refresher, interval time.Duration) *EventMonitor {
	var last uint64
	if contract.GetBlockNum() > 0 {
		last = uint64(contract.GetBlockNum()) - 1
	}
	return &EventMonitor{
		reader:    reader,
		contract:  contract,
		refresher: refresher,
		interval:  interval,
		maxRange:  2000,
		lastBlock: last,
	}
}

// Start 开始监控链上事件
func (m *EventMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	logger.Info("Starting registry event monitor from block %d", m.LastBlock()+1)
	go m.monitorLoop(ctx)
}

// Stop 停止监控并等待循环退出
func (m *EventMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// LastBlock 已处理的最后区块号
func (m *EventMonitor) LastBlock() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBlock
}

// monitorLoop 监控循环
func (m *EventMonitor) monitorLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Registry event monitor stopped")
			return
		case <-ticker.C:
			if _, err := m.ProcessNewBlocks(ctx); err != nil {
				logger.Error("Error processing blocks: %v", err)
			}
		}
	}
}

// ProcessNewBlocks 扫描新区块中的合约日志, 返回发现的事件数
func (m *EventMonitor) ProcessNewBlocks(ctx context.Context) (int, error) {
	head, err := GetCurrentBlockNumber(ctx, m.reader)
	if err != nil {
		return 0, fmt.Errorf("failed to get current block number: %w", err)
	}

	m.mu.Lock()
	from := m.lastBlock + 1
	m.mu.Unlock()
	if from > head {
		return 0, nil
	}

	total := 0
	for from <= head {
		to := min(head, from+m.maxRange-1)
		logs, err := m.reader.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{m.contract.GetAddress()},
		})
		if err != nil {
			return total, fmt.Errorf("failed to filter logs %d-%d: %w", from, to, err)
		}

		found := 0
		for _, l := range logs {
			if l.Removed {
				continue
			}
			logger.Debug("Registry event %s in block %d tx %s", m.contract.EventName(l), l.BlockNumber, l.TxHash.Hex())
			found++
		}
		total += found

		// 有变更时先刷新, 刷新失败则下次重扫同一区间
		if found > 0 {
			if err := m.refresher.Refresh(ctx); err != nil {
				return total, fmt.Errorf("refresh after %d events: %w", found, err)
			}
		}

		m.mu.Lock()
		m.lastBlock = to
		m.mu.Unlock()
		from = to + 1
	}

	if total > 0 {
		logger.Info("Processed %d registry events up to block %d", total, head)
	}
	return total, nil
}
