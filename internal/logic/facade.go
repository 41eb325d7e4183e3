package logic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blues/carbonledger/internal/access"
	"github.com/blues/carbonledger/internal/gate"
	"github.com/blues/carbonledger/internal/ledger"
	"github.com/blues/carbonledger/internal/logger"
	"github.com/blues/carbonledger/internal/model"
)

// Facade 调用方唯一入口, 组合注册表 市场托管 互斥门与权限策略
//
// 变更流程: 鉴权 -> 本地校验 -> 占用互斥门 -> 提交账本 -> 乐观更新缓存
// -> 投递后台对账 -> 释放互斥门. 查询和余额刷新不经过互斥门.
type Facade struct {
	gateway  ledger.Gateway
	policy   access.Policy
	gate     *gate.Gate
	registry *ProjectRegistry
	escrow   *MarketplaceEscrow

	balMu    sync.RWMutex
	balances map[string]uint64
	balEpoch uint64

	pool *ants.Pool
	wg   sync.WaitGroup
	opts options
}

// balanceRefreshLimit 并发余额查询上限
const balanceRefreshLimit = 8

// NewFacade 创建 Facade
func NewFacade(gateway ledger.Gateway, policy access.Policy, opts ...Option) (*Facade, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	// 对账任务不能阻塞持有互斥门的调用方, 池满时直接放弃本次对账
	pool, err := ants.NewPool(o.poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile pool: %w", err)
	}

	f := &Facade{
		gateway:  gateway,
		policy:   policy,
		registry: NewProjectRegistry(gateway),
		escrow:   NewMarketplaceEscrow(gateway),
		balances: make(map[string]uint64),
		pool:     pool,
		opts:     o,
	}
	var onChange func(bool)
	if o.metrics != nil {
		onChange = o.metrics.SetBusy
	}
	f.gate = gate.New(onChange)
	return f, nil
}

// Close 等待后台对账结束并释放协程池
func (f *Facade) Close() {
	f.wg.Wait()
	f.pool.Release()
}

// Wait 等待已投递的后台对账完成
func (f *Facade) Wait() {
	f.wg.Wait()
}

// IsBusy 是否有变更操作在等待账本确认
func (f *Facade) IsBusy() bool {
	return f.gate.IsBusy()
}

// RoleOf 查询地址角色
func (f *Facade) RoleOf(address string) access.Role {
	return f.policy.RoleOf(f.address(address))
}

// Refresh 并发刷新项目和挂单, 之后刷新已缓存的余额
//
// 余额查询失败不会中断项目和挂单的对账, 所有错误合并返回.
func (f *Facade) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return f.registry.Refresh(ctx) })
	g.Go(func() error { return f.escrow.Refresh(ctx) })
	err := g.Wait()

	var bg errgroup.Group
	bg.SetLimit(balanceRefreshLimit)
	for _, addr := range f.cachedAddresses() {
		addr := addr
		bg.Go(func() error {
			_, err := f.RefreshBalance(ctx, addr)
			return err
		})
	}
	err = errors.Join(err, bg.Wait())

	if f.opts.metrics != nil {
		f.opts.metrics.ObserveRefresh(err)
	}
	return err
}

// ListProjects 返回全部项目
func (f *Facade) ListProjects() []model.Project {
	return f.registry.List()
}

// ProjectsByStatus 返回指定状态的项目
func (f *Facade) ProjectsByStatus(status model.ProjectStatus) []model.Project {
	return f.registry.ByStatus(status)
}

// ProjectsBySubmitter 返回指定地址提交的项目
func (f *Facade) ProjectsBySubmitter(address string) []model.Project {
	return f.registry.BySubmitter(f.address(address))
}

// GetProject 获取单个项目
func (f *Facade) GetProject(id uint64) (model.Project, error) {
	return f.registry.Get(id)
}

// ListListings 返回全部挂单
func (f *Facade) ListListings() []model.Listing {
	return f.escrow.List()
}

// ActiveListings 返回有效挂单
func (f *Facade) ActiveListings() []model.Listing {
	return f.escrow.Active()
}

// ListingsBySeller 返回指定卖方的挂单
func (f *Facade) ListingsBySeller(address string) []model.Listing {
	return f.escrow.BySeller(f.address(address))
}

// GetListing 获取单个挂单
func (f *Facade) GetListing(id uint64) (model.Listing, error) {
	return f.escrow.Get(id)
}

// Stats 汇总当前缓存的统计信息
func (f *Facade) Stats() model.Stats {
	var stats model.Stats
	f.registry.Stats(&stats)
	f.escrow.Stats(&stats)
	return stats
}

// SubmitProject 提交新项目
func (f *Facade) SubmitProject(ctx context.Context, caller string, meta model.ProjectMetadata) (model.Project, error) {
	caller = f.address(caller)
	rec := newRecord(model.OpSubmitProject, caller)

	var p model.Project
	err := f.execute(nil, func() error {
		var err error
		p, err = f.registry.Submit(ctx, caller, meta)
		return err
	})
	rec.TargetId = p.ID
	return p, f.finish(ctx, &rec, err)
}

// ApproveProject 核证人批准项目
func (f *Facade) ApproveProject(ctx context.Context, caller string, id, credits uint64) error {
	caller = f.address(caller)
	rec := newRecord(model.OpApprove, caller)
	rec.TargetId = id
	rec.Amount = credits

	err := f.execute(func() error {
		if err := f.authorizeValidator(caller); err != nil {
			return err
		}
		return f.registry.CheckApprove(id, credits)
	}, func() error {
		return f.registry.Approve(ctx, caller, id, credits)
	})
	return f.finish(ctx, &rec, err)
}

// RejectProject 核证人驳回项目
func (f *Facade) RejectProject(ctx context.Context, caller string, id uint64) error {
	caller = f.address(caller)
	rec := newRecord(model.OpReject, caller)
	rec.TargetId = id

	err := f.execute(func() error {
		if err := f.authorizeValidator(caller); err != nil {
			return err
		}
		return f.registry.CheckReject(id)
	}, func() error {
		return f.registry.Reject(ctx, caller, id)
	})
	return f.finish(ctx, &rec, err)
}

// IssueCredits 核证人向提交者发放碳信用
func (f *Facade) IssueCredits(ctx context.Context, caller string, id uint64) error {
	caller = f.address(caller)
	rec := newRecord(model.OpIssue, caller)
	rec.TargetId = id

	err := f.execute(func() error {
		if err := f.authorizeValidator(caller); err != nil {
			return err
		}
		return f.registry.CheckIssue(id)
	}, func() error {
		p, err := f.registry.Issue(ctx, caller, id)
		if err != nil {
			return err
		}
		rec.Amount = p.Credits
		f.adjustBalance(p.Submitter, p.Credits, true)
		return nil
	})
	return f.finish(ctx, &rec, err)
}

// ListForSale 挂单出售代币
func (f *Facade) ListForSale(ctx context.Context, caller string, amount, price uint64) (model.Listing, error) {
	caller = f.address(caller)
	rec := newRecord(model.OpListForSale, caller)
	rec.Amount = amount
	rec.Price = price

	var l model.Listing
	err := f.execute(func() error {
		return f.escrow.CheckListForSale(amount, price)
	}, func() error {
		var err error
		l, err = f.escrow.ListForSale(ctx, caller, amount, price)
		if err != nil {
			return err
		}
		f.adjustBalance(caller, amount, false)
		return nil
	})
	rec.TargetId = l.ID
	return l, f.finish(ctx, &rec, err)
}

// BuyListing 购买挂单
func (f *Facade) BuyListing(ctx context.Context, caller string, id uint64) error {
	caller = f.address(caller)
	rec := newRecord(model.OpBuy, caller)
	rec.TargetId = id

	err := f.execute(func() error {
		_, err := f.escrow.CheckBuy(caller, id)
		return err
	}, func() error {
		l, err := f.escrow.Buy(ctx, caller, id)
		if err != nil {
			return err
		}
		rec.Amount, rec.Price = l.Amount, l.PricePerToken
		f.adjustBalance(caller, l.Amount, true)
		return nil
	})
	return f.finish(ctx, &rec, err)
}

// CancelListing 卖方撤单, 托管代币退回
func (f *Facade) CancelListing(ctx context.Context, caller string, id uint64) error {
	caller = f.address(caller)
	rec := newRecord(model.OpCancel, caller)
	rec.TargetId = id

	err := f.execute(func() error {
		_, err := f.escrow.CheckCancel(caller, id)
		return err
	}, func() error {
		l, err := f.escrow.Cancel(ctx, caller, id)
		if err != nil {
			return err
		}
		rec.Amount, rec.Price = l.Amount, l.PricePerToken
		f.adjustBalance(caller, l.Amount, true)
		return nil
	})
	return f.finish(ctx, &rec, err)
}

// RefreshBalance 查询账本余额并更新缓存, 不经过互斥门
func (f *Facade) RefreshBalance(ctx context.Context, address string) (uint64, error) {
	address = f.address(address)
	if address == "" {
		return 0, fmt.Errorf("address is empty: %w", model.ErrInvalidArgument)
	}

	f.balMu.RLock()
	epoch := f.balEpoch
	f.balMu.RUnlock()

	bal, err := f.gateway.QueryBalance(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("refresh balance of %s: %w", address, err)
	}

	// 查询期间有乐观调整时不覆盖缓存
	f.balMu.Lock()
	if f.balEpoch == epoch {
		f.balances[address] = bal
	}
	f.balMu.Unlock()
	return bal, nil
}

// Balance 返回缓存的余额, 可能落后于账本
func (f *Facade) Balance(address string) (uint64, bool) {
	f.balMu.RLock()
	defer f.balMu.RUnlock()
	bal, ok := f.balances[f.address(address)]
	return bal, ok
}

// address 按账本的地址编码规范化
func (f *Facade) address(s string) string {
	return ledger.NormalizeAddress(f.gateway, s)
}

func newRecord(op, caller string) model.OperationModel {
	return model.OperationModel{Operation: op, Caller: caller, CreatedAt: time.Now()}
}

func (f *Facade) authorizeValidator(caller string) error {
	if !access.IsValidator(f.policy, caller) {
		return fmt.Errorf("%q is not the validator: %w", caller, model.ErrUnauthorized)
	}
	return nil
}

// execute 在互斥门内执行一次变更, check 在占用互斥门之前执行
func (f *Facade) execute(check, submit func() error) error {
	if check != nil {
		if err := check(); err != nil {
			return err
		}
	}

	if err := f.gate.TryAcquire(); err != nil {
		return err
	}
	defer f.gate.Release()

	if err := submit(); err != nil {
		return err
	}
	f.reconcile()
	return nil
}

// finish 记录审计日志和指标, 原样返回 err
func (f *Facade) finish(ctx context.Context, rec *model.OperationModel, err error) error {
	rec.Result = model.OperationResultSuccess
	if err != nil {
		rec.Result = model.OperationResultFailed
		rec.Error = err.Error()
		logger.With(zap.String("operation", rec.Operation), zap.String("caller", rec.Caller)).
			Warn("Operation failed: %v", err)
	}

	if f.opts.metrics != nil {
		f.opts.metrics.ObserveOperation(rec.Operation, err, time.Since(rec.CreatedAt))
	}
	if f.opts.journal != nil {
		if jerr := f.opts.journal.Record(context.WithoutCancel(ctx), rec); jerr != nil {
			logger.Error("Failed to record operation %s: %v", rec.Operation, jerr)
		}
	}
	return err
}

// reconcile 投递后台全量刷新, 覆盖乐观更新的结果
func (f *Facade) reconcile() {
	f.wg.Add(1)
	err := f.pool.Submit(func() {
		defer f.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), f.opts.refreshTimeout)
		defer cancel()
		if err := f.Refresh(ctx); err != nil {
			logger.Warn("Background reconcile failed: %v", err)
		}
	})
	if err != nil {
		f.wg.Done()
		logger.Warn("Background reconcile skipped: %v", err)
	}
}

// adjustBalance 乐观调整已缓存的余额, 未缓存的地址等待下次刷新
// 结果饱和在 [0, MaxUint64] 内
func (f *Facade) adjustBalance(address string, amount uint64, credit bool) {
	f.balMu.Lock()
	defer f.balMu.Unlock()

	bal, ok := f.balances[address]
	if !ok {
		return
	}
	f.balEpoch++
	switch {
	case credit && amount > math.MaxUint64-bal:
		f.balances[address] = math.MaxUint64
	case credit:
		f.balances[address] = bal + amount
	case amount > bal:
		f.balances[address] = 0
	default:
		f.balances[address] = bal - amount
	}
}

func (f *Facade) cachedAddresses() []string {
	f.balMu.RLock()
	defer f.balMu.RUnlock()

	addrs := make([]string, 0, len(f.balances))
	for addr := range f.balances {
		addrs = append(addrs, addr)
	}
	return addrs
}
