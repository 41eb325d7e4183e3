package memledger

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/blues/carbonledger/internal/ledger"
	"github.com/blues/carbonledger/internal/logger"
	"github.com/blues/carbonledger/internal/model"
)

// Ledger 内存版注册合约, 复现链上合约的校验与托管语义
type Ledger struct {
	mu sync.Mutex

	admin     string
	validator string

	projects    []model.Project
	listings    []model.Listing
	tokens      map[string]uint64 // 碳信用代币余额
	funds       map[string]uint64 // 货币余额
	escrow      uint64            // 合约托管中的代币
	totalIssued uint64

	queryLag  int
	snapshots []snapshot

	calls    map[string]int
	failures map[string]error
	hold     *hold
}

type snapshot struct {
	projects []model.Project
	listings []model.Listing
}

type hold struct {
	entered chan struct{}
	release chan struct{}
}

// Option 内存账本选项
type Option func(*Ledger)

// WithValidator 设置初始核证人
func WithValidator(address string) Option {
	return func(l *Ledger) {
		l.validator = address
	}
}

// WithQueryLag 查询结果落后最新状态 n 次变更, 用于模拟最终一致性
func WithQueryLag(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.queryLag = n
		}
	}
}

// New 创建内存账本, admin 为部署者
func New(admin string, opts ...Option) *Ledger {
	l := &Ledger{
		admin:    admin,
		tokens:   make(map[string]uint64),
		funds:    make(map[string]uint64),
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.snapshots = []snapshot{l.snapshot()}
	return l
}

var _ ledger.Gateway = (*Ledger)(nil)

// SetValidator 管理员指定核证人
func (l *Ledger) SetValidator(from, address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if from != l.admin {
		return ledger.Rejected("setValidator", "unauthorized: admin only")
	}
	l.validator = address
	return nil
}

// TransferAdmin 管理员转移管理权
func (l *Ledger) TransferAdmin(from, newAdmin string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if from != l.admin {
		return ledger.Rejected("transferAdmin", "unauthorized: admin only")
	}
	if newAdmin == "" {
		return ledger.Rejected("transferAdmin", "invalid: zero address")
	}
	l.admin = newAdmin
	return nil
}

// Validator 返回当前核证人
func (l *Ledger) Validator() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.validator
}

// Mint 直接给地址发放代币
func (l *Ledger) Mint(address string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[address] += amount
}

// Fund 给地址充值货币
func (l *Ledger) Fund(address string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funds[address] += amount
}

// FundsOf 查询地址货币余额
func (l *Ledger) FundsOf(address string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.funds[address]
}

// Escrowed 合约托管中的代币总量
func (l *Ledger) Escrowed() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.escrow
}

// TotalCreditsIssued 累计发放的碳信用
func (l *Ledger) TotalCreditsIssued() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalIssued
}

// FailNext 让下一次 op 调用返回 err
func (l *Ledger) FailNext(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[op] = err
}

// Calls 返回 op 被调用的次数
func (l *Ledger) Calls(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// HoldNextSubmit 阻塞下一次提交, entered 在提交开始时关闭, 调用 release 后继续
func (l *Ledger) HoldNextSubmit() (entered <-chan struct{}, release func()) {
	h := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	l.mu.Lock()
	l.hold = h
	l.mu.Unlock()

	var once sync.Once
	return h.entered, func() { once.Do(func() { close(h.release) }) }
}

// SubmitProjectCreation 提交项目
func (l *Ledger) SubmitProjectCreation(ctx context.Context, from string, meta model.ProjectMetadata) (uint64, error) {
	var id uint64
	err := l.submit(ctx, ledger.OpSubmitProjectCreation, func() error {
		if strings.TrimSpace(meta.Name) == "" {
			return errors.New("invalid metadata: empty name")
		}
		if strings.TrimSpace(meta.CID) == "" {
			return errors.New("invalid metadata: empty cid")
		}
		id = uint64(len(l.projects))
		l.projects = append(l.projects, model.Project{
			ID:        id,
			Name:      meta.Name,
			Location:  meta.Location,
			Ecosystem: meta.Ecosystem,
			Submitter: from,
			CID:       meta.CID,
			Status:    model.ProjectStatusPending,
		})
		return nil
	})
	return id, err
}

// SubmitApproval 核证人批准项目
func (l *Ledger) SubmitApproval(ctx context.Context, from string, id, credits uint64) error {
	return l.submit(ctx, ledger.OpSubmitApproval, func() error {
		p, err := l.validatorProject(from, id)
		if err != nil {
			return err
		}
		if credits == 0 {
			return errors.New("credits must be > 0")
		}
		if p.Status != model.ProjectStatusPending {
			return errors.New("project not pending")
		}
		p.Status = model.ProjectStatusVerified
		p.Credits = credits
		return nil
	})
}

// SubmitRejection 核证人驳回项目
func (l *Ledger) SubmitRejection(ctx context.Context, from string, id uint64) error {
	return l.submit(ctx, ledger.OpSubmitRejection, func() error {
		p, err := l.validatorProject(from, id)
		if err != nil {
			return err
		}
		if p.Status != model.ProjectStatusPending {
			return errors.New("project not pending")
		}
		p.Status = model.ProjectStatusRejected
		return nil
	})
}

// SubmitIssuance 发放碳信用给项目提交者
func (l *Ledger) SubmitIssuance(ctx context.Context, from string, id uint64) error {
	return l.submit(ctx, ledger.OpSubmitIssuance, func() error {
		p, err := l.validatorProject(from, id)
		if err != nil {
			return err
		}
		if p.Status != model.ProjectStatusVerified {
			return errors.New("project not verified")
		}
		l.tokens[p.Submitter] += p.Credits
		l.totalIssued += p.Credits
		p.Status = model.ProjectStatusIssued
		return nil
	})
}

// SubmitListingCreation 挂单出售, 代币转入合约托管
func (l *Ledger) SubmitListingCreation(ctx context.Context, from string, amount, price uint64) (uint64, error) {
	var id uint64
	err := l.submit(ctx, ledger.OpSubmitListingCreation, func() error {
		if amount == 0 {
			return errors.New("amount must be > 0")
		}
		if price == 0 {
			return errors.New("price must be > 0")
		}
		if l.tokens[from] < amount {
			return errors.New("insufficient token balance")
		}
		l.tokens[from] -= amount
		l.escrow += amount

		id = uint64(len(l.listings))
		l.listings = append(l.listings, model.Listing{
			ID:            id,
			Seller:        from,
			Amount:        amount,
			PricePerToken: price,
			Active:        true,
		})
		return nil
	})
	return id, err
}

// SubmitBuy 购买挂单, 买方支付总价给卖方并获得托管代币
func (l *Ledger) SubmitBuy(ctx context.Context, from string, id uint64) error {
	return l.submit(ctx, ledger.OpSubmitBuy, func() error {
		lst, err := l.activeListing(id)
		if err != nil {
			return err
		}
		total, ok := lst.TotalCost()
		if !ok {
			return errors.New("total cost overflow")
		}
		if l.funds[from] < total {
			return errors.New("insufficient payment")
		}
		l.funds[from] -= total
		l.funds[lst.Seller] += total
		l.tokens[from] += lst.Amount
		l.escrow -= lst.Amount

		lst.Active = false
		lst.Amount = 0
		return nil
	})
}

// SubmitCancel 卖方撤单, 托管代币退回
func (l *Ledger) SubmitCancel(ctx context.Context, from string, id uint64) error {
	return l.submit(ctx, ledger.OpSubmitCancel, func() error {
		lst, err := l.activeListing(id)
		if err != nil {
			return err
		}
		if from != lst.Seller {
			return errors.New("only seller can cancel")
		}
		l.tokens[lst.Seller] += lst.Amount
		l.escrow -= lst.Amount

		lst.Active = false
		lst.Amount = 0
		return nil
	})
}

// QueryProjects 查询全部项目
func (l *Ledger) QueryProjects(ctx context.Context) ([]model.Project, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enter(ctx, ledger.OpQueryProjects); err != nil {
		return nil, err
	}
	snap := l.lagged()
	return append([]model.Project(nil), snap.projects...), nil
}

// QueryListings 查询全部挂单
func (l *Ledger) QueryListings(ctx context.Context) ([]model.Listing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enter(ctx, ledger.OpQueryListings); err != nil {
		return nil, err
	}
	snap := l.lagged()
	return append([]model.Listing(nil), snap.listings...), nil
}

// QueryBalance 查询代币余额
func (l *Ledger) QueryBalance(ctx context.Context, address string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enter(ctx, ledger.OpQueryBalance); err != nil {
		return 0, err
	}
	return l.tokens[address], nil
}

// submit 执行一次变更, apply 返回的错误视为账本拒绝
func (l *Ledger) submit(ctx context.Context, op string, apply func() error) error {
	l.mu.Lock()
	h := l.hold
	l.hold = nil
	l.mu.Unlock()

	if h != nil {
		close(h.entered)
		select {
		case <-h.release:
		case <-ctx.Done():
			return ledger.Wrap(op, ctx.Err())
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enter(ctx, op); err != nil {
		return err
	}
	if err := apply(); err != nil {
		logger.Debug("memledger %s rejected: %v", op, err)
		return ledger.Rejected(op, err.Error())
	}
	l.snapshots = append(l.snapshots, l.snapshot())
	if len(l.snapshots) > l.queryLag+1 {
		l.snapshots = l.snapshots[len(l.snapshots)-l.queryLag-1:]
	}
	return nil
}

// enter 记录调用并处理注入的失败, 调用方需持有锁
func (l *Ledger) enter(ctx context.Context, op string) error {
	l.calls[op]++
	if err := ctx.Err(); err != nil {
		return ledger.Wrap(op, err)
	}
	if err, ok := l.failures[op]; ok {
		delete(l.failures, op)
		return ledger.Wrap(op, err)
	}
	return nil
}

func (l *Ledger) validatorProject(from string, id uint64) (*model.Project, error) {
	if l.validator == "" || from != l.validator {
		return nil, errors.New("unauthorized: validator only")
	}
	if id >= uint64(len(l.projects)) {
		return nil, errors.New("invalid project id")
	}
	return &l.projects[id], nil
}

func (l *Ledger) activeListing(id uint64) (*model.Listing, error) {
	if id >= uint64(len(l.listings)) {
		return nil, errors.New("invalid listing id")
	}
	lst := &l.listings[id]
	if !lst.Active {
		return nil, errors.New("listing not active")
	}
	return lst, nil
}

func (l *Ledger) snapshot() snapshot {
	return snapshot{
		projects: append([]model.Project(nil), l.projects...),
		listings: append([]model.Listing(nil), l.listings...),
	}
}

func (l *Ledger) lagged() snapshot {
	idx := len(l.snapshots) - 1 - l.queryLag
	if idx < 0 {
		idx = 0
	}
	return l.snapshots[idx]
}
