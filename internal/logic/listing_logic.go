package logic

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/blues/carbonledger/internal/ledger"
	"github.com/blues/carbonledger/internal/logger"
	"github.com/blues/carbonledger/internal/model"
)

// MarketplaceEscrow 市场托管, 持有挂单缓存
//
// 挂单只有 active -> consumed 一种迁移, 成交和撤单都是终态.
type MarketplaceEscrow struct {
	mu       sync.RWMutex
	listings map[uint64]model.Listing
	epoch    uint64 // 每次乐观更新递增
	gateway  ledger.Gateway
}

// NewMarketplaceEscrow 创建市场托管
func NewMarketplaceEscrow(gateway ledger.Gateway) *MarketplaceEscrow {
	return &MarketplaceEscrow{
		listings: make(map[uint64]model.Listing),
		gateway:  gateway,
	}
}

// Refresh 从账本全量查询并覆盖缓存
//
// 查询期间发生过乐观更新时丢弃本次结果, 该更新自己会触发新的刷新.
func (m *MarketplaceEscrow) Refresh(ctx context.Context) error {
	m.mu.RLock()
	epoch := m.epoch
	m.mu.RUnlock()

	listings, err := m.gateway.QueryListings(ctx)
	if err != nil {
		return fmt.Errorf("refresh listings: %w", err)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		logger.Debug("Discarded listing query issued before a local update")
		return nil
	}
	next := make(map[uint64]model.Listing, len(listings))
	for _, l := range listings {
		l.Seller = ledger.NormalizeAddress(m.gateway, l.Seller)
		// 已消耗的挂单不会因滞后的查询重新生效
		if cached, ok := m.listings[l.ID]; ok && !cached.Active && l.Active {
			l = cached
		}
		next[l.ID] = l
	}
	m.listings = next
	m.mu.Unlock()

	logger.Debug("Refreshed %d listings", len(next))
	return nil
}

// List 返回全部挂单
func (m *MarketplaceEscrow) List() []model.Listing {
	return m.filter(func(model.Listing) bool { return true })
}

// Active 返回有效挂单
func (m *MarketplaceEscrow) Active() []model.Listing {
	return m.filter(func(l model.Listing) bool { return l.Active })
}

// BySeller 返回指定卖方的挂单
func (m *MarketplaceEscrow) BySeller(address string) []model.Listing {
	return m.filter(func(l model.Listing) bool { return l.Seller == address })
}

// Get 获取单个挂单
func (m *MarketplaceEscrow) Get(id uint64) (model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.listings[id]
	if !ok {
		return model.Listing{}, fmt.Errorf("listing %d: %w", id, model.ErrListingNotFound)
	}
	return l, nil
}

// CheckListForSale 本地校验挂单参数
func (m *MarketplaceEscrow) CheckListForSale(amount, price uint64) error {
	if amount == 0 {
		return fmt.Errorf("amount must be > 0: %w", model.ErrInvalidArgument)
	}
	if price == 0 {
		return fmt.Errorf("price must be > 0: %w", model.ErrInvalidArgument)
	}
	if _, ok := model.MulTotal(amount, price); !ok {
		return fmt.Errorf("total cost of %d x %d overflows: %w", amount, price, model.ErrInvalidArgument)
	}
	return nil
}

// CheckBuy 本地校验购买前置条件
func (m *MarketplaceEscrow) CheckBuy(caller string, id uint64) (model.Listing, error) {
	l, err := m.activeListing(id)
	if err != nil {
		return l, err
	}
	if l.Seller == caller {
		return l, fmt.Errorf("seller cannot buy own listing %d: %w", id, model.ErrInvalidOperation)
	}
	return l, nil
}

// CheckCancel 本地校验撤单前置条件
func (m *MarketplaceEscrow) CheckCancel(caller string, id uint64) (model.Listing, error) {
	l, err := m.activeListing(id)
	if err != nil {
		return l, err
	}
	if l.Seller != caller {
		return l, fmt.Errorf("only seller can cancel listing %d: %w", id, model.ErrUnauthorized)
	}
	return l, nil
}

// ListForSale 创建挂单, 代币由账本转入托管
func (m *MarketplaceEscrow) ListForSale(ctx context.Context, caller string, amount, price uint64) (model.Listing, error) {
	if err := m.CheckListForSale(amount, price); err != nil {
		return model.Listing{}, err
	}

	id, err := m.gateway.SubmitListingCreation(ctx, caller, amount, price)
	if err != nil {
		return model.Listing{}, fmt.Errorf("list %d tokens for sale: %w", amount, err)
	}

	l := model.Listing{
		ID:            id,
		Seller:        caller,
		Amount:        amount,
		PricePerToken: price,
		Active:        true,
	}
	m.mu.Lock()
	m.listings[id] = l
	m.epoch++
	m.mu.Unlock()

	logger.Info("Listing %d created by %s: %d tokens at %d", id, caller, amount, price)
	return l, nil
}

// Buy 购买挂单, 返回成交前的挂单快照
func (m *MarketplaceEscrow) Buy(ctx context.Context, caller string, id uint64) (model.Listing, error) {
	l, err := m.CheckBuy(caller, id)
	if err != nil {
		return l, err
	}
	if err := m.gateway.SubmitBuy(ctx, caller, id); err != nil {
		return l, fmt.Errorf("buy listing %d: %w", id, err)
	}

	m.consume(id)
	logger.Info("Listing %d bought by %s", id, caller)
	return l, nil
}

// Cancel 撤销挂单, 返回撤单前的挂单快照
func (m *MarketplaceEscrow) Cancel(ctx context.Context, caller string, id uint64) (model.Listing, error) {
	l, err := m.CheckCancel(caller, id)
	if err != nil {
		return l, err
	}
	if err := m.gateway.SubmitCancel(ctx, caller, id); err != nil {
		return l, fmt.Errorf("cancel listing %d: %w", id, err)
	}

	m.consume(id)
	logger.Info("Listing %d cancelled by %s", id, caller)
	return l, nil
}

// Stats 汇总挂单统计, 写入 stats
func (m *MarketplaceEscrow) Stats(stats *model.Stats) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.listings {
		stats.TotalListings++
		if l.Active {
			stats.ActiveListings++
			stats.TokensListed += l.Amount
		}
	}
}

func (m *MarketplaceEscrow) activeListing(id uint64) (model.Listing, error) {
	l, err := m.Get(id)
	if err != nil {
		return l, err
	}
	if !l.Active {
		return l, fmt.Errorf("listing %d: %w", id, model.ErrAlreadyConsumed)
	}
	return l, nil
}

// consume 将挂单标记为已消耗, 不可逆
func (m *MarketplaceEscrow) consume(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return
	}
	l.Active = false
	l.Amount = 0
	m.listings[id] = l
	m.epoch++
}

func (m *MarketplaceEscrow) filter(keep func(model.Listing) bool) []model.Listing {
	m.mu.RLock()
	result := make([]model.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		if keep(l) {
			result = append(result, l)
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
