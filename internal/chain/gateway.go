package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/blues/carbonledger/internal/ledger"
	"github.com/blues/carbonledger/internal/logger"
	"github.com/blues/carbonledger/internal/model"
)

// Backend 合约调用与回执查询, *ethclient.Client 实现了该接口
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Gateway 基于 EVM 合约的账本网关
type Gateway struct {
	backend       Backend
	contract      *Contract
	bound         *bind.BoundContract
	signer        Signer
	confirmations uint64
	pollInterval  time.Duration
	queryLimit    int
}

var _ ledger.Gateway = (*Gateway)(nil)

// NewGateway 创建账本网关
func NewGateway(backend Backend, contract *Contract, signer Signer, confirmations uint64) *Gateway {
	return &Gateway{
		backend:       backend,
		contract:      contract,
		bound:         bind.NewBoundContract(contract.GetAddress(), contract.GetABI(), backend, backend, backend),
		signer:        signer,
		confirmations: confirmations,
		pollInterval:  2 * time.Second,
		queryLimit:    8,
	}
}

// SubmitProjectCreation 实现 ledger.Gateway 接口
func (g *Gateway) SubmitProjectCreation(ctx context.Context, from string, meta model.ProjectMetadata) (uint64, error) {
	receipt, err := g.transact(ctx, ledger.OpSubmitProjectCreation, from, nil,
		methodSubmitProject, meta.Name, meta.Location, meta.Ecosystem, meta.CID)
	if err != nil {
		return 0, err
	}
	id, err := g.contract.FindEventId(receipt, eventProjectSubmitted)
	if err != nil {
		return 0, ledger.Wrap(ledger.OpSubmitProjectCreation, err)
	}
	return id, nil
}

// SubmitApproval 实现 ledger.Gateway 接口
func (g *Gateway) SubmitApproval(ctx context.Context, from string, id, credits uint64) error {
	_, err := g.transact(ctx, ledger.OpSubmitApproval, from, nil,
		methodApproveProject, new(big.Int).SetUint64(id), new(big.Int).SetUint64(credits))
	return err
}

// SubmitRejection 实现 ledger.Gateway 接口
func (g *Gateway) SubmitRejection(ctx context.Context, from string, id uint64) error {
	_, err := g.transact(ctx, ledger.OpSubmitRejection, from, nil,
		methodRejectProject, new(big.Int).SetUint64(id))
	return err
}

// SubmitIssuance 实现 ledger.Gateway 接口
func (g *Gateway) SubmitIssuance(ctx context.Context, from string, id uint64) error {
	_, err := g.transact(ctx, ledger.OpSubmitIssuance, from, nil,
		methodIssueCredits, new(big.Int).SetUint64(id))
	return err
}

// SubmitListingCreation 实现 ledger.Gateway 接口
func (g *Gateway) SubmitListingCreation(ctx context.Context, from string, amount, price uint64) (uint64, error) {
	receipt, err := g.transact(ctx, ledger.OpSubmitListingCreation, from, nil,
		methodListForSale, new(big.Int).SetUint64(amount), new(big.Int).SetUint64(price))
	if err != nil {
		return 0, err
	}
	id, err := g.contract.FindEventId(receipt, eventListingCreated)
	if err != nil {
		return 0, ledger.Wrap(ledger.OpSubmitListingCreation, err)
	}
	return id, nil
}

// SubmitBuy 实现 ledger.Gateway 接口, 按链上挂单计算支付金额
func (g *Gateway) SubmitBuy(ctx context.Context, from string, id uint64) error {
	listing, err := g.getListing(ctx, id)
	if err != nil {
		return ledger.Wrap(ledger.OpSubmitBuy, err)
	}
	total, ok := listing.TotalCost()
	if !ok {
		return ledger.Rejected(ledger.OpSubmitBuy, "total cost overflows")
	}

	_, err = g.transact(ctx, ledger.OpSubmitBuy, from, new(big.Int).SetUint64(total),
		methodBuyListing, new(big.Int).SetUint64(id))
	return err
}

// SubmitCancel 实现 ledger.Gateway 接口
func (g *Gateway) SubmitCancel(ctx context.Context, from string, id uint64) error {
	_, err := g.transact(ctx, ledger.OpSubmitCancel, from, nil,
		methodCancelListing, new(big.Int).SetUint64(id))
	return err
}

// QueryProjects 实现 ledger.Gateway 接口
func (g *Gateway) QueryProjects(ctx context.Context) ([]model.Project, error) {
	count, err := g.count(ctx, methodProjectCount)
	if err != nil {
		return nil, ledger.Wrap(ledger.OpQueryProjects, err)
	}

	projects := make([]model.Project, count)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.queryLimit)
	for i := uint64(0); i < count; i++ {
		i := i
		eg.Go(func() error {
			out, err := g.call(ctx, methodGetProject, new(big.Int).SetUint64(i))
			if err != nil {
				return err
			}
			projects[i], err = decodeProject(i, out)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, ledger.Wrap(ledger.OpQueryProjects, err)
	}
	return projects, nil
}

// QueryListings 实现 ledger.Gateway 接口
func (g *Gateway) QueryListings(ctx context.Context) ([]model.Listing, error) {
	count, err := g.count(ctx, methodListingCount)
	if err != nil {
		return nil, ledger.Wrap(ledger.OpQueryListings, err)
	}

	listings := make([]model.Listing, count)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.queryLimit)
	for i := uint64(0); i < count; i++ {
		i := i
		eg.Go(func() error {
			var err error
			listings[i], err = g.getListing(ctx, i)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, ledger.Wrap(ledger.OpQueryListings, err)
	}
	return listings, nil
}

// QueryBalance 实现 ledger.Gateway 接口
func (g *Gateway) QueryBalance(ctx context.Context, address string) (uint64, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return 0, ledger.Wrap(ledger.OpQueryBalance, err)
	}
	out, err := g.call(ctx, methodBalanceOf, addr)
	if err != nil {
		return 0, ledger.Wrap(ledger.OpQueryBalance, err)
	}
	bal, err := toUint64(out[0])
	if err != nil {
		return 0, ledger.Wrap(ledger.OpQueryBalance, err)
	}
	return bal, nil
}

// TotalCreditsIssued 查询累计发放的碳信用
func (g *Gateway) TotalCreditsIssued(ctx context.Context) (uint64, error) {
	if !hasMethod(g.contract.GetABI(), methodTotalCreditsIssued) {
		return 0, fmt.Errorf("contract does not expose %s", methodTotalCreditsIssued)
	}
	return g.count(ctx, methodTotalCreditsIssued)
}

// Validator 查询合约记录的核证人地址
func (g *Gateway) Validator(ctx context.Context) (string, error) {
	if !hasMethod(g.contract.GetABI(), methodValidator) {
		return "", fmt.Errorf("contract does not expose %s", methodValidator)
	}
	out, err := g.call(ctx, methodValidator)
	if err != nil {
		return "", err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("unexpected validator type %T", out[0])
	}
	return addr.Hex(), nil
}

// transact 发送交易并等待回执, 交易回滚视为账本拒绝
func (g *Gateway) transact(ctx context.Context, op, from string, value *big.Int, method string, params ...interface{}) (*types.Receipt, error) {
	addr, err := parseAddress(from)
	if err != nil {
		return nil, ledger.Wrap(op, err)
	}
	opts, err := g.signer.TransactOpts(ctx, addr)
	if err != nil {
		return nil, ledger.Wrap(op, err)
	}
	opts.Value = value

	tx, err := g.bound.Transact(opts, method, params...)
	if err != nil {
		return nil, ledger.Wrap(op, err)
	}
	logger.Info("Sent %s transaction %s from %s", method, tx.Hash().Hex(), addr.Hex())

	receipt, err := bind.WaitMined(ctx, g.backend, tx)
	if err != nil {
		return nil, ledger.Wrap(op, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ledger.Rejected(op, fmt.Sprintf("transaction %s reverted", tx.Hash().Hex()))
	}
	if err := WaitConfirmations(ctx, g.backend, receipt, g.confirmations, g.pollInterval); err != nil {
		return nil, ledger.Wrap(op, err)
	}

	logger.Info("Transaction %s confirmed in block %d", tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	return receipt, nil
}

func (g *Gateway) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := g.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return out, nil
}

func (g *Gateway) count(ctx context.Context, method string) (uint64, error) {
	out, err := g.call(ctx, method)
	if err != nil {
		return 0, err
	}
	return toUint64(out[0])
}

func (g *Gateway) getListing(ctx context.Context, id uint64) (model.Listing, error) {
	out, err := g.call(ctx, methodGetListing, new(big.Int).SetUint64(id))
	if err != nil {
		return model.Listing{}, err
	}
	return decodeListing(id, out)
}

// decodeProject 解析 getProject 的返回值, 状态码0表示未初始化的存储槽
func decodeProject(id uint64, out []interface{}) (model.Project, error) {
	if len(out) != 7 {
		return model.Project{}, fmt.Errorf("getProject returned %d values", len(out))
	}

	name, _ := out[0].(string)
	location, _ := out[1].(string)
	ecosystem, _ := out[2].(string)
	submitter, ok := out[3].(common.Address)
	if !ok {
		return model.Project{}, fmt.Errorf("unexpected submitter type %T", out[3])
	}
	cid, _ := out[4].(string)
	code, ok := out[5].(uint8)
	if !ok {
		return model.Project{}, fmt.Errorf("unexpected status type %T", out[5])
	}
	credits, err := toUint64(out[6])
	if err != nil {
		return model.Project{}, err
	}

	p := model.Project{
		ID:        id,
		Name:      name,
		Location:  location,
		Ecosystem: ecosystem,
		Submitter: submitter.Hex(),
		CID:       cid,
		Credits:   credits,
	}
	if code != model.StatusCodeNone {
		if p.Status, err = model.StatusFromCode(code); err != nil {
			return model.Project{}, fmt.Errorf("project %d: %w", id, err)
		}
	}
	return p, nil
}

// decodeListing 解析 getListing 的返回值
func decodeListing(id uint64, out []interface{}) (model.Listing, error) {
	if len(out) != 4 {
		return model.Listing{}, fmt.Errorf("getListing returned %d values", len(out))
	}

	seller, ok := out[0].(common.Address)
	if !ok {
		return model.Listing{}, fmt.Errorf("unexpected seller type %T", out[0])
	}
	amount, err := toUint64(out[1])
	if err != nil {
		return model.Listing{}, err
	}
	price, err := toUint64(out[2])
	if err != nil {
		return model.Listing{}, err
	}
	active, _ := out[3].(bool)

	return model.Listing{
		ID:            id,
		Seller:        seller.Hex(),
		Amount:        amount,
		PricePerToken: price,
		Active:        active,
	}, nil
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil || n.Sign() < 0 || !n.IsUint64() {
			return 0, fmt.Errorf("value %v does not fit uint64", v)
		}
		return n.Uint64(), nil
	case uint64:
		return n, nil
	case uint8:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

// NormalizeAddress 以太坊地址不区分大小写, 合法地址统一为 EIP-55 校验和形式
func (g *Gateway) NormalizeAddress(address string) string {
	return NormalizeAddress(address)
}

// NormalizeAddress 合法的十六进制地址返回校验和形式, 其他输入原样返回
func NormalizeAddress(address string) string {
	if !common.IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q: %w", s, model.ErrInvalidArgument)
	}
	return common.HexToAddress(s), nil
}
