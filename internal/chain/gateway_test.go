package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blues/carbonledger/internal/config"
	"github.com/blues/carbonledger/internal/ledger"
	"github.com/blues/carbonledger/internal/model"
)

const (
	testKey      = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	contractAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

type projectRow struct {
	name, location, ecosystem, cid string
	submitter                      common.Address
	status                         uint8
	credits                        int64
}

type listingRow struct {
	seller        common.Address
	amount, price int64
	active        bool
}

// fakeBackend 按ABI解码调用并返回预置状态, 交易回执由 receipt 构造
type fakeBackend struct {
	abi abi.ABI

	mu       sync.Mutex
	projects []projectRow
	listings []listingRow
	balances map[common.Address]int64
	sent     []*types.Transaction
	head     uint64
	logs     []types.Log
	filters  []ethereum.FilterQuery
	receipt  func(tx *types.Transaction) *types.Receipt
}

func newFakeBackend(t *testing.T) *fakeBackend {
	parsed, err := ParseABI([]byte(registryABI))
	require.NoError(t, err)
	return &fakeBackend{
		abi:      parsed,
		balances: make(map[common.Address]int64),
		head:     100,
	}
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case methodProjectCount:
		return method.Outputs.Pack(big.NewInt(int64(len(f.projects))))
	case methodListingCount:
		return method.Outputs.Pack(big.NewInt(int64(len(f.listings))))
	case methodGetProject:
		p := f.projects[args[0].(*big.Int).Uint64()]
		return method.Outputs.Pack(p.name, p.location, p.ecosystem, p.submitter, p.cid, p.status, big.NewInt(p.credits))
	case methodGetListing:
		l := f.listings[args[0].(*big.Int).Uint64()]
		return method.Outputs.Pack(l.seller, big.NewInt(l.amount), big.NewInt(l.price), l.active)
	case methodBalanceOf:
		return method.Outputs.Pack(big.NewInt(f.balances[args[0].(common.Address)]))
	case methodValidator:
		return method.Outputs.Pack(common.HexToAddress("0x00000000000000000000000000000000000000aa"))
	default:
		return nil, errors.New("execution reverted")
	}
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(f.head), BaseFee: big.NewInt(1)}, nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, q)

	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= q.FromBlock.Uint64() && l.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not supported")
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return f.receipt(tx), nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) lastSent() *types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func eventReceipt(t *testing.T, event string, id int64, who common.Address) func(tx *types.Transaction) *types.Receipt {
	parsed, err := ParseABI([]byte(registryABI))
	require.NoError(t, err)
	return func(tx *types.Transaction) *types.Receipt {
		return &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      tx.Hash(),
			BlockNumber: big.NewInt(100),
			Logs: []*types.Log{{
				Address: common.HexToAddress(contractAddr),
				Topics: []common.Hash{
					parsed.Events[event].ID,
					common.BigToHash(big.NewInt(id)),
					common.BytesToHash(who.Bytes()),
				},
			}},
		}
	}
}

func newTestGateway(t *testing.T, backend *fakeBackend) (*Gateway, common.Address) {
	t.Helper()
	contract, err := NewContract(config.ContractConfig{Address: contractAddr}, config.ChainConfig{ChainId: 1337})
	require.NoError(t, err)
	signer, err := NewKeySigner(1337, testKey)
	require.NoError(t, err)

	key, err := crypto.HexToECDSA(strings.TrimPrefix(testKey, "0x"))
	require.NoError(t, err)
	return NewGateway(backend, contract, signer, 1), crypto.PubkeyToAddress(key.PublicKey)
}

func TestGateway_QueryProjects(t *testing.T) {
	backend := newFakeBackend(t)
	dev := common.HexToAddress("0x00000000000000000000000000000000000000d1")
	backend.projects = []projectRow{
		{name: "Mangrove", location: "Sundarbans", ecosystem: "mangrove", cid: "bafy1", submitter: dev, status: model.StatusCodeVerified, credits: 1200},
		{status: model.StatusCodeNone},
		{name: "Seagrass", cid: "bafy3", submitter: dev, status: model.StatusCodeRejected},
	}
	g, _ := newTestGateway(t, backend)

	projects, err := g.QueryProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 3)

	assert.Equal(t, model.ProjectStatusVerified, projects[0].Status)
	assert.Equal(t, uint64(1200), projects[0].Credits)
	assert.Equal(t, dev.Hex(), projects[0].Submitter)
	assert.Equal(t, "Sundarbans", projects[0].Location)
	assert.Equal(t, model.StatusCodeNone, projects[1].Status.Code(), "uninitialised slot")
	assert.Equal(t, model.ProjectStatusRejected, projects[2].Status)
	assert.Equal(t, uint64(2), projects[2].ID)
}

func TestGateway_QueryListingsAndBalance(t *testing.T) {
	backend := newFakeBackend(t)
	seller := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	backend.listings = []listingRow{
		{seller: seller, amount: 50, price: 200, active: true},
		{seller: seller, amount: 0, price: 5, active: false},
	}
	backend.balances[seller] = 150
	g, _ := newTestGateway(t, backend)
	ctx := context.Background()

	listings, err := g.QueryListings(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, model.Listing{ID: 0, Seller: seller.Hex(), Amount: 50, PricePerToken: 200, Active: true}, listings[0])
	assert.False(t, listings[1].Active)

	bal, err := g.QueryBalance(ctx, seller.Hex())
	require.NoError(t, err)
	assert.Equal(t, uint64(150), bal)

	_, err = g.QueryBalance(ctx, "not-an-address")
	require.ErrorIs(t, err, model.ErrInvalidArgument)
	require.True(t, ledger.IsGatewayError(err))

	validator, err := g.Validator(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000aa").Hex(), validator)
}

func TestGateway_SubmitProjectCreationReadsEventId(t *testing.T) {
	backend := newFakeBackend(t)
	g, from := newTestGateway(t, backend)
	backend.receipt = eventReceipt(t, eventProjectSubmitted, 7, from)

	id, err := g.SubmitProjectCreation(context.Background(), from.Hex(), model.ProjectMetadata{Name: "Kelp", CID: "bafy"})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	tx := backend.lastSent()
	assert.Equal(t, common.HexToAddress(contractAddr), *tx.To())
	parsed := g.contract.GetABI()
	method, err := parsed.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, methodSubmitProject, method.Name)
}

func TestGateway_SubmitBuyPaysTotalCost(t *testing.T) {
	backend := newFakeBackend(t)
	g, from := newTestGateway(t, backend)
	backend.listings = []listingRow{{seller: common.HexToAddress("0x01"), amount: 50, price: 200, active: true}}
	backend.receipt = eventReceipt(t, eventListingCreated, 0, from)

	require.NoError(t, g.SubmitBuy(context.Background(), from.Hex(), 0))
	assert.Equal(t, big.NewInt(10_000), backend.lastSent().Value())
}

func TestGateway_RevertedReceiptIsRejection(t *testing.T) {
	backend := newFakeBackend(t)
	g, from := newTestGateway(t, backend)
	backend.receipt = func(tx *types.Transaction) *types.Receipt {
		return &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: tx.Hash(), BlockNumber: big.NewInt(100)}
	}

	err := g.SubmitApproval(context.Background(), from.Hex(), 1, 10)
	require.ErrorIs(t, err, ledger.ErrRejected)

	var gwErr *ledger.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, ledger.OpSubmitApproval, gwErr.Op)
}

func TestGateway_UnknownSigner(t *testing.T) {
	backend := newFakeBackend(t)
	g, _ := newTestGateway(t, backend)

	err := g.SubmitCancel(context.Background(), "0x00000000000000000000000000000000000000b2", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no signing key")
	assert.Empty(t, backend.sent)
}

func TestWaitConfirmations(t *testing.T) {
	backend := newFakeBackend(t)
	receipt := &types.Receipt{BlockNumber: big.NewInt(100)}

	require.NoError(t, WaitConfirmations(context.Background(), backend, receipt, 1, time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		backend.mu.Lock()
		backend.head = 102
		backend.mu.Unlock()
	}()
	require.NoError(t, WaitConfirmations(context.Background(), backend, receipt, 3, time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, WaitConfirmations(ctx, backend, receipt, 50, time.Millisecond), context.DeadlineExceeded)
}
