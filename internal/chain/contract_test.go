package chain

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blues/carbonledger/internal/config"
	"github.com/blues/carbonledger/internal/model"
)

func TestParseABI(t *testing.T) {
	raw, err := ParseABI([]byte(registryABI))
	require.NoError(t, err)
	assert.Contains(t, raw.Methods, methodSubmitProject)

	compiled, err := ParseABI([]byte(`{"contractName":"CarbonRegistry","abi":` + registryABI + `}`))
	require.NoError(t, err)
	assert.Equal(t, len(raw.Methods), len(compiled.Methods))
	assert.Equal(t, raw.Events[eventListingCreated].ID, compiled.Events[eventListingCreated].ID)

	_, err = ParseABI([]byte(`not json`))
	require.Error(t, err)
}

func TestNewContract(t *testing.T) {
	chainCfg := config.ChainConfig{ChainId: 31337}

	c, err := NewContract(config.ContractConfig{Address: contractAddr, BlockNum: 12}, chainCfg)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(contractAddr), c.GetAddress())
	assert.Equal(t, int64(12), c.GetBlockNum())
	assert.Equal(t, int64(31337), c.GetChainId())

	_, err = NewContract(config.ContractConfig{Address: "0x1234"}, chainCfg)
	require.ErrorContains(t, err, "invalid contract address")

	partial := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, os.WriteFile(partial, []byte(`[{"type":"function","name":"projectCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`), 0o644))
	_, err = NewContract(config.ContractConfig{Address: contractAddr, ABIPath: partial}, chainCfg)
	require.ErrorContains(t, err, "ABI is missing method")

	_, err = NewContract(config.ContractConfig{Address: contractAddr, ABIPath: filepath.Join(t.TempDir(), "absent.json")}, chainCfg)
	require.ErrorContains(t, err, "failed to load ABI")
}

func TestContract_FindEventId(t *testing.T) {
	c, err := NewContract(config.ContractConfig{Address: contractAddr}, config.ChainConfig{})
	require.NoError(t, err)
	created := c.GetABI().Events[eventListingCreated].ID

	receipt := &types.Receipt{Logs: []*types.Log{
		// 其他合约发出的同名事件
		{Address: common.HexToAddress("0x01"), Topics: []common.Hash{created, common.BigToHash(big.NewInt(99))}},
		{Address: c.GetAddress(), Topics: []common.Hash{created, common.BigToHash(big.NewInt(4))}},
	}}

	id, err := c.FindEventId(receipt, eventListingCreated)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), id)
	assert.Equal(t, eventListingCreated, c.EventName(*receipt.Logs[1]))
	assert.Empty(t, c.EventName(types.Log{}))

	_, err = c.FindEventId(receipt, eventProjectSubmitted)
	require.ErrorContains(t, err, "no ProjectSubmitted event")

	_, err = c.FindEventId(receipt, "Unknown")
	require.ErrorContains(t, err, "not in ABI")
}

func TestDecodeProject(t *testing.T) {
	submitter := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	p, err := decodeProject(3, []interface{}{"Peat", "Kalimantan", "peatland", submitter, "bafy", model.StatusCodeIssued, big.NewInt(500)})
	require.NoError(t, err)
	assert.Equal(t, model.Project{
		ID: 3, Name: "Peat", Location: "Kalimantan", Ecosystem: "peatland",
		Submitter: submitter.Hex(), CID: "bafy", Status: model.ProjectStatusIssued, Credits: 500,
	}, p)

	empty, err := decodeProject(4, []interface{}{"", "", "", common.Address{}, "", model.StatusCodeNone, big.NewInt(0)})
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatus(""), empty.Status)

	_, err = decodeProject(5, []interface{}{"", "", "", submitter, "", uint8(9), big.NewInt(0)})
	require.ErrorContains(t, err, "unknown project status code")

	_, err = decodeProject(6, []interface{}{"only one"})
	require.Error(t, err)
}

func TestDecodeListing(t *testing.T) {
	seller := common.HexToAddress("0x00000000000000000000000000000000000000d2")

	l, err := decodeListing(1, []interface{}{seller, big.NewInt(50), big.NewInt(200), true})
	require.NoError(t, err)
	assert.Equal(t, model.Listing{ID: 1, Seller: seller.Hex(), Amount: 50, PricePerToken: 200, Active: true}, l)

	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	_, err = decodeListing(1, []interface{}{seller, huge, big.NewInt(1), true})
	require.ErrorContains(t, err, "does not fit uint64")
}

func TestToUint64(t *testing.T) {
	v, err := toUint64(uint8(7))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	_, err = toUint64(big.NewInt(-1))
	require.Error(t, err)

	_, err = toUint64("12")
	require.ErrorContains(t, err, "unexpected numeric type")
}

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(contractAddr), addr)

	_, err = parseAddress("0xValidator")
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestKeySigner(t *testing.T) {
	s, err := NewKeySigner(1337, testKey)
	require.NoError(t, err)
	require.Len(t, s.Addresses(), 1)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), s.Addresses()[0])

	opts, err := s.TransactOpts(context.Background(), s.Addresses()[0])
	require.NoError(t, err)
	assert.Equal(t, s.Addresses()[0], opts.From)

	_, err = s.TransactOpts(context.Background(), common.HexToAddress("0x01"))
	require.ErrorContains(t, err, "no signing key")

	_, err = NewKeySigner(1337, "zz")
	require.ErrorContains(t, err, "failed to parse private key #0")
}

func TestNormalizeAddress(t *testing.T) {
	checksummed := common.HexToAddress(contractAddr).Hex()
	assert.Equal(t, checksummed, NormalizeAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"))
	assert.Equal(t, checksummed, NormalizeAddress(contractAddr))
	assert.Equal(t, "0xValidator", NormalizeAddress("0xValidator"))

	var g Gateway
	assert.Equal(t, checksummed, g.NormalizeAddress("0X5FBDB2315678AFECB367F032D93F642F64180AA3"))
}
