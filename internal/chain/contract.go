package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/blues/carbonledger/internal/config"
	"github.com/blues/carbonledger/internal/logger"
)

// 注册合约必须提供的方法
var requiredMethods = []string{
	methodSubmitProject, methodApproveProject, methodRejectProject, methodIssueCredits,
	methodListForSale, methodBuyListing, methodCancelListing,
	methodProjectCount, methodGetProject, methodListingCount, methodGetListing, methodBalanceOf,
}

// Contract 注册合约工具类
type Contract struct {
	address  common.Address // 合约地址
	abi      abi.ABI        // 合约ABI
	blockNum int64          // 合约部署的区块号
	chainId  int64          // 链ID
}

// NewContract 创建合约实例, 未配置ABI文件时使用内置ABI
func NewContract(contractCfg config.ContractConfig, chainCfg config.ChainConfig) (*Contract, error) {
	if !common.IsHexAddress(contractCfg.Address) {
		return nil, fmt.Errorf("invalid contract address: %q", contractCfg.Address)
	}

	abiData := []byte(registryABI)
	if contractCfg.ABIPath != "" {
		data, err := os.ReadFile(contractCfg.ABIPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load ABI from %s: %w", contractCfg.ABIPath, err)
		}
		abiData = data
	}

	parsedABI, err := ParseABI(abiData)
	if err != nil {
		return nil, err
	}
	for _, name := range requiredMethods {
		if _, ok := parsedABI.Methods[name]; !ok {
			return nil, fmt.Errorf("ABI is missing method %s", name)
		}
	}

	return &Contract{
		address:  common.HexToAddress(contractCfg.Address),
		abi:      parsedABI,
		blockNum: contractCfg.BlockNum,
		chainId:  chainCfg.ChainId,
	}, nil
}

// ParseABI 解析ABI, 支持完整的编译输出文件或ABI数组
func ParseABI(data []byte) (abi.ABI, error) {
	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}

	// 首先尝试解析为完整编译输出
	if err := json.Unmarshal(data, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		parsed, err := abi.JSON(bytes.NewReader(compiledOutput.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from compiled output: %w", err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// GetAddress 获取合约地址
func (c *Contract) GetAddress() common.Address {
	return c.address
}

// GetABI 获取合约ABI
func (c *Contract) GetABI() abi.ABI {
	return c.abi
}

// GetBlockNum 获取合约部署区块号
func (c *Contract) GetBlockNum() int64 {
	return c.blockNum
}

// GetChainId 获取链ID
func (c *Contract) GetChainId() int64 {
	return c.chainId
}

// FindEventId 在回执日志中查找事件的第一个索引参数, 即新建的项目或挂单ID
func (c *Contract) FindEventId(receipt *types.Receipt, eventName string) (uint64, error) {
	event, ok := c.abi.Events[eventName]
	if !ok {
		return 0, fmt.Errorf("event %s not in ABI", eventName)
	}

	for _, log := range receipt.Logs {
		if log.Address != c.address || len(log.Topics) < 2 || log.Topics[0] != event.ID {
			continue
		}
		id := new(big.Int).SetBytes(log.Topics[1].Bytes())
		if !id.IsUint64() {
			return 0, fmt.Errorf("%s id %s overflows uint64", eventName, id)
		}
		return id.Uint64(), nil
	}

	logger.Warn("No %s event in receipt %s", eventName, receipt.TxHash.Hex())
	return 0, fmt.Errorf("no %s event in transaction %s", eventName, receipt.TxHash.Hex())
}

// EventName 根据日志签名返回事件名称
func (c *Contract) EventName(log types.Log) string {
	if len(log.Topics) == 0 {
		return ""
	}
	for name, event := range c.abi.Events {
		if event.ID == log.Topics[0] {
			return name
		}
	}
	return ""
}

func hasMethod(a abi.ABI, name string) bool {
	_, ok := a.Methods[name]
	return ok
}

func normalizeHex(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "0x")
}
