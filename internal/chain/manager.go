package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/blues/carbonledger/internal/config"
	"github.com/blues/carbonledger/internal/logger"
)

// Manager 单链管理器, 持有客户端 注册合约与网关
type Manager struct {
	mu       sync.RWMutex
	client   *ethclient.Client  // 链客户端
	contract *Contract          // 注册合约
	gateway  *Gateway           // 账本网关
	config   config.ChainConfig // 存储链配置
}

// NewManager 创建单链管理器
func NewManager(ctx context.Context, cfg config.ChainConfig) (*Manager, error) {
	manager := &Manager{config: cfg}

	// 初始化客户端
	if err := manager.initClient(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	// 初始化注册合约与网关
	if err := manager.initGateway(cfg); err != nil {
		manager.client.Close()
		return nil, fmt.Errorf("failed to initialize gateway: %w", err)
	}

	return manager, nil
}

// initClient 初始化客户端
func (m *Manager) initClient(ctx context.Context, cfg config.ChainConfig) error {
	if cfg.RpcUrl == "" {
		return fmt.Errorf("no RPC URL configured")
	}

	logger.Info("Creating %s client connection (RPC: %s, id: %d)", cfg.ChainType, cfg.RpcUrl, cfg.ChainId)
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	// 测试连接
	if err := m.testClientConnection(ctx, client); err != nil {
		client.Close()
		return fmt.Errorf("client connection test failed: %w", err)
	}

	m.client = client
	logger.Info("Successfully initialized client")
	return nil
}

// testClientConnection 测试客户端连接并核对链ID
func (m *Manager) testClientConnection(ctx context.Context, client *ethclient.Client) error {
	if _, err := client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}
	if m.config.ChainId == 0 {
		return nil
	}

	chainId, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if chainId.Int64() != m.config.ChainId {
		return fmt.Errorf("chain id mismatch: configured %d, node reports %s", m.config.ChainId, chainId)
	}
	return nil
}

// initGateway 初始化注册合约与网关
func (m *Manager) initGateway(cfg config.ChainConfig) error {
	logger.Info("Initializing registry contract (address: %s)", cfg.Contract.Address)

	contract, err := NewContract(cfg.Contract, cfg)
	if err != nil {
		return err
	}

	signer, err := NewKeySigner(cfg.ChainId, cfg.PrivateKeys...)
	if err != nil {
		return err
	}
	for _, addr := range signer.Addresses() {
		logger.Info("Signing key loaded for %s", addr.Hex())
	}

	m.contract = contract
	m.gateway = NewGateway(m.client, contract, signer, cfg.Confirmations)
	logger.Info("Successfully initialized registry contract")
	return nil
}

// GetClient 获取客户端
func (m *Manager) GetClient() *ethclient.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// GetContract 获取注册合约
func (m *Manager) GetContract() *Contract {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contract
}

// GetGateway 获取账本网关
func (m *Manager) GetGateway() *Gateway {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gateway
}

// GetChainId 获取链ID
func (m *Manager) GetChainId() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ChainId
}

// GetHealthStatus 获取健康状态
func (m *Manager) GetHealthStatus(ctx context.Context) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := map[string]interface{}{
		"chain_type":    m.config.ChainType,
		"chain_id":      m.config.ChainId,
		"client_status": "connected",
	}

	// 检查客户端连接状态
	if m.client != nil {
		if head, err := GetCurrentBlockNumber(ctx, m.client); err != nil {
			health["client_status"] = "disconnected"
		} else {
			health["block_number"] = head
		}
	} else {
		health["client_status"] = "not_initialized"
	}

	if m.contract != nil {
		health["contract"] = map[string]interface{}{
			"address":   m.contract.GetAddress().Hex(),
			"block_num": m.contract.GetBlockNum(),
		}
	}

	return health
}

// Close 关闭管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		m.client.Close()
	}

	logger.Info("Chain manager closed")
	return nil
}
