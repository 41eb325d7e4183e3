package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/blues/carbonledger/internal/logger"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Access   AccessConfig   `mapstructure:"access"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
	Limits   LimitsConfig   `mapstructure:"limits"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 审计日志数据库, 未启用时不记录审计日志
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"` // postgres, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
}

// 账本类型
const (
	ChainTypeMemory   = "memory"
	ChainTypeEthereum = "ethereum"
)

// ChainConfig 账本配置
type ChainConfig struct {
	ChainType     string         `mapstructure:"chain_type"`    // memory, ethereum
	ChainId       int64          `mapstructure:"chain_id"`      // 链ID
	RpcUrl        string         `mapstructure:"rpc_url"`       // RPC节点URL
	PrivateKeys   []string       `mapstructure:"private_keys"`  // 开发环境的签名私钥
	Confirmations uint64         `mapstructure:"confirmations"` // 交易确认区块数
	Contract      ContractConfig `mapstructure:"contract"`      // 注册合约
	Memory        MemoryConfig   `mapstructure:"memory"`        // 内存账本
}

// ContractConfig 注册合约配置
type ContractConfig struct {
	Address  string `mapstructure:"address"`   // 合约地址
	ABIPath  string `mapstructure:"abi_path"`  // ABI文件路径, 为空时使用内置ABI
	BlockNum int64  `mapstructure:"block_num"` // 合约部署区块号
}

// MemoryConfig 内存账本配置
type MemoryConfig struct {
	Admin    string          `mapstructure:"admin"`
	QueryLag int             `mapstructure:"query_lag"`
	Accounts []AccountConfig `mapstructure:"accounts"`
}

// AccountConfig 内存账本初始账户
type AccountConfig struct {
	Address string `mapstructure:"address"`
	Tokens  uint64 `mapstructure:"tokens"`
	Funds   uint64 `mapstructure:"funds"`
}

// AccessConfig 权限配置
type AccessConfig struct {
	Validator string `mapstructure:"validator"` // 核证人地址, 区分大小写
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// LimitsConfig 限流与并发配置
type LimitsConfig struct {
	Rate     float64 `mapstructure:"rate"`      // 每个客户端每秒请求数
	Burst    int     `mapstructure:"burst"`     // 突发请求数
	PoolSize int     `mapstructure:"pool_size"` // 后台对账协程数
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "carbonledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/journal.db")
	v.SetDefault("chain.chain_type", ChainTypeMemory)
	v.SetDefault("chain.confirmations", 1)
	v.SetDefault("task.interval", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("limits.rate", 10)
	v.SetDefault("limits.burst", 20)
	v.SetDefault("limits.pool_size", 4)
}

// Load 按默认路径查找 config.yaml, 读取失败时退出
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/carbonledger")

	cfg, err := load(v)
	if err != nil {
		logger.Fatal("Unable to load config: %v", err)
	}
	return cfg
}

// LoadFile 从指定文件读取配置
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// 环境变量覆盖, 例如 CARBON_ACCESS_VALIDATOR
	v.SetEnvPrefix("carbon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 校验配置之间的约束
func (c *Config) Validate() error {
	switch c.Chain.ChainType {
	case ChainTypeMemory:
	case ChainTypeEthereum:
		if c.Chain.RpcUrl == "" {
			return errors.New("chain.rpc_url is required for ethereum")
		}
		if c.Chain.Contract.Address == "" {
			return errors.New("chain.contract.address is required for ethereum")
		}
	default:
		return fmt.Errorf("unsupported chain type: %q", c.Chain.ChainType)
	}
	if c.Database.Enabled && c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Task.Interval <= 0 {
		return fmt.Errorf("task.interval must be > 0, got %d", c.Task.Interval)
	}
	return nil
}
