package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blues/carbonledger/internal/access"
	"github.com/blues/carbonledger/internal/chain"
	"github.com/blues/carbonledger/internal/config"
	"github.com/blues/carbonledger/internal/ledger"
	"github.com/blues/carbonledger/internal/ledger/memledger"
	"github.com/blues/carbonledger/internal/logger"
	"github.com/blues/carbonledger/internal/logic"
	"github.com/blues/carbonledger/internal/metrics"
	"github.com/blues/carbonledger/internal/repository"
	"github.com/blues/carbonledger/internal/router"
	"github.com/blues/carbonledger/internal/task"
)

// backend 账本网关及其附属信息
type backend struct {
	gateway   ledger.Gateway
	validator string
	health    func(ctx context.Context) map[string]interface{}
	close     func()
	manager   *chain.Manager // 仅以太坊账本
}

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化账本
	b, err := newBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize ledger: %v", err)
	}
	defer b.close()

	m := metrics.New("carbonledger")
	opts := []logic.Option{
		logic.WithMetrics(m),
		logic.WithPoolSize(cfg.Limits.PoolSize),
		logic.WithRefreshTimeout(time.Duration(cfg.Task.Interval) * time.Second),
	}
	deps := router.Dependencies{Metrics: m, Health: b.health}

	// 初始化审计日志数据库
	if cfg.Database.Enabled {
		db, err := repository.Init(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize database: %v", err)
		}
		journal := repository.NewOperationJournal(db)
		opts = append(opts, logic.WithJournal(journal))
		deps.Journal = journal
	}

	// 核证人地址与调用方使用同一规范形式
	validator := ledger.NormalizeAddress(b.gateway, b.validator)
	facade, err := logic.NewFacade(b.gateway, access.NewFixedValidator(validator), opts...)
	if err != nil {
		logger.Fatal("Failed to create facade: %v", err)
	}
	defer facade.Close()
	deps.Facade = facade
	logger.Info("Validator is %s", validator)

	if err := facade.Refresh(ctx); err != nil {
		logger.Warn("Initial refresh failed: %v", err)
	}

	// 启动定时任务
	tasks, err := task.NewManager(facade, cfg)
	if err != nil {
		logger.Fatal("Failed to create task manager: %v", err)
	}
	if err := tasks.Start(); err != nil {
		logger.Fatal("Failed to start task manager: %v", err)
	}
	defer tasks.Stop()

	// 监听其他客户端的链上变更
	if b.manager != nil {
		monitor := chain.NewEventMonitor(b.manager.GetClient(), b.manager.GetContract(), facade, 15*time.Second)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(deps, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}

// newBackend 按配置创建内存账本或以太坊网关
func newBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Chain.ChainType {
	case config.ChainTypeEthereum:
		manager, err := chain.NewManager(ctx, cfg.Chain)
		if err != nil {
			return nil, err
		}

		validator := cfg.Access.Validator
		if validator == "" {
			// 未配置时使用合约记录的核证人
			if validator, err = manager.GetGateway().Validator(ctx); err != nil {
				manager.Close()
				return nil, err
			}
		}
		return &backend{
			gateway:   manager.GetGateway(),
			validator: validator,
			health:    manager.GetHealthStatus,
			close:     func() { _ = manager.Close() },
			manager:   manager,
		}, nil

	default:
		mem := cfg.Chain.Memory
		validator := cfg.Access.Validator
		l := memledger.New(mem.Admin, memledger.WithValidator(validator), memledger.WithQueryLag(mem.QueryLag))
		for _, acct := range mem.Accounts {
			l.Mint(acct.Address, acct.Tokens)
			l.Fund(acct.Address, acct.Funds)
		}
		logger.Info("Using in-memory ledger with %d seeded accounts", len(mem.Accounts))

		return &backend{
			gateway:   l,
			validator: validator,
			health: func(context.Context) map[string]interface{} {
				return map[string]interface{}{
					"chain_type":           config.ChainTypeMemory,
					"validator":            l.Validator(),
					"escrowed":             l.Escrowed(),
					"total_credits_issued": l.TotalCreditsIssued(),
				}
			},
			close: func() {},
		}, nil
	}
}
