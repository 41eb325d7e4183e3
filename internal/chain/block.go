package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

// HeaderReader 读取区块头
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// GetCurrentBlockNumber 获取当前最新区块号
func GetCurrentBlockNumber(ctx context.Context, reader HeaderReader) (uint64, error) {
	header, err := reader.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// WaitConfirmations 等待回执所在区块获得指定确认数, 回执所在区块本身算一次确认
func WaitConfirmations(ctx context.Context, reader HeaderReader, receipt *types.Receipt, confirmations uint64, interval time.Duration) error {
	if confirmations <= 1 || receipt.BlockNumber == nil {
		return nil
	}
	target := receipt.BlockNumber.Uint64() + confirmations - 1

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		head, err := GetCurrentBlockNumber(ctx, reader)
		if err != nil {
			return fmt.Errorf("failed to get block number: %w", err)
		}
		if head >= target {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
