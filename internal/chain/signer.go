package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer 为调用方地址提供交易签名, 钱包托管由实现方负责
type Signer interface {
	TransactOpts(ctx context.Context, from common.Address) (*bind.TransactOpts, error)
}

// KeySigner 基于本地私钥的签名器, 仅用于开发环境
type KeySigner struct {
	chainId *big.Int
	keys    map[common.Address]*ecdsa.PrivateKey
}

// NewKeySigner 从十六进制私钥创建签名器
func NewKeySigner(chainId int64, hexKeys ...string) (*KeySigner, error) {
	s := &KeySigner{
		chainId: big.NewInt(chainId),
		keys:    make(map[common.Address]*ecdsa.PrivateKey, len(hexKeys)),
	}
	for i, hexKey := range hexKeys {
		key, err := crypto.HexToECDSA(normalizeHex(hexKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key #%d: %w", i, err)
		}
		s.keys[crypto.PubkeyToAddress(key.PublicKey)] = key
	}
	return s, nil
}

// Addresses 返回可签名的地址
func (s *KeySigner) Addresses() []common.Address {
	addrs := make([]common.Address, 0, len(s.keys))
	for addr := range s.keys {
		addrs = append(addrs, addr)
	}
	return addrs
}

// TransactOpts 实现 Signer 接口
func (s *KeySigner) TransactOpts(ctx context.Context, from common.Address) (*bind.TransactOpts, error) {
	key, ok := s.keys[from]
	if !ok {
		return nil, fmt.Errorf("no signing key for %s", from.Hex())
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, s.chainId)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}
