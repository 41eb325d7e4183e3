package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blues/carbonledger/internal/model"
)

// Gateway 账本节点与注册合约的请求/响应边界
//
// Submit* 调用阻塞直到账本确认或拒绝, 不保证幂等, 调用方不得重复提交.
// Query* 调用可能落后于链上最新状态.
type Gateway interface {
	SubmitProjectCreation(ctx context.Context, from string, meta model.ProjectMetadata) (uint64, error)
	SubmitApproval(ctx context.Context, from string, id, credits uint64) error
	SubmitRejection(ctx context.Context, from string, id uint64) error
	SubmitIssuance(ctx context.Context, from string, id uint64) error
	SubmitListingCreation(ctx context.Context, from string, amount, price uint64) (uint64, error)
	SubmitBuy(ctx context.Context, from string, id uint64) error
	SubmitCancel(ctx context.Context, from string, id uint64) error

	QueryProjects(ctx context.Context) ([]model.Project, error)
	QueryListings(ctx context.Context) ([]model.Listing, error)
	QueryBalance(ctx context.Context, address string) (uint64, error)
}

// AddressNormalizer 由地址编码不区分大小写的账本实现, 返回地址的规范形式
type AddressNormalizer interface {
	NormalizeAddress(address string) string
}

// NormalizeAddress 去除两端空白并按账本的地址编码规范化
func NormalizeAddress(g Gateway, address string) string {
	address = strings.TrimSpace(address)
	if n, ok := g.(AddressNormalizer); ok && address != "" {
		return n.NormalizeAddress(address)
	}
	return address
}

// 网关操作名称, 用于 GatewayError.Op
const (
	OpSubmitProjectCreation = "submitProjectCreation"
	OpSubmitApproval        = "submitApproval"
	OpSubmitRejection       = "submitRejection"
	OpSubmitIssuance        = "submitIssuance"
	OpSubmitListingCreation = "submitListingCreation"
	OpSubmitBuy             = "submitBuy"
	OpSubmitCancel          = "submitCancel"
	OpQueryProjects         = "queryProjects"
	OpQueryListings         = "queryListings"
	OpQueryBalance          = "queryBalance"
)

// ErrRejected 账本拒绝了交易(回滚或断言失败)
var ErrRejected = errors.New("rejected by ledger")

// GatewayError 包装账本侧报告的任何失败: 网络错误, 拒绝, 超时
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Wrap 将错误包装为 GatewayError, 已经是 GatewayError 的保持不变
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	return &GatewayError{Op: op, Err: err}
}

// Rejected 构造账本拒绝错误
func Rejected(op, reason string) error {
	return &GatewayError{Op: op, Err: fmt.Errorf("%w: %s", ErrRejected, reason)}
}

// IsGatewayError 判断错误是否来自账本
func IsGatewayError(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}
