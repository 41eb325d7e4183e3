package access

import "strings"

// Role 钱包身份对应的角色
type Role int

const (
	RoleParticipant Role = iota // 普通参与者
	RoleValidator               // 唯一的核证人
)

func (r Role) String() string {
	switch r {
	case RoleValidator:
		return "validator"
	default:
		return "participant"
	}
}

// Policy 将钱包地址映射为角色
type Policy interface {
	RoleOf(address string) Role
}

// PolicyFunc 允许以普通函数作为 Policy
type PolicyFunc func(address string) Role

// RoleOf 实现 Policy 接口
func (f PolicyFunc) RoleOf(address string) Role {
	return f(address)
}

// FixedValidator 固定核证人地址策略
type FixedValidator struct {
	validator string
}

// NewFixedValidator 创建固定核证人策略, 地址比较区分大小写
func NewFixedValidator(address string) *FixedValidator {
	return &FixedValidator{validator: Normalize(address)}
}

// RoleOf 实现 Policy 接口
func (p *FixedValidator) RoleOf(address string) Role {
	addr := Normalize(address)
	if addr != "" && addr == p.validator {
		return RoleValidator
	}
	return RoleParticipant
}

// Validator 返回核证人地址
func (p *FixedValidator) Validator() string {
	return p.validator
}

// IsValidator 判断地址是否为核证人
func IsValidator(p Policy, address string) bool {
	return p.RoleOf(address) == RoleValidator
}

// Normalize 去除地址两端空白, 不改变大小写
func Normalize(address string) string {
	return strings.TrimSpace(address)
}
