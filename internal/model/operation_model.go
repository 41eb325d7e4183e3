package model

import (
	"time"
)

// OperationResult 操作结果
type OperationResult string

const (
	OperationResultSuccess OperationResult = "success" // 账本已确认
	OperationResultFailed  OperationResult = "failed"  // 本地校验或账本拒绝
)

// 操作名称
const (
	OpSubmitProject = "submit_project"
	OpApprove       = "approve_project"
	OpReject        = "reject_project"
	OpIssue         = "issue_credits"
	OpListForSale   = "list_for_sale"
	OpBuy           = "buy_listing"
	OpCancel        = "cancel_listing"
)

// OperationModel 变更操作审计记录
type OperationModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	Operation string          `json:"operation" gorm:"not null;index"`
	Caller    string          `json:"caller" gorm:"not null"`
	TargetId  uint64          `json:"target_id"`
	Amount    uint64          `json:"amount"`
	Price     uint64          `json:"price"`
	Result    OperationResult `json:"result" gorm:"not null"`
	Error     string          `json:"error" gorm:"type:text"`
}

// TableName 自定义表名
func (OperationModel) TableName() string {
	return "operation"
}
