package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/blues/carbonledger/internal/model"
)

// OperationFilter 审计日志查询条件
type OperationFilter struct {
	Operation string
	Caller    string
	TargetId  *uint64
	Result    model.OperationResult
}

// OperationJournal 变更操作审计日志
type OperationJournal struct {
	db *gorm.DB
}

// NewOperationJournal 创建审计日志
func NewOperationJournal(db *gorm.DB) *OperationJournal {
	return &OperationJournal{db: db}
}

// Record 写入一条操作记录
func (j *OperationJournal) Record(ctx context.Context, op *model.OperationModel) error {
	if err := j.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("failed to record operation %s: %w", op.Operation, err)
	}
	return nil
}

// List 分页查询操作记录, 按时间倒序
func (j *OperationJournal) List(ctx context.Context, filter OperationFilter, page, pageSize int) ([]model.OperationModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)

	scoped := func() *gorm.DB {
		query := j.db.WithContext(ctx).Model(&model.OperationModel{})
		if filter.Operation != "" {
			query = query.Where("operation = ?", filter.Operation)
		}
		if filter.Caller != "" {
			query = query.Where("caller = ?", filter.Caller)
		}
		if filter.TargetId != nil {
			query = query.Where("target_id = ?", *filter.TargetId)
		}
		if filter.Result != "" {
			query = query.Where("result = ?", filter.Result)
		}
		return query
	}

	// 获取总数
	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 获取数据
	var records []model.OperationModel
	offset := (page - 1) * pageSize
	if err := scoped().Offset(offset).
		Limit(pageSize).
		Order("created_at DESC, id DESC").
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// NormalizePage 规范分页参数, 非法的页大小回退为20
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
