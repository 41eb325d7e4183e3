package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blues/carbonledger/internal/model"
	"github.com/blues/carbonledger/internal/repository"
)

// OperationLister 审计日志查询
type OperationLister interface {
	List(ctx context.Context, filter repository.OperationFilter, page, pageSize int) ([]model.OperationModel, int64, error)
}

// OperationHandler 审计日志处理器
type OperationHandler struct {
	journal OperationLister
}

// NewOperationHandler 创建审计日志处理器, journal 为 nil 表示未启用数据库
func NewOperationHandler(journal OperationLister) *OperationHandler {
	return &OperationHandler{journal: journal}
}

// GetOperations 分页查询审计日志
func (h *OperationHandler) GetOperations(c *gin.Context) {
	if h.journal == nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "operation journal is disabled")
		return
	}

	filter := repository.OperationFilter{
		Operation: c.Query("operation"),
		Caller:    c.Query("caller"),
		Result:    model.OperationResult(c.Query("result")),
	}
	if target := c.Query("target_id"); target != "" {
		id, err := strconv.ParseUint(target, 10, 64)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "invalid target_id")
			return
		}
		filter.TargetId = &id
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = repository.NormalizePage(page, pageSize)

	records, total, err := h.journal.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", GetOperationsResponse{
		Operations: records,
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
		},
	})
}
