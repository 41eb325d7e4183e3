package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blues/carbonledger/internal/logic"
)

// AccountHandler 账户余额与服务状态
type AccountHandler struct {
	facade *logic.Facade
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(facade *logic.Facade) *AccountHandler {
	return &AccountHandler{facade: facade}
}

// GetBalance 查询代币余额, cached=true 时返回缓存值而不查询账本
func (h *AccountHandler) GetBalance(c *gin.Context) {
	address := c.Param("address")

	if c.Query("cached") == "true" {
		if bal, ok := h.facade.Balance(address); ok {
			h.respondBalance(c, address, bal)
			return
		}
	}

	bal, err := h.facade.RefreshBalance(c.Request.Context(), address)
	if err != nil {
		FailureResponse(c, err)
		return
	}
	h.respondBalance(c, address, bal)
}

func (h *AccountHandler) respondBalance(c *gin.Context, address string, bal uint64) {
	SuccessResponse(c, http.StatusOK, "ok", BalanceResponse{
		Address: address,
		Balance: bal,
		Role:    h.facade.RoleOf(address).String(),
	})
}

// GetStatus 返回互斥门状态和统计信息
func (h *AccountHandler) GetStatus(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "ok", StatusResponse{
		Busy:  h.facade.IsBusy(),
		Stats: h.facade.Stats(),
	})
}

// Refresh 立即从账本全量刷新缓存
func (h *AccountHandler) Refresh(c *gin.Context) {
	if err := h.facade.Refresh(c.Request.Context()); err != nil {
		FailureResponse(c, err)
		return
	}
	h.GetStatus(c)
}
