package handler

import (
	"github.com/blues/carbonledger/internal/model"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// 项目相关请求与响应模型

// ApproveProjectRequest 批准项目请求
type ApproveProjectRequest struct {
	Credits uint64 `json:"credits"`
}

// GetProjectsResponse 获取项目列表响应
type GetProjectsResponse struct {
	Projects []model.Project `json:"projects"`
}

// GetProjectResponse 获取项目详情响应
type GetProjectResponse struct {
	Project model.Project `json:"project"`
}

// 挂单相关请求与响应模型

// ListForSaleRequest 挂单请求
type ListForSaleRequest struct {
	Amount        uint64 `json:"amount"`
	PricePerToken uint64 `json:"price_per_token"`
}

// GetListingsResponse 获取挂单列表响应
type GetListingsResponse struct {
	Listings []model.Listing `json:"listings"`
}

// GetListingResponse 获取挂单详情响应
type GetListingResponse struct {
	Listing model.Listing `json:"listing"`
}

// 账户与状态响应模型

// BalanceResponse 余额响应
type BalanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Role    string `json:"role"`
}

// StatusResponse 服务状态响应
type StatusResponse struct {
	Busy  bool        `json:"busy"`
	Stats model.Stats `json:"stats"`
}

// GetOperationsResponse 审计日志响应
type GetOperationsResponse struct {
	Operations []model.OperationModel `json:"operations"`
	Pagination Pagination             `json:"pagination"`
}
