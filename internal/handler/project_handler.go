package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blues/carbonledger/internal/logic"
	"github.com/blues/carbonledger/internal/model"
)

// WalletHeader 调用方钱包地址, 由宿主应用的钱包层设置
const WalletHeader = "X-Wallet-Address"

type ProjectHandler struct {
	facade *logic.Facade
}

func NewProjectHandler(facade *logic.Facade) *ProjectHandler {
	return &ProjectHandler{facade: facade}
}

// CreateProject 提交项目
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	caller, ok := walletOf(c)
	if !ok {
		return
	}

	var meta model.ProjectMetadata
	if err := c.ShouldBindJSON(&meta); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.facade.SubmitProject(c.Request.Context(), caller, meta)
	if err != nil {
		FailureResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "project submitted", GetProjectResponse{Project: project})
}

// GetProjects 获取项目列表, 支持按状态和提交者过滤
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	var projects []model.Project
	switch status, submitter := c.Query("status"), c.Query("submitter"); {
	case status != "":
		projects = h.facade.ProjectsByStatus(model.ProjectStatus(strings.ToLower(status)))
	case submitter != "":
		projects = h.facade.ProjectsBySubmitter(submitter)
	default:
		projects = h.facade.ListProjects()
	}

	SuccessResponse(c, http.StatusOK, "ok", GetProjectsResponse{Projects: projects})
}

// GetProject 获取单个项目详情
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	project, err := h.facade.GetProject(id)
	if err != nil {
		FailureResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", GetProjectResponse{Project: project})
}

// ApproveProject 核证人批准项目并核定碳信用数量
func (h *ProjectHandler) ApproveProject(c *gin.Context) {
	caller, ok := walletOf(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req ApproveProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.facade.ApproveProject(c.Request.Context(), caller, id, req.Credits); err != nil {
		FailureResponse(c, err)
		return
	}

	h.respondProject(c, id, "project approved")
}

// RejectProject 核证人驳回项目
func (h *ProjectHandler) RejectProject(c *gin.Context) {
	caller, ok := walletOf(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.facade.RejectProject(c.Request.Context(), caller, id); err != nil {
		FailureResponse(c, err)
		return
	}

	h.respondProject(c, id, "project rejected")
}

// IssueCredits 核证人发放碳信用
func (h *ProjectHandler) IssueCredits(c *gin.Context) {
	caller, ok := walletOf(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.facade.IssueCredits(c.Request.Context(), caller, id); err != nil {
		FailureResponse(c, err)
		return
	}

	h.respondProject(c, id, "credits issued")
}

func (h *ProjectHandler) respondProject(c *gin.Context, id uint64, message string) {
	project, err := h.facade.GetProject(id)
	if err != nil {
		FailureResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, message, GetProjectResponse{Project: project})
}

// walletOf 读取调用方地址, 缺失时直接响应401
func walletOf(c *gin.Context) (string, bool) {
	caller := strings.TrimSpace(c.GetHeader(WalletHeader))
	if caller == "" {
		ErrorResponse(c, http.StatusUnauthorized, fmt.Sprintf("missing %s header", WalletHeader))
		return "", false
	}
	return caller, true
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
