package model

import "fmt"

// ProjectStatus 项目认证状态
type ProjectStatus string

const (
	ProjectStatusPending  ProjectStatus = "pending"  // 待审核
	ProjectStatusVerified ProjectStatus = "verified" // 已核证
	ProjectStatusRejected ProjectStatus = "rejected" // 已驳回
	ProjectStatusIssued   ProjectStatus = "issued"   // 已发放碳信用
)

// 链上合约使用的状态码, 0 表示未初始化的存储槽
const (
	StatusCodeNone     uint8 = 0
	StatusCodePending  uint8 = 1
	StatusCodeVerified uint8 = 2
	StatusCodeRejected uint8 = 3
	StatusCodeIssued   uint8 = 4
)

// StatusFromCode 将链上状态码映射为项目状态
func StatusFromCode(code uint8) (ProjectStatus, error) {
	switch code {
	case StatusCodePending:
		return ProjectStatusPending, nil
	case StatusCodeVerified:
		return ProjectStatusVerified, nil
	case StatusCodeRejected:
		return ProjectStatusRejected, nil
	case StatusCodeIssued:
		return ProjectStatusIssued, nil
	default:
		return "", fmt.Errorf("unknown project status code: %d", code)
	}
}

// Code 返回状态对应的链上状态码
func (s ProjectStatus) Code() uint8 {
	switch s {
	case ProjectStatusPending:
		return StatusCodePending
	case ProjectStatusVerified:
		return StatusCodeVerified
	case ProjectStatusRejected:
		return StatusCodeRejected
	case ProjectStatusIssued:
		return StatusCodeIssued
	default:
		return StatusCodeNone
	}
}

// Terminal 是否为终态
func (s ProjectStatus) Terminal() bool {
	return s == ProjectStatusRejected || s == ProjectStatusIssued
}

// ProjectMetadata 项目提交信息
type ProjectMetadata struct {
	Name      string `json:"name" binding:"required"`
	Location  string `json:"location"`
	Ecosystem string `json:"ecosystem"`
	CID       string `json:"cid" binding:"required"` // 链下证据的内容标识
}

// Project 碳汇认证项目
type Project struct {
	ID        uint64        `json:"id"`
	Name      string        `json:"name"`
	Location  string        `json:"location"`
	Ecosystem string        `json:"ecosystem"`
	Submitter string        `json:"submitter"`
	CID       string        `json:"cid"`
	Status    ProjectStatus `json:"status"`
	Credits   uint64        `json:"credits"`
}
