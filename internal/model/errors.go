package model

import "errors"

var (
	// ErrUnauthorized 角色或所有权校验失败
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidTransition 状态机前置条件不满足
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInvalidArgument 数值参数非法
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidOperation 操作本身没有意义, 例如购买自己的挂单
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrProjectNotFound 项目不存在
	ErrProjectNotFound = errors.New("project not found")
	// ErrListingNotFound 挂单不存在
	ErrListingNotFound = errors.New("listing not found")
	// ErrAlreadyConsumed 挂单已成交或已撤销
	ErrAlreadyConsumed = errors.New("listing already consumed")
	// ErrSubmission 项目提交被账本拒绝
	ErrSubmission = errors.New("project submission failed")
)
