package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blues/carbonledger/internal/gate"
	"github.com/blues/carbonledger/internal/ledger"
	"github.com/blues/carbonledger/internal/model"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// FailureResponse 按错误类型选择状态码
func FailureResponse(c *gin.Context, err error) {
	ErrorResponse(c, StatusOf(err), err.Error())
}

// StatusOf 错误到HTTP状态码的映射
func StatusOf(err error) int {
	switch {
	case errors.Is(err, gate.ErrAlreadyBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrProjectNotFound), errors.Is(err, model.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrAlreadyConsumed),
		errors.Is(err, model.ErrInvalidOperation):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrSubmission), ledger.IsGatewayError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
