package handler

import (
	"errors"
	"net/http"

	"nft_auction/service"
	"nft_auction/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ok 成功响应
func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"msg":  "success",
		"data": data,
	})
}

// fail 失败响应
func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code": status,
		"msg":  msg,
	})
}

// statusOf 引擎错误到HTTP状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrAuctionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotOperator),
		errors.Is(err, service.ErrNotSeller),
		errors.Is(err, service.ErrSellerCannotBid),
		errors.Is(err, service.ErrNotHighestBidder):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotActive),
		errors.Is(err, service.ErrNotYetEnded),
		errors.Is(err, service.ErrAlreadyFinalized),
		errors.Is(err, service.ErrDepositMissing),
		errors.Is(err, service.ErrDepositAlreadyPlaced),
		errors.Is(err, service.ErrDepositNotRequired),
		errors.Is(err, service.ErrHasBids),
		errors.Is(err, service.ErrNoFundsToWithdraw),
		errors.Is(err, service.ErrNoFeesToWithdraw):
		return http.StatusConflict
	case errors.Is(err, service.ErrBidTooLow),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrReserveBelowStarting),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidStartTime),
		errors.Is(err, service.ErrPenaltyTooHigh),
		errors.Is(err, service.ErrInvalidPercent),
		errors.Is(err, service.ErrInvalidWindow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrTransferUnconfirmed):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondErr 记录并返回引擎错误
func respondErr(c *gin.Context, err error) {
	status := statusOf(err)
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("caller", callerOf(c)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		utils.Logger.Error("请求处理失败", fields...)
	} else {
		utils.Logger.Warn("请求被拒绝", fields...)
	}
	fail(c, status, err.Error())
}
