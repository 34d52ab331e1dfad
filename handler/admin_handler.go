package handler

import (
	"net/http"

	"nft_auction/service"
	"nft_auction/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler 运营方接口
type AdminHandler struct {
	svc service.AuctionService
}

// NewAdminHandler 创建运营方处理器
func NewAdminHandler(svc service.AuctionService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type transferOperatorReq struct {
	Operator string `json:"operator" binding:"required"`
}

// GetSettings 当前全局参数
func (h *AdminHandler) GetSettings(c *gin.Context) {
	ok(c, h.svc.Settings(c.Request.Context()))
}

// UpdateSettings 修改全局参数
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var patch service.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	settings, err := h.svc.UpdateSettings(c.Request.Context(), callerOf(c), patch)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, settings)
}

// TransferOperator 转移运营方
func (h *AdminHandler) TransferOperator(c *gin.Context) {
	var req transferOperatorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	settings, err := h.svc.TransferOperator(c.Request.Context(), callerOf(c), req.Operator)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, settings)
}

// GetFeePool 费用池余额
func (h *AdminHandler) GetFeePool(c *gin.Context) {
	ok(c, gin.H{"amount": h.svc.FeePool(c.Request.Context())})
}

// WithdrawFeePool 提取费用池
func (h *AdminHandler) WithdrawFeePool(c *gin.Context) {
	res, err := h.svc.WithdrawFeePool(c.Request.Context(), callerOf(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, res)
}
