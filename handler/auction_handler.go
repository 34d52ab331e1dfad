package handler

import (
	"net/http"
	"strconv"

	"nft_auction/model"
	"nft_auction/service"
	"nft_auction/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AuctionHandler 拍卖处理器
type AuctionHandler struct {
	svc service.AuctionService
	hub *StreamHub
}

// NewAuctionHandler 创建拍卖处理器
func NewAuctionHandler(svc service.AuctionService, hub *StreamHub) *AuctionHandler {
	return &AuctionHandler{svc: svc, hub: hub}
}

// amountReq 出价/追加/保证金请求体
type amountReq struct {
	Amount decimal.Decimal `json:"amount"`
}

// auctionID 解析路径中的拍卖ID
func auctionID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "invalid auction id")
		return 0, false
	}
	return id, true
}

// bindAmount 解析金额请求体
func bindAmount(c *gin.Context) (decimal.Decimal, bool) {
	var req amountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return decimal.Zero, false
	}
	return req.Amount, true
}

// CreateAuction 创建拍卖
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	var req service.CreateAuctionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.svc.CreateAuction(c.Request.Context(), callerOf(c), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, a)
}

// ListAuctions 分页查询拍卖
func (h *AuctionHandler) ListAuctions(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	if pageSize <= 0 {
		pageSize = 20
	}

	req := service.ListAuctionsReq{
		State:    model.AuctionState(c.Query("state")),
		Seller:   c.Query("seller"),
		Page:     page,
		PageSize: pageSize,
	}
	list, total, err := h.svc.ListAuctions(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetAuction 查询单个拍卖
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	a, err := h.svc.GetAuction(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, a)
}

// GetMinBid 下一口最低出价
func (h *AuctionHandler) GetMinBid(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	info, err := h.svc.GetMinBidInfo(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, info)
}

// GetBids 出价历史
func (h *AuctionHandler) GetBids(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	bids, err := h.svc.GetBidHistory(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, gin.H{"list": bids, "total": len(bids)})
}

// GetStatus 是否可出价与剩余时间
func (h *AuctionHandler) GetStatus(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	active, err := h.svc.IsActive(ctx, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	left, err := h.svc.TimeRemaining(ctx, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, gin.H{
		"auction_id":             id,
		"is_active":              active,
		"time_remaining_seconds": int64(left.Seconds()),
	})
}

// PlaceBid 出价
func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	amount, valid := bindAmount(c)
	if !valid {
		return
	}
	res, err := h.svc.PlaceBid(c.Request.Context(), callerOf(c), id, amount)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, res)
}

// IncreaseBid 领先者追加出价
func (h *AuctionHandler) IncreaseBid(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	amount, valid := bindAmount(c)
	if !valid {
		return
	}
	res, err := h.svc.IncreaseBid(c.Request.Context(), callerOf(c), id, amount)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, res)
}

// PlaceDeposit 缴纳保证金
func (h *AuctionHandler) PlaceDeposit(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	amount, valid := bindAmount(c)
	if !valid {
		return
	}
	d, err := h.svc.PlaceDeposit(c.Request.Context(), callerOf(c), id, amount)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, d)
}

// EndAuction 结算到期拍卖
func (h *AuctionHandler) EndAuction(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	a, err := h.svc.EndAuction(c.Request.Context(), callerOf(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, a)
}

// CancelAuction 取消无出价的拍卖
func (h *AuctionHandler) CancelAuction(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	a, err := h.svc.CancelAuction(c.Request.Context(), callerOf(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, a)
}

// Stream 订阅拍卖实时通知（websocket）
func (h *AuctionHandler) Stream(c *gin.Context) {
	id, valid := auctionID(c)
	if !valid {
		return
	}
	if _, err := h.svc.GetAuction(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	h.hub.ServeWS(c.Writer, c.Request, id)
}

// GetPendingWithdrawal 查询待提现余额
func (h *AuctionHandler) GetPendingWithdrawal(c *gin.Context) {
	addr := c.Param("address")
	amount, err := h.svc.GetPendingWithdrawal(c.Request.Context(), addr)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, gin.H{"address": addr, "amount": amount})
}

// Withdraw 提取调用方全部待提现余额
func (h *AuctionHandler) Withdraw(c *gin.Context) {
	res, err := h.svc.Withdraw(c.Request.Context(), callerOf(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, res)
}
