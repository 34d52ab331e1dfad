package handler

import (
	"nft_auction/service"

	"github.com/gin-gonic/gin"
)

// NewRouter 注册所有路由
func NewRouter(svc service.AuctionService, hub *StreamHub, requireSig bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	auctionHandler := NewAuctionHandler(svc, hub)
	adminHandler := NewAdminHandler(svc)
	auth := CallerAuth(requireSig)

	v1 := r.Group("/api/v1")
	{
		auctions := v1.Group("/auctions")
		auctions.GET("", auctionHandler.ListAuctions)                // 拍卖列表
		auctions.GET("/:id", auctionHandler.GetAuction)              // 拍卖详情
		auctions.GET("/:id/min-bid", auctionHandler.GetMinBid)       // 最低出价
		auctions.GET("/:id/bids", auctionHandler.GetBids)            // 出价历史
		auctions.GET("/:id/status", auctionHandler.GetStatus)        // 状态
		auctions.GET("/:id/stream", auctionHandler.Stream)           // 实时通知
		auctions.POST("", auth, auctionHandler.CreateAuction)        // 创建拍卖
		auctions.POST("/:id/bids", auth, auctionHandler.PlaceBid)    // 出价
		auctions.POST("/:id/bids/increase", auth, auctionHandler.IncreaseBid)
		auctions.POST("/:id/deposits", auth, auctionHandler.PlaceDeposit)
		auctions.POST("/:id/end", auth, auctionHandler.EndAuction)
		auctions.POST("/:id/cancel", auth, auctionHandler.CancelAuction)

		v1.GET("/withdrawals/:address", auctionHandler.GetPendingWithdrawal)
		v1.POST("/withdrawals", auth, auctionHandler.Withdraw)

		admin := v1.Group("/admin")
		admin.GET("/settings", adminHandler.GetSettings)
		admin.GET("/fee-pool", adminHandler.GetFeePool)
		admin.PATCH("/settings", auth, adminHandler.UpdateSettings)
		admin.POST("/operator", auth, adminHandler.TransferOperator)
		admin.POST("/fee-pool/withdraw", auth, adminHandler.WithdrawFeePool)
	}
	return r
}
