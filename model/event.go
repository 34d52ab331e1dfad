package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType 通知类型（同时作为RabbitMQ路由键）
type EventType string

const (
	EventBidPlaced       EventType = "bid.placed"
	EventAuctionExtended EventType = "auction.extended"
	EventOutbidPenalty   EventType = "bid.outbid_penalty"
	EventDepositPlaced   EventType = "deposit.placed"
	EventAuctionCreated  EventType = "auction.created"
	EventAuctionEnded    EventType = "auction.ended"
	EventAuctionCanceled EventType = "auction.cancelled"
	EventFundsWithdrawn  EventType = "funds.withdrawn"
	EventFeesWithdrawn   EventType = "fees.withdrawn"
	EventSettingsUpdated EventType = "settings.updated"
)

// Event 引擎对外通知
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AuctionID uint64      `json:"auction_id,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// BidPlacedPayload 出价成功
type BidPlacedPayload struct {
	AuctionID  uint64          `json:"auction_id"`
	Bidder     string          `json:"bidder"`
	Amount     decimal.Decimal `json:"amount"`
	NewMinimum decimal.Decimal `json:"new_minimum"`
	BidCount   uint64          `json:"bid_count"`
	Kind       BidKind         `json:"kind"`
}

// AuctionExtendedPayload 防狙击延时
type AuctionExtendedPayload struct {
	AuctionID        uint64    `json:"auction_id"`
	NewEndTime       time.Time `json:"new_end_time"`
	ExtensionSeconds int64     `json:"extension_seconds"`
}

// OutbidPenaltyPayload 被超越罚金
type OutbidPenaltyPayload struct {
	AuctionID     uint64          `json:"auction_id"`
	Bidder        string          `json:"bidder"`
	PenaltyAmount decimal.Decimal `json:"penalty_amount"`
}

// DepositPlacedPayload 保证金缴纳
type DepositPlacedPayload struct {
	AuctionID uint64          `json:"auction_id"`
	Bidder    string          `json:"bidder"`
	Amount    decimal.Decimal `json:"amount"`
}

// AuctionEndedPayload 拍卖结束
type AuctionEndedPayload struct {
	AuctionID uint64           `json:"auction_id"`
	Outcome   AuctionState     `json:"outcome"`
	Winner    string           `json:"winner,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// FundsWithdrawnPayload 提现成功
type FundsWithdrawnPayload struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
	TxHash  string          `json:"tx_hash,omitempty"`
}
