package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionState 拍卖状态
type AuctionState string

const (
	AuctionStatePending     AuctionState = "pending"      // 待开始
	AuctionStateActive      AuctionState = "active"       // 竞拍中
	AuctionStateEndedSold   AuctionState = "ended_sold"   // 已成交
	AuctionStateEndedUnsold AuctionState = "ended_unsold" // 流拍（无出价或未达保留价）
	AuctionStateCancelled   AuctionState = "cancelled"    // 已取消
)

// Finalized 是否为终态
func (s AuctionState) Finalized() bool {
	switch s {
	case AuctionStateEndedSold, AuctionStateEndedUnsold, AuctionStateCancelled:
		return true
	}
	return false
}

// BidKind 出价类型
type BidKind string

const (
	BidKindPlace    BidKind = "place"    // 新领先出价
	BidKindIncrease BidKind = "increase" // 领先者加价
)

// Auction 英式拍卖（金额单位均为最小货币单位，如wei）
type Auction struct {
	ID                 uint64          `gorm:"primaryKey;autoIncrement:false;comment:拍卖ID（单调递增）" json:"id"`
	Seller             string          `gorm:"size:42;index;comment:卖家地址" json:"seller"`
	ExternalID         string          `gorm:"size:128;index;comment:链下商品引用" json:"external_id"`
	StartingPrice      decimal.Decimal `gorm:"type:decimal(65,0);comment:起拍价" json:"starting_price"`
	ReservePrice       decimal.Decimal `gorm:"type:decimal(65,0);comment:保留价" json:"reserve_price"`
	CurrentBid         decimal.Decimal `gorm:"type:decimal(65,0);comment:当前最高出价" json:"current_bid"`
	HighestBidder      string          `gorm:"size:42;comment:当前领先者（空表示无出价）" json:"highest_bidder,omitempty"`
	StartTime          time.Time       `gorm:"comment:开始时间" json:"start_time"`
	EndTime            time.Time       `gorm:"index;comment:结束时间（只增不减）" json:"end_time"`
	DepositRequired    decimal.Decimal `gorm:"type:decimal(65,0);comment:保证金要求（0表示不需要）" json:"deposit_required"`
	MinBidIncrement    decimal.Decimal `gorm:"type:decimal(65,0);comment:最小绝对加价（0表示使用全局默认）" json:"min_bid_increment"`
	MinBidIncrementPct uint64          `gorm:"comment:最小加价百分比（0表示使用全局默认）" json:"min_bid_increment_pct"`
	BidCount           uint64          `gorm:"comment:有效出价次数" json:"bid_count"`
	State              AuctionState    `gorm:"size:16;index;comment:拍卖状态" json:"state"`
	CreatedAt          time.Time       `gorm:"comment:创建时间" json:"created_at"`
	FinalizedAt        *time.Time      `gorm:"comment:结算时间" json:"finalized_at,omitempty"`
}

// TableName 表名
func (a *Auction) TableName() string {
	return "auctions"
}

// HasBids 是否已有出价
func (a *Auction) HasBids() bool {
	return a.HighestBidder != ""
}

// Bid 出价记录（只追加，不修改）
type Bid struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement:false;comment:全局出价序号" json:"id"`
	AuctionID uint64          `gorm:"index;comment:拍卖ID" json:"auction_id"`
	Bidder    string          `gorm:"size:42;comment:出价人地址" json:"bidder"`
	Amount    decimal.Decimal `gorm:"type:decimal(65,0);comment:出价后领先金额" json:"amount"`
	Kind      BidKind         `gorm:"size:16;comment:出价类型" json:"kind"`
	Timestamp time.Time       `gorm:"comment:出价时间" json:"timestamp"`
}

// TableName 表名
func (b *Bid) TableName() string {
	return "auction_bids"
}

// Deposit 竞拍保证金
type Deposit struct {
	AuctionID uint64          `gorm:"primaryKey;autoIncrement:false;comment:拍卖ID" json:"auction_id"`
	Bidder    string          `gorm:"primaryKey;size:42;comment:出价人地址" json:"bidder"`
	Amount    decimal.Decimal `gorm:"type:decimal(65,0);comment:锁定金额" json:"amount"`
	Released  bool            `gorm:"comment:是否已释放到待提现余额" json:"released"`
	PlacedAt  time.Time       `gorm:"comment:缴纳时间" json:"placed_at"`
}

// TableName 表名
func (d *Deposit) TableName() string {
	return "auction_deposits"
}

// LedgerBalance 待提现余额（拉取式支付账本）
type LedgerBalance struct {
	Address   string          `gorm:"primaryKey;size:42;comment:钱包地址" json:"address"`
	Amount    decimal.Decimal `gorm:"type:decimal(65,0);comment:可提现金额" json:"amount"`
	UpdatedAt time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (l *LedgerBalance) TableName() string {
	return "ledger_balances"
}

// FeePoolBalance 平台费用池（单行）
type FeePoolBalance struct {
	ID        uint8           `gorm:"primaryKey;comment:固定为1" json:"-"`
	Amount    decimal.Decimal `gorm:"type:decimal(65,0);comment:累计罚金与平台费" json:"amount"`
	UpdatedAt time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (f *FeePoolBalance) TableName() string {
	return "fee_pool"
}

// FeePoolRowID 费用池固定行ID
const FeePoolRowID uint8 = 1
