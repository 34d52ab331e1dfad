package service

import "errors"

// 输入校验
var (
	ErrInvalidDuration      = errors.New("invalid duration")
	ErrReserveBelowStarting = errors.New("reserve price below starting price")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidAddress       = errors.New("invalid address")
	ErrInvalidStartTime     = errors.New("invalid start time")
)

// 状态机
var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrNotActive            = errors.New("auction not active")
	ErrNotYetEnded          = errors.New("auction not yet ended")
	ErrAlreadyFinalized     = errors.New("auction already finalized")
	ErrSellerCannotBid      = errors.New("seller cannot bid")
	ErrNotHighestBidder     = errors.New("caller is not the highest bidder")
	ErrDepositMissing       = errors.New("deposit required before bidding")
	ErrDepositAlreadyPlaced = errors.New("deposit already placed")
	ErrDepositNotRequired   = errors.New("auction does not require a deposit")
	ErrHasBids              = errors.New("auction already has bids")
)

// 经济校验
var ErrBidTooLow = errors.New("bid too low")

// 资金
var (
	ErrNoFundsToWithdraw = errors.New("no funds to withdraw")
	ErrNoFeesToWithdraw  = errors.New("no fees to withdraw")
	ErrTransferFailed    = errors.New("transfer failed")
	// ErrTransferUnconfirmed 交易已广播但未确认，余额不恢复，需按交易哈希对账
	ErrTransferUnconfirmed = errors.New("transfer sent but unconfirmed")
	// ErrPayoutNotExecuted Payer用于标记资金确定没有转出（未广播或链上回滚）
	ErrPayoutNotExecuted = errors.New("payout not executed")
)

// 权限与参数
var (
	ErrNotOperator    = errors.New("caller is not the operator")
	ErrNotSeller      = errors.New("caller is not the seller")
	ErrPenaltyTooHigh = errors.New("outbid penalty too high")
	ErrInvalidPercent = errors.New("percent out of range")
	ErrInvalidWindow  = errors.New("invalid anti-sniping window")
)
