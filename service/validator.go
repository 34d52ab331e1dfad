package service

import (
	"fmt"

	"nft_auction/model"

	"github.com/shopspring/decimal"
)

// Binding 最低出价由哪一项决定
type Binding string

const (
	BindingStartingPrice Binding = "starting_price"
	BindingPercent       Binding = "percent"
	BindingAbsolute      Binding = "absolute"
)

// MinBidInfo 最低出价明细（只读，供前端展示）
type MinBidInfo struct {
	MinBidRequired    decimal.Decimal `json:"min_bid_required"`
	PercentComponent  decimal.Decimal `json:"percent_component"`
	AbsoluteComponent decimal.Decimal `json:"absolute_component"`
	Binding           Binding         `json:"binding"`
}

// BidValidator 最低出价计算：百分比与绝对值两维取大
type BidValidator struct{}

// effectivePct 拍卖自定义百分比优先，0则使用全局默认
func effectivePct(a *model.Auction, s model.AdminSettings) uint64 {
	if a.MinBidIncrementPct != 0 {
		return a.MinBidIncrementPct
	}
	return s.MinIncrementPct
}

// effectiveAbs 拍卖自定义绝对加价优先，0则使用全局默认
func effectiveAbs(a *model.Auction, s model.AdminSettings) decimal.Decimal {
	if !a.MinBidIncrement.IsZero() {
		return a.MinBidIncrement
	}
	return s.MinIncrementAbs
}

// Breakdown 计算下一口最低出价及其构成
func (BidValidator) Breakdown(a *model.Auction, s model.AdminSettings) MinBidInfo {
	pctPart := percentOf(a.CurrentBid, effectivePct(a, s))
	absPart := effectiveAbs(a, s)

	if !a.HasBids() {
		return MinBidInfo{
			MinBidRequired:    a.StartingPrice,
			PercentComponent:  pctPart,
			AbsoluteComponent: absPart,
			Binding:           BindingStartingPrice,
		}
	}

	info := MinBidInfo{
		PercentComponent:  pctPart,
		AbsoluteComponent: absPart,
		Binding:           BindingPercent,
	}
	increment := pctPart
	if absPart.GreaterThan(pctPart) {
		increment = absPart
		info.Binding = BindingAbsolute
	}
	info.MinBidRequired = a.CurrentBid.Add(increment)
	return info
}

// MinimumNextBid 下一口最低可接受出价
func (v BidValidator) MinimumNextBid(a *model.Auction, s model.AdminSettings) decimal.Decimal {
	return v.Breakdown(a, s).MinBidRequired
}

// Check 出价低于最低出价时返回ErrBidTooLow（等于最低出价可接受）
func (v BidValidator) Check(a *model.Auction, s model.AdminSettings, amount decimal.Decimal) error {
	min := v.MinimumNextBid(a, s)
	if amount.LessThan(min) {
		return fmt.Errorf("%w: minimum is %s, got %s", ErrBidTooLow, min.String(), amount.String())
	}
	return nil
}
