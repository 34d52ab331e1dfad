package service

import "nft_auction/model"

// BidHistory 每个拍卖的只追加出价记录
type BidHistory struct {
	byAuction map[uint64][]model.Bid
	lastID    uint64
}

// NewBidHistory 创建出价记录表
func NewBidHistory() *BidHistory {
	return &BidHistory{byAuction: make(map[uint64][]model.Bid)}
}

// nextID 下一个全局出价序号
func (h *BidHistory) nextID() uint64 {
	return h.lastID + 1
}

func (h *BidHistory) append(b model.Bid) {
	h.byAuction[b.AuctionID] = append(h.byAuction[b.AuctionID], b)
	if b.ID > h.lastID {
		h.lastID = b.ID
	}
}

// List 返回副本，调用方修改不影响记录
func (h *BidHistory) List(auctionID uint64) []model.Bid {
	src := h.byAuction[auctionID]
	out := make([]model.Bid, len(src))
	copy(out, src)
	return out
}
