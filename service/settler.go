package service

import (
	"context"
	"errors"
	"time"

	"nft_auction/utils"

	"go.uber.org/zap"
)

// DueSource 提供已到期待结算的拍卖ID
type DueSource interface {
	DueAuctions(ctx context.Context, now time.Time, limit int64) ([]uint64, error)
}

// Settler 代替用户调用无权限的EndAuction；引擎本身不含定时器
type Settler struct {
	svc    AuctionService
	due    DueSource
	caller string
	clock  Clock
	batch  int64
	// dispatch 非空时到期拍卖改为投递结算命令，由消费者调用Settle
	dispatch func(ctx context.Context, auctionID uint64) error
}

// NewSettler 创建结算器，caller为调用EndAuction时记录的地址
func NewSettler(svc AuctionService, due DueSource, caller string) *Settler {
	return &Settler{svc: svc, due: due, caller: caller, clock: systemClock{}, batch: 100}
}

// WithDispatcher 改为通过消息队列分发结算
func (st *Settler) WithDispatcher(dispatch func(ctx context.Context, auctionID uint64) error) *Settler {
	st.dispatch = dispatch
	return st
}

// SettleDue 结算（或分发）一批到期拍卖，返回成功处理的数量
func (st *Settler) SettleDue(ctx context.Context) (int, error) {
	ids, err := st.due.DueAuctions(ctx, st.clock.Now(), st.batch)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, id := range ids {
		handle := st.Settle
		if st.dispatch != nil {
			handle = st.dispatch
		}
		if err := handle(ctx, id); err != nil {
			utils.Logger.Warn("自动结算失败", zap.Uint64("auction_id", id), zap.Error(err))
			continue
		}
		settled++
	}
	return settled, nil
}

// Settle 结算单个拍卖；未到期或已结算视为无需处理，不存在的拍卖重试也不会成功，直接丢弃
func (st *Settler) Settle(ctx context.Context, auctionID uint64) error {
	_, err := st.svc.EndAuction(ctx, st.caller, auctionID)
	switch {
	case errors.Is(err, ErrNotYetEnded), errors.Is(err, ErrAlreadyFinalized):
		return nil
	case errors.Is(err, ErrAuctionNotFound):
		utils.Logger.Warn("结算的拍卖不存在，丢弃", zap.Uint64("auction_id", auctionID))
		return nil
	}
	return err
}

// Run 按间隔轮询直到ctx取消
func (st *Settler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.SettleDue(ctx)
			if err != nil {
				utils.Logger.Error("读取到期拍卖失败", zap.Error(err))
				continue
			}
			if n > 0 {
				utils.Logger.Info("自动结算完成", zap.Int("settled", n))
			}
		}
	}
}
