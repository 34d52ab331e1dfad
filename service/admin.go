package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nft_auction/model"
	"nft_auction/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettingsPatch 全局参数修改，nil字段保持不变
type SettingsPatch struct {
	PlatformFeePct     *uint64          `json:"platform_fee_pct,omitempty"`
	AntiSnipeWindow    *int64           `json:"anti_snipe_window,omitempty"`
	AntiSnipeExtension *int64           `json:"anti_snipe_extension,omitempty"`
	MinIncrementPct    *uint64          `json:"min_increment_pct,omitempty"`
	MinIncrementAbs    *decimal.Decimal `json:"min_increment_abs,omitempty"`
	OutbidPenaltyPct   *uint64          `json:"outbid_penalty_pct,omitempty"`
}

// apply 返回修改后的副本
func (p SettingsPatch) apply(s model.AdminSettings) model.AdminSettings {
	if p.PlatformFeePct != nil {
		s.PlatformFeePct = *p.PlatformFeePct
	}
	if p.AntiSnipeWindow != nil {
		s.AntiSnipeWindow = *p.AntiSnipeWindow
	}
	if p.AntiSnipeExtension != nil {
		s.AntiSnipeExtension = *p.AntiSnipeExtension
	}
	if p.MinIncrementPct != nil {
		s.MinIncrementPct = *p.MinIncrementPct
	}
	if p.MinIncrementAbs != nil {
		s.MinIncrementAbs = *p.MinIncrementAbs
	}
	if p.OutbidPenaltyPct != nil {
		s.OutbidPenaltyPct = *p.OutbidPenaltyPct
	}
	return s
}

var (
	// 窗口和延长时间不超过最长拍卖时长，换算Duration时不会溢出
	maxWindowSeconds = int64(MaxAuctionDuration / time.Second)
	// 最小绝对加价上限 1e36 wei
	maxMinIncrementAbs = decimal.New(1, 36)
)

// validateSettings 整体校验，任何一项不合法则全部拒绝
func validateSettings(s model.AdminSettings) error {
	if s.PlatformFeePct > 100 {
		return fmt.Errorf("%w: platform fee %d", ErrInvalidPercent, s.PlatformFeePct)
	}
	if s.MinIncrementPct > 100 {
		return fmt.Errorf("%w: min increment %d", ErrInvalidPercent, s.MinIncrementPct)
	}
	if s.OutbidPenaltyPct > MaxOutbidPenaltyPct {
		return fmt.Errorf("%w: %d > %d", ErrPenaltyTooHigh, s.OutbidPenaltyPct, MaxOutbidPenaltyPct)
	}
	if s.AntiSnipeWindow < 0 || s.AntiSnipeExtension < 0 {
		return fmt.Errorf("%w: negative seconds", ErrInvalidWindow)
	}
	if s.AntiSnipeWindow > maxWindowSeconds || s.AntiSnipeExtension > maxWindowSeconds {
		return fmt.Errorf("%w: window %ds or extension %ds exceeds %s", ErrInvalidWindow, s.AntiSnipeWindow, s.AntiSnipeExtension, MaxAuctionDuration)
	}
	if s.AntiSnipeWindow > 0 && s.AntiSnipeExtension == 0 {
		return fmt.Errorf("%w: extension required when window is set", ErrInvalidWindow)
	}
	if !isWholeNonNegative(s.MinIncrementAbs) || s.MinIncrementAbs.GreaterThan(maxMinIncrementAbs) {
		return fmt.Errorf("%w: min increment abs %s", ErrInvalidAmount, s.MinIncrementAbs)
	}
	return nil
}

// UpdateSettings 运营方修改全局参数
func (s *auctionService) UpdateSettings(ctx context.Context, caller string, patch SettingsPatch) (model.AdminSettings, error) {
	callerAddr, err := NormalizeAddress(caller)
	if err != nil {
		return model.AdminSettings{}, err
	}

	s.mu.Lock()
	if callerAddr != s.settings.Operator {
		s.mu.Unlock()
		return model.AdminSettings{}, ErrNotOperator
	}
	next := patch.apply(s.settings)
	if err := validateSettings(next); err != nil {
		s.mu.Unlock()
		return model.AdminSettings{}, err
	}
	now := s.clock.Now()
	next.UpdatedAt = now
	if err := s.commit(ctx, &ChangeSet{Settings: &next}); err != nil {
		s.mu.Unlock()
		return model.AdminSettings{}, err
	}
	s.mu.Unlock()

	utils.Logger.Info("全局参数已更新",
		zap.Uint64("platform_fee_pct", next.PlatformFeePct),
		zap.Int64("anti_snipe_window", next.AntiSnipeWindow),
		zap.Int64("anti_snipe_extension", next.AntiSnipeExtension),
		zap.Uint64("min_increment_pct", next.MinIncrementPct),
		zap.String("min_increment_abs", next.MinIncrementAbs.String()),
		zap.Uint64("outbid_penalty_pct", next.OutbidPenaltyPct))
	publish(ctx, s.notifier, []model.Event{newEvent(model.EventSettingsUpdated, 0, next, now)})
	return next, nil
}

// TransferOperator 转移运营方权限
func (s *auctionService) TransferOperator(ctx context.Context, caller, newOperator string) (model.AdminSettings, error) {
	callerAddr, err := NormalizeAddress(caller)
	if err != nil {
		return model.AdminSettings{}, err
	}
	op, err := NormalizeAddress(newOperator)
	if err != nil {
		return model.AdminSettings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if callerAddr != s.settings.Operator {
		return model.AdminSettings{}, ErrNotOperator
	}
	next := s.settings
	next.Operator = op
	next.UpdatedAt = s.clock.Now()
	if err := s.commit(ctx, &ChangeSet{Settings: &next}); err != nil {
		return model.AdminSettings{}, err
	}
	utils.Logger.Info("运营方已转移", zap.String("from", callerAddr), zap.String("to", op))
	return next, nil
}

// WithdrawFeePool 运营方提取费用池，与Withdraw相同的先清零后转账顺序
func (s *auctionService) WithdrawFeePool(ctx context.Context, caller string) (*WithdrawResult, error) {
	callerAddr, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if callerAddr != s.settings.Operator {
		s.mu.Unlock()
		return nil, ErrNotOperator
	}
	amount := s.feePool.Balance()
	if !amount.IsPositive() {
		s.mu.Unlock()
		return nil, ErrNoFeesToWithdraw
	}
	if err := s.commit(ctx, &ChangeSet{FeePoolDelta: amount.Neg()}); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	txHash, err := s.payer.Pay(ctx, callerAddr, amount)
	if err != nil {
		if !errors.Is(err, ErrPayoutNotExecuted) {
			utils.Logger.Error("费用池提取交易状态未知，余额不恢复，需按交易哈希对账",
				zap.String("amount", amount.String()), zap.String("tx_hash", txHash), zap.Error(err))
			return nil, fmt.Errorf("%w: tx %s: %v", ErrTransferUnconfirmed, txHash, err)
		}
		s.mu.Lock()
		if rerr := s.commit(context.WithoutCancel(ctx), &ChangeSet{FeePoolDelta: amount}); rerr != nil {
			utils.Logger.Error("恢复费用池失败，需人工对账", zap.String("amount", amount.String()), zap.Error(rerr))
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	now := s.clock.Now()
	utils.Logger.Info("费用池提取成功", zap.String("operator", callerAddr), zap.String("amount", amount.String()), zap.String("tx_hash", txHash))
	publish(ctx, s.notifier, []model.Event{newEvent(model.EventFeesWithdrawn, 0, model.FundsWithdrawnPayload{
		Address: callerAddr, Amount: amount, TxHash: txHash,
	}, now)})
	return &WithdrawResult{Address: callerAddr, Amount: amount, TxHash: txHash}, nil
}

// Settings 当前全局参数
func (s *auctionService) Settings(ctx context.Context) model.AdminSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// FeePool 费用池余额
func (s *auctionService) FeePool(ctx context.Context) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feePool.Balance()
}
