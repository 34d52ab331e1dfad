package service

import (
	"context"
	"testing"

	"nft_auction/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }
func i64(v int64) *int64   { return &v }

func TestUpdateSettingsValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	negative := decimal.NewFromInt(-1)
	huge := decimal.New(1, 37)

	tests := []struct {
		name   string
		caller string
		patch  SettingsPatch
		want   error
	}{
		{"not operator", alice, SettingsPatch{PlatformFeePct: u64(3)}, ErrNotOperator},
		{"penalty above cap", operator, SettingsPatch{OutbidPenaltyPct: u64(11)}, ErrPenaltyTooHigh},
		{"fee above 100", operator, SettingsPatch{PlatformFeePct: u64(101)}, ErrInvalidPercent},
		{"increment above 100", operator, SettingsPatch{MinIncrementPct: u64(101)}, ErrInvalidPercent},
		{"window without extension", operator, SettingsPatch{AntiSnipeExtension: i64(0)}, ErrInvalidWindow},
		{"negative window", operator, SettingsPatch{AntiSnipeWindow: i64(-1)}, ErrInvalidWindow},
		{"negative increment", operator, SettingsPatch{MinIncrementAbs: &negative}, ErrInvalidAmount},
		{"increment above cap", operator, SettingsPatch{MinIncrementAbs: &huge}, ErrInvalidAmount},
		{"window overflows duration", operator, SettingsPatch{AntiSnipeWindow: i64(1e10), AntiSnipeExtension: i64(1e10)}, ErrInvalidWindow},
		{"extension above max duration", operator, SettingsPatch{AntiSnipeExtension: i64(31 * 24 * 3600)}, ErrInvalidWindow},
		// 任何一项不合法则整体拒绝
		{"mixed patch", operator, SettingsPatch{PlatformFeePct: u64(3), OutbidPenaltyPct: u64(20)}, ErrPenaltyTooHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.UpdateSettings(ctx, tt.caller, tt.patch)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, uint64(2), e.svc.Settings(ctx).PlatformFeePct)
	assert.Empty(t, e.notifier.ofType(model.EventSettingsUpdated))
}

func TestUpdateSettingsAppliesToLiveAuctions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := e.createAuction(t)
	_, err := e.svc.PlaceBid(ctx, alice, a.ID, eth("1"))
	require.NoError(t, err)

	got, err := e.svc.UpdateSettings(ctx, operator, SettingsPatch{
		MinIncrementPct:  u64(10),
		OutbidPenaltyPct: u64(10),
		AntiSnipeWindow:  i64(0),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.MinIncrementPct)
	assert.Equal(t, int64(0), got.AntiSnipeWindow)
	assert.Equal(t, int64(300), got.AntiSnipeExtension)
	assert.Len(t, e.notifier.ofType(model.EventSettingsUpdated), 1)

	info, err := e.svc.GetMinBidInfo(ctx, a.ID)
	require.NoError(t, err)
	assertAmount(t, eth("1.1"), info.MinBidRequired)

	res, err := e.svc.PlaceBid(ctx, bob, a.ID, eth("1.1"))
	require.NoError(t, err)
	assertAmount(t, eth("0.1"), res.Penalty)
	assertAmount(t, eth("0.9"), e.balance(t, alice))
}

func TestTransferOperator(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.svc.TransferOperator(ctx, alice, bob)
	assert.ErrorIs(t, err, ErrNotOperator)
	_, err = e.svc.TransferOperator(ctx, operator, "0x0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	got, err := e.svc.TransferOperator(ctx, operator, carol)
	require.NoError(t, err)
	assert.Equal(t, carol, got.Operator)

	_, err = e.svc.UpdateSettings(ctx, operator, SettingsPatch{PlatformFeePct: u64(3)})
	assert.ErrorIs(t, err, ErrNotOperator)
	_, err = e.svc.UpdateSettings(ctx, carol, SettingsPatch{PlatformFeePct: u64(3)})
	require.NoError(t, err)
}

func TestWithdrawFeePool(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.svc.WithdrawFeePool(ctx, operator)
	assert.ErrorIs(t, err, ErrNoFeesToWithdraw)

	a := e.createAuction(t)
	_, err = e.svc.PlaceBid(ctx, alice, a.ID, eth("1"))
	require.NoError(t, err)
	_, err = e.svc.PlaceBid(ctx, bob, a.ID, eth("2"))
	require.NoError(t, err)

	_, err = e.svc.WithdrawFeePool(ctx, alice)
	assert.ErrorIs(t, err, ErrNotOperator)

	e.payer.fail = errNotSent
	_, err = e.svc.WithdrawFeePool(ctx, operator)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assertAmount(t, eth("0.01"), e.svc.FeePool(ctx))

	e.payer.fail = nil
	res, err := e.svc.WithdrawFeePool(ctx, operator)
	require.NoError(t, err)
	assertAmount(t, eth("0.01"), res.Amount)
	assert.Equal(t, operator, res.Address)
	assert.True(t, e.svc.FeePool(ctx).IsZero())
	assert.Len(t, e.notifier.ofType(model.EventFeesWithdrawn), 1)
}

func TestWithdrawFeePoolUnconfirmedTransferIsNotRestored(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := e.createAuction(t)
	_, err := e.svc.PlaceBid(ctx, alice, a.ID, eth("1"))
	require.NoError(t, err)
	_, err = e.svc.PlaceBid(ctx, bob, a.ID, eth("2"))
	require.NoError(t, err)

	e.payer.failAfterSend = context.DeadlineExceeded
	_, err = e.svc.WithdrawFeePool(ctx, operator)
	assert.ErrorIs(t, err, ErrTransferUnconfirmed)
	assert.True(t, e.svc.FeePool(ctx).IsZero())

	e.payer.failAfterSend = nil
	_, err = e.svc.WithdrawFeePool(ctx, operator)
	assert.ErrorIs(t, err, ErrNoFeesToWithdraw)
	assert.Len(t, e.payer.payments(), 1)
	assert.Empty(t, e.notifier.ofType(model.EventFeesWithdrawn))
}
