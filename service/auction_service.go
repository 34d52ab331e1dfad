package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"nft_auction/model"
	"nft_auction/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MinAuctionDuration  = time.Hour
	MaxAuctionDuration  = 30 * 24 * time.Hour
	MaxOutbidPenaltyPct = 10
)

// Clock 外部提供的时钟，所有时间判断都在调用时惰性求值
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Payer 执行对外转账（唯一的资金流出口）。
// 只有包装了ErrPayoutNotExecuted的错误表示资金未转出，其他错误一律视为可能已转出。
type Payer interface {
	Pay(ctx context.Context, to string, amount decimal.Decimal) (txHash string, err error)
}

// AuctionService 拍卖结算引擎接口
type AuctionService interface {
	CreateAuction(ctx context.Context, caller string, req CreateAuctionReq) (*model.Auction, error)
	PlaceDeposit(ctx context.Context, caller string, auctionID uint64, amount decimal.Decimal) (*model.Deposit, error)
	PlaceBid(ctx context.Context, caller string, auctionID uint64, amount decimal.Decimal) (*BidResult, error)
	IncreaseBid(ctx context.Context, caller string, auctionID uint64, added decimal.Decimal) (*BidResult, error)
	EndAuction(ctx context.Context, caller string, auctionID uint64) (*model.Auction, error)
	CancelAuction(ctx context.Context, caller string, auctionID uint64) (*model.Auction, error)
	Withdraw(ctx context.Context, caller string) (*WithdrawResult, error)

	UpdateSettings(ctx context.Context, caller string, patch SettingsPatch) (model.AdminSettings, error)
	TransferOperator(ctx context.Context, caller, newOperator string) (model.AdminSettings, error)
	WithdrawFeePool(ctx context.Context, caller string) (*WithdrawResult, error)

	GetAuction(ctx context.Context, auctionID uint64) (*model.Auction, error)
	ListAuctions(ctx context.Context, req ListAuctionsReq) ([]model.Auction, int, error)
	GetMinBidInfo(ctx context.Context, auctionID uint64) (MinBidInfo, error)
	GetBidHistory(ctx context.Context, auctionID uint64) ([]model.Bid, error)
	GetPendingWithdrawal(ctx context.Context, addr string) (decimal.Decimal, error)
	IsActive(ctx context.Context, auctionID uint64) (bool, error)
	TimeRemaining(ctx context.Context, auctionID uint64) (time.Duration, error)
	Settings(ctx context.Context) model.AdminSettings
	FeePool(ctx context.Context) decimal.Decimal
}

// Options 引擎依赖
type Options struct {
	Store    Store
	Notifier Notifier
	Payer    Payer
	Clock    Clock
	// Defaults 存储中没有全局参数时使用的初始值
	Defaults model.AdminSettings
}

// auctionService 引擎实现；mu串行化所有写操作
type auctionService struct {
	mu sync.RWMutex

	store    Store
	notifier Notifier
	payer    Payer
	clock    Clock

	validator BidValidator
	antiSnipe AntiSnipingPolicy

	settings      model.AdminSettings
	auctions      map[uint64]*model.Auction
	lastAuctionID uint64
	deposits      map[uint64]map[string]model.Deposit
	history       *BidHistory
	ledger        *Ledger
	feePool       FeePool
}

// -------------- 请求/响应结构体 --------------
// CreateAuctionReq 创建拍卖请求
type CreateAuctionReq struct {
	Seller             string          `json:"seller"`
	ExternalID         string          `json:"external_id"`
	StartingPrice      decimal.Decimal `json:"starting_price"`
	ReservePrice       decimal.Decimal `json:"reserve_price"`
	DurationSeconds    int64           `json:"duration_seconds"`
	DepositRequired    decimal.Decimal `json:"deposit_required"`
	StartImmediately   bool            `json:"start_immediately"`
	StartTime          *time.Time      `json:"start_time"` // StartImmediately为false时必填
	MinBidIncrement    decimal.Decimal `json:"min_bid_increment"`
	MinBidIncrementPct uint64          `json:"min_bid_increment_pct"`
}

// ListAuctionsReq 拍卖列表查询
type ListAuctionsReq struct {
	State    model.AuctionState `json:"state"`
	Seller   string             `json:"seller"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// BidResult 出价结果
type BidResult struct {
	Auction  model.Auction `json:"auction"`
	Bid      model.Bid     `json:"bid"`
	NextMin  MinBidInfo    `json:"next_min"`
	Extended bool          `json:"extended"`
	// Penalty 前任领先者被扣除的罚金
	Penalty decimal.Decimal `json:"penalty"`
}

// WithdrawResult 提现结果
type WithdrawResult struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
	TxHash  string          `json:"tx_hash,omitempty"`
}

// NewAuctionService 创建拍卖引擎，并从Store恢复状态
func NewAuctionService(ctx context.Context, opts Options) (AuctionService, error) {
	s := &auctionService{
		store:    opts.Store,
		notifier: opts.Notifier,
		payer:    opts.Payer,
		clock:    opts.Clock,
		auctions: make(map[uint64]*model.Auction),
		deposits: make(map[uint64]map[string]model.Deposit),
		history:  NewBidHistory(),
		ledger:   NewLedger(),
	}
	if s.store == nil {
		s.store = NewMemoryStore()
	}
	if s.notifier == nil {
		s.notifier = NopNotifier{}
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.payer == nil {
		return nil, fmt.Errorf("payer is required")
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load engine state: %w", err)
	}
	s.restore(snap)

	if snap.Settings == nil {
		defaults := opts.Defaults
		op, err := NormalizeAddress(defaults.Operator)
		if err != nil {
			return nil, fmt.Errorf("operator: %w", err)
		}
		defaults.Operator = op
		defaults.ID = model.SettingsRowID
		if err := validateSettings(defaults); err != nil {
			return nil, err
		}
		defaults.UpdatedAt = s.clock.Now()
		if err := s.commit(ctx, &ChangeSet{Settings: &defaults}); err != nil {
			return nil, fmt.Errorf("seed settings: %w", err)
		}
	}

	utils.Logger.Info("拍卖引擎已恢复",
		zap.Int("auctions", len(s.auctions)),
		zap.Uint64("last_bid_id", s.history.lastID),
		zap.String("fee_pool", s.feePool.Balance().String()))
	return s, nil
}

// restore 从快照重建内存状态
func (s *auctionService) restore(snap *Snapshot) {
	for i := range snap.Auctions {
		a := snap.Auctions[i]
		s.auctions[a.ID] = &a
		if a.ID > s.lastAuctionID {
			s.lastAuctionID = a.ID
		}
	}
	bids := append([]model.Bid(nil), snap.Bids...)
	sort.Slice(bids, func(i, j int) bool { return bids[i].ID < bids[j].ID })
	for _, b := range bids {
		s.history.append(b)
	}
	for _, d := range snap.Deposits {
		s.putDeposit(d)
	}
	for _, b := range snap.Balances {
		s.ledger.credit(b.Address, b.Amount)
	}
	s.feePool.credit(snap.FeePool)
	if snap.Settings != nil {
		s.settings = *snap.Settings
	}
}

// commit 先持久化，成功后再应用到内存；调用方必须持有写锁
func (s *auctionService) commit(ctx context.Context, cs *ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	if err := s.store.Commit(ctx, cs); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	for i := range cs.Auctions {
		a := cs.Auctions[i]
		s.auctions[a.ID] = &a
		if a.ID > s.lastAuctionID {
			s.lastAuctionID = a.ID
		}
	}
	for _, b := range cs.Bids {
		s.history.append(b)
	}
	for _, d := range cs.Deposits {
		s.putDeposit(d)
	}
	for _, ld := range cs.LedgerDeltas {
		s.ledger.credit(ld.Address, ld.Delta)
	}
	s.feePool.credit(cs.FeePoolDelta)
	if cs.Settings != nil {
		s.settings = *cs.Settings
	}
	return nil
}

func (s *auctionService) putDeposit(d model.Deposit) {
	m, ok := s.deposits[d.AuctionID]
	if !ok {
		m = make(map[string]model.Deposit)
		s.deposits[d.AuctionID] = m
	}
	m[d.Bidder] = d
}

func (s *auctionService) getAuction(id uint64) (*model.Auction, error) {
	a, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrAuctionNotFound, id)
	}
	return a, nil
}

// effectiveState 待开始的拍卖在开始时间到达后视为竞拍中
func effectiveState(a *model.Auction, now time.Time) model.AuctionState {
	if a.State == model.AuctionStatePending && !now.Before(a.StartTime) {
		return model.AuctionStateActive
	}
	return a.State
}

// openForBidding 校验拍卖处于[StartTime, EndTime)且为竞拍中，并完成惰性激活
func openForBidding(a *model.Auction, now time.Time) error {
	if effectiveState(a, now) != model.AuctionStateActive {
		return fmt.Errorf("%w: state %s", ErrNotActive, a.State)
	}
	if now.Before(a.StartTime) || !now.Before(a.EndTime) {
		return fmt.Errorf("%w: outside bidding window", ErrNotActive)
	}
	a.State = model.AuctionStateActive
	return nil
}

// -------------- 写操作 --------------
// CreateAuction 创建拍卖（卖家本人或运营方）
func (s *auctionService) CreateAuction(ctx context.Context, caller string, req CreateAuctionReq) (*model.Auction, error) {
	callerAddr, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}
	seller, err := NormalizeAddress(req.Seller)
	if err != nil {
		return nil, fmt.Errorf("seller: %w", err)
	}

	// 先按秒比较，避免换算成Duration时溢出
	if req.DurationSeconds < int64(MinAuctionDuration/time.Second) || req.DurationSeconds > int64(MaxAuctionDuration/time.Second) {
		return nil, fmt.Errorf("%w: %ds not in [%s, %s]", ErrInvalidDuration, req.DurationSeconds, MinAuctionDuration, MaxAuctionDuration)
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	if !isWholePositive(req.StartingPrice) {
		return nil, fmt.Errorf("%w: starting price %s", ErrInvalidAmount, req.StartingPrice)
	}
	if !isWholeNonNegative(req.ReservePrice) || req.ReservePrice.LessThan(req.StartingPrice) {
		return nil, fmt.Errorf("%w: reserve %s < starting %s", ErrReserveBelowStarting, req.ReservePrice, req.StartingPrice)
	}
	if !isWholeNonNegative(req.DepositRequired) || !isWholeNonNegative(req.MinBidIncrement) {
		return nil, fmt.Errorf("%w: deposit or increment", ErrInvalidAmount)
	}
	if req.MinBidIncrementPct > 100 {
		return nil, fmt.Errorf("%w: min bid increment pct %d", ErrInvalidPercent, req.MinBidIncrementPct)
	}

	s.mu.Lock()
	if callerAddr != seller && callerAddr != s.settings.Operator {
		s.mu.Unlock()
		return nil, ErrNotSeller
	}

	now := s.clock.Now()
	a := model.Auction{
		ID:                 s.lastAuctionID + 1,
		Seller:             seller,
		ExternalID:         req.ExternalID,
		StartingPrice:      req.StartingPrice,
		ReservePrice:       req.ReservePrice,
		CurrentBid:         decimal.Zero,
		DepositRequired:    req.DepositRequired,
		MinBidIncrement:    req.MinBidIncrement,
		MinBidIncrementPct: req.MinBidIncrementPct,
		CreatedAt:          now,
	}
	if req.StartImmediately {
		a.StartTime = now
		a.State = model.AuctionStateActive
	} else {
		if req.StartTime == nil || !req.StartTime.After(now) {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: start time must be in the future", ErrInvalidStartTime)
		}
		a.StartTime = req.StartTime.UTC()
		a.State = model.AuctionStatePending
	}
	a.EndTime = a.StartTime.Add(duration)

	if err := s.commit(ctx, &ChangeSet{Auctions: []model.Auction{a}}); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	utils.Logger.Info("创建拍卖成功",
		zap.Uint64("auction_id", a.ID),
		zap.String("seller", a.Seller),
		zap.String("external_id", a.ExternalID),
		zap.Time("end_time", a.EndTime))
	publish(ctx, s.notifier, []model.Event{newEvent(model.EventAuctionCreated, a.ID, a, now)})
	return &a, nil
}

// PlaceDeposit 缴纳竞拍保证金
func (s *auctionService) PlaceDeposit(ctx context.Context, caller string, auctionID uint64, amount decimal.Decimal) (*model.Deposit, error) {
	bidder, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	d, cs, err := s.prepareDeposit(bidder, auctionID, amount)
	if err == nil {
		err = s.commit(ctx, cs)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("缴纳保证金成功", zap.Uint64("auction_id", auctionID), zap.String("bidder", bidder), zap.String("amount", amount.String()))
	publish(ctx, s.notifier, []model.Event{newEvent(model.EventDepositPlaced, auctionID, model.DepositPlacedPayload{
		AuctionID: auctionID, Bidder: bidder, Amount: amount,
	}, d.PlacedAt)})
	return d, nil
}

func (s *auctionService) prepareDeposit(bidder string, auctionID uint64, amount decimal.Decimal) (*model.Deposit, *ChangeSet, error) {
	cur, err := s.getAuction(auctionID)
	if err != nil {
		return nil, nil, err
	}
	now := s.clock.Now()
	a := *cur
	if a.DepositRequired.IsZero() {
		return nil, nil, ErrDepositNotRequired
	}
	if err := openForBidding(&a, now); err != nil {
		return nil, nil, err
	}
	if bidder == a.Seller {
		return nil, nil, ErrSellerCannotBid
	}
	if _, ok := s.deposits[auctionID][bidder]; ok {
		return nil, nil, ErrDepositAlreadyPlaced
	}
	if !isWholePositive(amount) || amount.LessThan(a.DepositRequired) {
		return nil, nil, fmt.Errorf("%w: deposit %s below required %s", ErrInvalidAmount, amount, a.DepositRequired)
	}

	d := model.Deposit{AuctionID: auctionID, Bidder: bidder, Amount: amount, PlacedAt: now}
	cs := &ChangeSet{Deposits: []model.Deposit{d}}
	if a.State != cur.State {
		cs.Auctions = append(cs.Auctions, a)
	}
	return &d, cs, nil
}

// PlaceBid 出价；若已有领先者，退还其出价（扣除罚金）到待提现余额
func (s *auctionService) PlaceBid(ctx context.Context, caller string, auctionID uint64, amount decimal.Decimal) (*BidResult, error) {
	bidder, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cur, err := s.getAuction(auctionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	now := s.clock.Now()
	a := *cur
	if err := openForBidding(&a, now); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if bidder == a.Seller {
		s.mu.Unlock()
		return nil, ErrSellerCannotBid
	}
	if a.DepositRequired.IsPositive() {
		if _, ok := s.deposits[auctionID][bidder]; !ok {
			s.mu.Unlock()
			return nil, ErrDepositMissing
		}
	}
	if !isWholePositive(amount) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if err := s.validator.Check(&a, s.settings, amount); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	cs := &ChangeSet{}
	var events []model.Event
	penalty := decimal.Zero
	if a.HasBids() {
		prev, prevAmount := a.HighestBidder, a.CurrentBid
		penalty = percentOf(prevAmount, s.settings.OutbidPenaltyPct)
		cs.credit(prev, prevAmount.Sub(penalty))
		cs.FeePoolDelta = penalty
		if penalty.IsPositive() {
			events = append(events, newEvent(model.EventOutbidPenalty, auctionID, model.OutbidPenaltyPayload{
				AuctionID: auctionID, Bidder: prev, PenaltyAmount: penalty,
			}, now))
		}
	}

	a.CurrentBid = amount
	a.HighestBidder = bidder
	res, bidEvents := s.recordBid(cs, &a, bidder, model.BidKindPlace, now)
	res.Penalty = penalty
	events = append(events, bidEvents...)

	if err := s.commit(ctx, cs); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	utils.Logger.Info("出价成功",
		zap.Uint64("auction_id", auctionID),
		zap.String("bidder", bidder),
		zap.String("amount", amount.String()),
		zap.String("penalty", penalty.String()),
		zap.Bool("extended", res.Extended))
	publish(ctx, s.notifier, events)
	return res, nil
}

// IncreaseBid 当前领先者追加出价，不收罚金，不校验加价幅度
func (s *auctionService) IncreaseBid(ctx context.Context, caller string, auctionID uint64, added decimal.Decimal) (*BidResult, error) {
	bidder, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cur, err := s.getAuction(auctionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	now := s.clock.Now()
	a := *cur
	if err := openForBidding(&a, now); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !a.HasBids() || a.HighestBidder != bidder {
		s.mu.Unlock()
		return nil, ErrNotHighestBidder
	}
	if !isWholePositive(added) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, added)
	}

	cs := &ChangeSet{}
	a.CurrentBid = a.CurrentBid.Add(added)
	res, events := s.recordBid(cs, &a, bidder, model.BidKindIncrease, now)
	res.Penalty = decimal.Zero

	if err := s.commit(ctx, cs); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	utils.Logger.Info("追加出价成功",
		zap.Uint64("auction_id", auctionID),
		zap.String("bidder", bidder),
		zap.String("added", added.String()),
		zap.String("current_bid", a.CurrentBid.String()))
	publish(ctx, s.notifier, events)
	return res, nil
}

// recordBid 追加出价记录并执行防狙击，调用方已更新CurrentBid/HighestBidder
func (s *auctionService) recordBid(cs *ChangeSet, a *model.Auction, bidder string, kind model.BidKind, now time.Time) (*BidResult, []model.Event) {
	a.BidCount++
	bid := model.Bid{
		ID:        s.history.nextID(),
		AuctionID: a.ID,
		Bidder:    bidder,
		Amount:    a.CurrentBid,
		Kind:      kind,
		Timestamp: now,
	}
	cs.Bids = append(cs.Bids, bid)

	var events []model.Event
	oldEnd := a.EndTime
	newEnd, extended := s.antiSnipe.Apply(now, a.EndTime, s.settings)
	if extended {
		a.EndTime = newEnd
	}
	cs.Auctions = append(cs.Auctions, *a)

	next := s.validator.Breakdown(a, s.settings)
	events = append(events, newEvent(model.EventBidPlaced, a.ID, model.BidPlacedPayload{
		AuctionID:  a.ID,
		Bidder:     bidder,
		Amount:     a.CurrentBid,
		NewMinimum: next.MinBidRequired,
		BidCount:   a.BidCount,
		Kind:       kind,
	}, now))
	if extended {
		events = append(events, newEvent(model.EventAuctionExtended, a.ID, model.AuctionExtendedPayload{
			AuctionID:        a.ID,
			NewEndTime:       newEnd,
			ExtensionSeconds: int64(newEnd.Sub(oldEnd) / time.Second),
		}, now))
	}

	return &BidResult{Auction: *a, Bid: bid, NextMin: next, Extended: extended}, events
}

// EndAuction 结束拍卖（任何人可调用）；每个拍卖只能结算一次
func (s *auctionService) EndAuction(ctx context.Context, caller string, auctionID uint64) (*model.Auction, error) {
	s.mu.Lock()
	cur, err := s.getAuction(auctionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if cur.State.Finalized() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyFinalized, cur.State)
	}
	now := s.clock.Now()
	if now.Before(cur.EndTime) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: ends at %s", ErrNotYetEnded, cur.EndTime.Format(time.RFC3339))
	}

	a := *cur
	a.FinalizedAt = &now
	cs := &ChangeSet{}
	payload := model.AuctionEndedPayload{AuctionID: a.ID}
	switch {
	case !a.HasBids():
		a.State = model.AuctionStateEndedUnsold
	case a.CurrentBid.LessThan(a.ReservePrice):
		// 未达保留价不是被超越，全额退还
		a.State = model.AuctionStateEndedUnsold
		cs.credit(a.HighestBidder, a.CurrentBid)
	default:
		a.State = model.AuctionStateEndedSold
		fee := percentOf(a.CurrentBid, s.settings.PlatformFeePct)
		cs.credit(a.Seller, a.CurrentBid.Sub(fee))
		cs.FeePoolDelta = fee
		amount := a.CurrentBid
		payload.Winner = a.HighestBidder
		payload.Amount = &amount
	}
	payload.Outcome = a.State
	cs.Auctions = append(cs.Auctions, a)
	s.releaseDeposits(cs, a.ID)

	if err := s.commit(ctx, cs); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	utils.Logger.Info("拍卖结算完成",
		zap.Uint64("auction_id", a.ID),
		zap.String("outcome", string(a.State)),
		zap.String("winner", payload.Winner),
		zap.String("current_bid", a.CurrentBid.String()),
		zap.String("caller", caller))
	publish(ctx, s.notifier, []model.Event{newEvent(model.EventAuctionEnded, a.ID, payload, now)})
	return &a, nil
}

// CancelAuction 取消尚无出价的拍卖（卖家或运营方）
func (s *auctionService) CancelAuction(ctx context.Context, caller string, auctionID uint64) (*model.Auction, error) {
	callerAddr, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cur, err := s.getAuction(auctionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if callerAddr != cur.Seller && callerAddr != s.settings.Operator {
		s.mu.Unlock()
		return nil, ErrNotSeller
	}
	if cur.State.Finalized() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyFinalized, cur.State)
	}
	if cur.BidCount > 0 {
		s.mu.Unlock()
		return nil, ErrHasBids
	}

	now := s.clock.Now()
	a := *cur
	a.State = model.AuctionStateCancelled
	a.FinalizedAt = &now
	cs := &ChangeSet{Auctions: []model.Auction{a}}
	s.releaseDeposits(cs, a.ID)
	if err := s.commit(ctx, cs); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	utils.Logger.Info("拍卖已取消", zap.Uint64("auction_id", a.ID), zap.String("caller", callerAddr))
	publish(ctx, s.notifier, []model.Event{newEvent(model.EventAuctionCanceled, a.ID, model.AuctionEndedPayload{
		AuctionID: a.ID, Outcome: a.State,
	}, now)})
	return &a, nil
}

// releaseDeposits 终态时把未释放的保证金转入各自的待提现余额
func (s *auctionService) releaseDeposits(cs *ChangeSet, auctionID uint64) {
	deps := s.deposits[auctionID]
	bidders := make([]string, 0, len(deps))
	for b := range deps {
		bidders = append(bidders, b)
	}
	sort.Strings(bidders)
	for _, b := range bidders {
		d := deps[b]
		if d.Released {
			continue
		}
		d.Released = true
		cs.Deposits = append(cs.Deposits, d)
		cs.credit(d.Bidder, d.Amount)
	}
}

// Withdraw 提取全部待提现余额：先清零并提交，再在锁外转账。
// 转账过程中重入的Withdraw只会看到零余额。
func (s *auctionService) Withdraw(ctx context.Context, caller string) (*WithdrawResult, error) {
	addr, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	amount := s.ledger.Balance(addr)
	if !amount.IsPositive() {
		s.mu.Unlock()
		return nil, ErrNoFundsToWithdraw
	}
	cs := &ChangeSet{}
	cs.credit(addr, amount.Neg())
	if err := s.commit(ctx, cs); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	txHash, err := s.payer.Pay(ctx, addr, amount)
	if err != nil {
		if errors.Is(err, ErrPayoutNotExecuted) {
			s.restoreBalance(ctx, addr, amount)
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		utils.Logger.Error("提现交易状态未知，余额不恢复，需按交易哈希对账",
			zap.String("address", addr), zap.String("amount", amount.String()), zap.String("tx_hash", txHash), zap.Error(err))
		return nil, fmt.Errorf("%w: tx %s: %v", ErrTransferUnconfirmed, txHash, err)
	}

	now := s.clock.Now()
	utils.Logger.Info("提现成功", zap.String("address", addr), zap.String("amount", amount.String()), zap.String("tx_hash", txHash))
	publish(ctx, s.notifier, []model.Event{newEvent(model.EventFundsWithdrawn, 0, model.FundsWithdrawnPayload{
		Address: addr, Amount: amount, TxHash: txHash,
	}, now)})
	return &WithdrawResult{Address: addr, Amount: amount, TxHash: txHash}, nil
}

// restoreBalance 转账失败时恢复余额，相当于整笔提现回滚
func (s *auctionService) restoreBalance(ctx context.Context, addr string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := &ChangeSet{}
	cs.credit(addr, amount)
	if err := s.commit(context.WithoutCancel(ctx), cs); err != nil {
		utils.Logger.Error("恢复待提现余额失败，需人工对账",
			zap.String("address", addr), zap.String("amount", amount.String()), zap.Error(err))
	}
}

// -------------- 只读查询 --------------
// GetAuction 查询拍卖（返回副本，状态按当前时间惰性求值）
func (s *auctionService) GetAuction(ctx context.Context, auctionID uint64) (*model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, err := s.getAuction(auctionID)
	if err != nil {
		return nil, err
	}
	a := *cur
	a.State = effectiveState(&a, s.clock.Now())
	return &a, nil
}

// ListAuctions 按ID升序分页查询
func (s *auctionService) ListAuctions(ctx context.Context, req ListAuctionsReq) ([]model.Auction, int, error) {
	var seller string
	if req.Seller != "" {
		var err error
		if seller, err = NormalizeAddress(req.Seller); err != nil {
			return nil, 0, err
		}
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	s.mu.RLock()
	now := s.clock.Now()
	matched := make([]model.Auction, 0, len(s.auctions))
	for _, cur := range s.auctions {
		a := *cur
		a.State = effectiveState(&a, now)
		if req.State != "" && a.State != req.State {
			continue
		}
		if seller != "" && a.Seller != seller {
			continue
		}
		matched = append(matched, a)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	offset := (req.Page - 1) * req.PageSize
	if offset >= total {
		return []model.Auction{}, total, nil
	}
	end := offset + req.PageSize
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// GetMinBidInfo 下一口最低出价明细
func (s *auctionService) GetMinBidInfo(ctx context.Context, auctionID uint64) (MinBidInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, err := s.getAuction(auctionID)
	if err != nil {
		return MinBidInfo{}, err
	}
	return s.validator.Breakdown(a, s.settings), nil
}

// GetBidHistory 出价历史（按接受顺序）
func (s *auctionService) GetBidHistory(ctx context.Context, auctionID uint64) ([]model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.getAuction(auctionID); err != nil {
		return nil, err
	}
	return s.history.List(auctionID), nil
}

// GetPendingWithdrawal 查询待提现余额
func (s *auctionService) GetPendingWithdrawal(ctx context.Context, addr string) (decimal.Decimal, error) {
	a, err := NormalizeAddress(addr)
	if err != nil {
		return decimal.Zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Balance(a), nil
}

// IsActive 当前是否可出价
func (s *auctionService) IsActive(ctx context.Context, auctionID uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, err := s.getAuction(auctionID)
	if err != nil {
		return false, err
	}
	a := *cur
	return openForBidding(&a, s.clock.Now()) == nil, nil
}

// TimeRemaining 距结束剩余时间，已结束或已到期返回0
func (s *auctionService) TimeRemaining(ctx context.Context, auctionID uint64) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, err := s.getAuction(auctionID)
	if err != nil {
		return 0, err
	}
	if a.State.Finalized() {
		return 0, nil
	}
	left := a.EndTime.Sub(s.clock.Now())
	if left < 0 {
		return 0, nil
	}
	return left, nil
}
