package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"nft_auction/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(n int64) string {
	return common.BigToAddress(big.NewInt(n)).Hex()
}

var (
	operator = addr(1)
	seller   = addr(2)
	alice    = addr(3)
	bob      = addr(4)
	carol    = addr(5)
)

// eth 以ETH表示的金额转换为wei
func eth(s string) decimal.Decimal {
	return decimal.RequireFromString(s).Shift(18)
}

func assertAmount(t *testing.T, want, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want.String(), got.String(), msgAndArgs...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type payment struct {
	to     string
	amount decimal.Decimal
}

// errNotSent 交易确定没有广播
var errNotSent = fmt.Errorf("%w: nonce too low", ErrPayoutNotExecuted)

type fakePayer struct {
	mu   sync.Mutex
	fail error
	// failAfterSend 记录转账后仍返回错误，模拟广播后等待回执失败
	failAfterSend error
	paid          []payment
	onPay         func()
}

func (p *fakePayer) Pay(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	if p.onPay != nil {
		p.onPay()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return "", p.fail
	}
	p.paid = append(p.paid, payment{to: to, amount: amount})
	if p.failAfterSend != nil {
		return "0xabc", p.failAfterSend
	}
	return "0xabc", nil
}

func (p *fakePayer) payments() []payment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]payment(nil), p.paid...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, ev model.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) ofType(t model.EventType) []model.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

var errStoreDown = errors.New("store down")

// failingStore 打开fail后所有Commit失败
type failingStore struct {
	*MemoryStore
	mu   sync.Mutex
	fail bool
}

func (f *failingStore) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *failingStore) Commit(ctx context.Context, cs *ChangeSet) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.MemoryStore.Commit(ctx, cs)
}

func defaultSettings() model.AdminSettings {
	return model.AdminSettings{
		Operator:           operator,
		PlatformFeePct:     2,
		AntiSnipeWindow:    300,
		AntiSnipeExtension: 300,
		MinIncrementPct:    5,
		MinIncrementAbs:    eth("0.005"),
		OutbidPenaltyPct:   1,
	}
}

type testEngine struct {
	svc      *auctionService
	clock    *fakeClock
	payer    *fakePayer
	notifier *recordingNotifier
	store    Store
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	return newTestEngineWithStore(t, NewMemoryStore())
}

func newTestEngineWithStore(t *testing.T, store Store) *testEngine {
	t.Helper()
	e := &testEngine{
		clock:    newFakeClock(),
		payer:    &fakePayer{},
		notifier: &recordingNotifier{},
		store:    store,
	}
	svc, err := NewAuctionService(context.Background(), Options{
		Store:    store,
		Notifier: e.notifier,
		Payer:    e.payer,
		Clock:    e.clock,
		Defaults: defaultSettings(),
	})
	require.NoError(t, err)
	e.svc = svc.(*auctionService)
	return e
}

// createAuction 立即开始、1小时、起拍1 ETH的拍卖
func (e *testEngine) createAuction(t *testing.T, mutate ...func(*CreateAuctionReq)) *model.Auction {
	t.Helper()
	req := CreateAuctionReq{
		Seller:           seller,
		ExternalID:       "nft-1",
		StartingPrice:    eth("1"),
		ReservePrice:     eth("1"),
		DurationSeconds:  3600,
		StartImmediately: true,
	}
	for _, m := range mutate {
		m(&req)
	}
	a, err := e.svc.CreateAuction(context.Background(), seller, req)
	require.NoError(t, err)
	return a
}

func (e *testEngine) balance(t *testing.T, who string) decimal.Decimal {
	t.Helper()
	b, err := e.svc.GetPendingWithdrawal(context.Background(), who)
	require.NoError(t, err)
	return b
}
