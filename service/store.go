package service

import (
	"context"
	"sort"
	"sync"

	"nft_auction/model"

	"github.com/shopspring/decimal"
)

// Store 引擎状态持久化。Commit必须整体成功或整体失败。
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Commit(ctx context.Context, cs *ChangeSet) error
}

// Snapshot 启动时恢复引擎所需的全部状态
type Snapshot struct {
	Auctions []model.Auction
	Bids     []model.Bid // 按ID升序
	Deposits []model.Deposit
	Balances []model.LedgerBalance
	FeePool  decimal.Decimal
	Settings *model.AdminSettings // nil表示尚未初始化
}

// LedgerDelta 账本余额增量
type LedgerDelta struct {
	Address string
	Delta   decimal.Decimal
}

// ChangeSet 一次变更操作产生的全部写入
type ChangeSet struct {
	Auctions     []model.Auction
	Bids         []model.Bid
	Deposits     []model.Deposit
	LedgerDeltas []LedgerDelta
	FeePoolDelta decimal.Decimal
	Settings     *model.AdminSettings
}

// credit 合并同一地址的余额增量
func (cs *ChangeSet) credit(addr string, delta decimal.Decimal) {
	if delta.IsZero() {
		return
	}
	for i := range cs.LedgerDeltas {
		if cs.LedgerDeltas[i].Address == addr {
			cs.LedgerDeltas[i].Delta = cs.LedgerDeltas[i].Delta.Add(delta)
			return
		}
	}
	cs.LedgerDeltas = append(cs.LedgerDeltas, LedgerDelta{Address: addr, Delta: delta})
}

// Empty 是否没有任何写入
func (cs *ChangeSet) Empty() bool {
	return len(cs.Auctions) == 0 && len(cs.Bids) == 0 && len(cs.Deposits) == 0 &&
		len(cs.LedgerDeltas) == 0 && cs.FeePoolDelta.IsZero() && cs.Settings == nil
}

// MemoryStore 内存存储，用于测试和无数据库运行
type MemoryStore struct {
	mu       sync.Mutex
	auctions map[uint64]model.Auction
	bids     []model.Bid
	deposits map[depositKey]model.Deposit
	balances map[string]decimal.Decimal
	feePool  decimal.Decimal
	settings *model.AdminSettings
	commits  int
}

type depositKey struct {
	auctionID uint64
	bidder    string
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[uint64]model.Auction),
		deposits: make(map[depositKey]model.Deposit),
		balances: make(map[string]decimal.Decimal),
	}
}

// Load 实现Store
func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{FeePool: m.feePool}
	for _, a := range m.auctions {
		snap.Auctions = append(snap.Auctions, a)
	}
	sort.Slice(snap.Auctions, func(i, j int) bool { return snap.Auctions[i].ID < snap.Auctions[j].ID })
	snap.Bids = append(snap.Bids, m.bids...)
	for _, d := range m.deposits {
		snap.Deposits = append(snap.Deposits, d)
	}
	for addr, amt := range m.balances {
		snap.Balances = append(snap.Balances, model.LedgerBalance{Address: addr, Amount: amt})
	}
	if m.settings != nil {
		s := *m.settings
		snap.Settings = &s
	}
	return snap, nil
}

// Commit 实现Store
func (m *MemoryStore) Commit(ctx context.Context, cs *ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range cs.Auctions {
		m.auctions[a.ID] = a
	}
	m.bids = append(m.bids, cs.Bids...)
	for _, d := range cs.Deposits {
		m.deposits[depositKey{d.AuctionID, d.Bidder}] = d
	}
	for _, ld := range cs.LedgerDeltas {
		next := m.balances[ld.Address].Add(ld.Delta)
		if next.IsZero() {
			delete(m.balances, ld.Address)
			continue
		}
		m.balances[ld.Address] = next
	}
	m.feePool = m.feePool.Add(cs.FeePoolDelta)
	if cs.Settings != nil {
		s := *cs.Settings
		m.settings = &s
	}
	m.commits++
	return nil
}

// Commits 已提交次数
func (m *MemoryStore) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}
