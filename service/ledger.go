package service

import "github.com/shopspring/decimal"

// Ledger 待提现余额账本（拉取式支付）。
// 不自带锁，所有读写都在auctionService.mu保护下进行。
type Ledger struct {
	balances map[string]decimal.Decimal
}

// NewLedger 创建账本
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]decimal.Decimal)}
}

// Balance 查询待提现余额
func (l *Ledger) Balance(addr string) decimal.Decimal {
	return l.balances[addr]
}

// credit 增加余额；delta可为负（仅用于提现清零）
func (l *Ledger) credit(addr string, delta decimal.Decimal) {
	next := l.balances[addr].Add(delta)
	if next.IsZero() {
		delete(l.balances, addr)
		return
	}
	l.balances[addr] = next
}

// Total 所有待提现余额之和
func (l *Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range l.balances {
		total = total.Add(v)
	}
	return total
}

// FeePool 罚金与平台费累计池，仅运营方可提取
type FeePool struct {
	amount decimal.Decimal
}

// Balance 当前余额
func (f *FeePool) Balance() decimal.Decimal {
	return f.amount
}

func (f *FeePool) credit(delta decimal.Decimal) {
	f.amount = f.amount.Add(delta)
}
