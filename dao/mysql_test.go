package dao

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"nft_auction/model"
	"nft_auction/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlRecorder 记录gorm生成的SQL，DryRun模式下同样会回调Trace
type sqlRecorder struct {
	mu    sync.Mutex
	stmts []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface { return r }

func (r *sqlRecorder) Info(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, _ := fc()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, sql)
}

func (r *sqlRecorder) statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stmts...)
}

// dryRunDB 不连接数据库，只生成SQL
func dryRunDB(t *testing.T) (*gorm.DB, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{}
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "root:pw@tcp(127.0.0.1:3306)/nft_auction?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               rec,
	})
	require.NoError(t, err)
	return db, rec
}

func TestApplyChangeSetStatements(t *testing.T) {
	db, rec := dryRunDB(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	settings := model.AdminSettings{Operator: "0x00000000000000000000000000000000000000aa", PlatformFeePct: 2}

	cs := &service.ChangeSet{
		Auctions: []model.Auction{{ID: 7, State: model.AuctionStateActive, EndTime: now}},
		Bids: []model.Bid{
			{ID: 1, AuctionID: 7, Amount: decimal.NewFromInt(100), Kind: model.BidKindPlace, Timestamp: now},
			{ID: 2, AuctionID: 7, Amount: decimal.NewFromInt(200), Kind: model.BidKindPlace, Timestamp: now},
		},
		Deposits: []model.Deposit{{AuctionID: 7, Bidder: "0x00000000000000000000000000000000000000bb", Amount: decimal.NewFromInt(10)}},
		LedgerDeltas: []service.LedgerDelta{
			{Address: "0x00000000000000000000000000000000000000bb", Delta: decimal.NewFromInt(99)},
			{Address: "0x00000000000000000000000000000000000000cc", Delta: decimal.NewFromInt(-50)},
		},
		FeePoolDelta: decimal.NewFromInt(1),
		Settings:     &settings,
	}
	require.NoError(t, applyChangeSet(db, cs, now))

	stmts := rec.statements()
	require.Len(t, stmts, 7)
	prefixes := []string{
		"INSERT INTO `auctions`",
		"INSERT INTO `auction_bids`",
		"INSERT INTO `auction_deposits`",
		"INSERT INTO `ledger_balances`",
		"INSERT INTO `ledger_balances`",
		"INSERT INTO `fee_pool`",
		"INSERT INTO `admin_settings`",
	}
	for i, p := range prefixes {
		assert.True(t, strings.HasPrefix(stmts[i], p), "statement %d: %s", i, stmts[i])
	}

	// 快照类数据整行覆盖
	assert.Contains(t, stmts[0], "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, stmts[2], "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, stmts[6], "ON DUPLICATE KEY UPDATE")
	// 出价只追加，两条合并为一次批量插入
	assert.NotContains(t, stmts[1], "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, stmts[1], "'100'")
	assert.Contains(t, stmts[1], "'200'")

	// 余额与费用池按增量累加，不覆盖
	assert.Contains(t, stmts[3], "`amount`=amount + '99'")
	assert.Contains(t, stmts[4], "`amount`=amount + '-50'")
	assert.Contains(t, stmts[5], "`amount`=amount + '1'")
}

func TestApplyChangeSetSkipsEmptyParts(t *testing.T) {
	db, rec := dryRunDB(t)
	cs := &service.ChangeSet{LedgerDeltas: []service.LedgerDelta{
		{Address: "0x00000000000000000000000000000000000000bb", Delta: decimal.NewFromInt(5)},
	}}
	require.NoError(t, applyChangeSet(db, cs, time.Now()))

	stmts := rec.statements()
	require.Len(t, stmts, 1)
	assert.True(t, strings.HasPrefix(stmts[0], "INSERT INTO `ledger_balances`"))
}

func TestLoadQueries(t *testing.T) {
	db, rec := dryRunDB(t)
	_, err := NewMySQLStore(db).Load(context.Background())
	require.NoError(t, err)

	stmts := rec.statements()
	require.Len(t, stmts, 6)
	assert.Contains(t, stmts[0], "FROM `auctions` ORDER BY id ASC")
	assert.Contains(t, stmts[1], "FROM `auction_bids` ORDER BY id ASC")
	assert.Contains(t, stmts[3], "FROM `ledger_balances` WHERE amount <> 0")
	assert.Contains(t, stmts[4], "FROM `fee_pool` WHERE id = 1")
	assert.Contains(t, stmts[5], "FROM `admin_settings` WHERE id = 1")
}
