package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nft_auction/model"
	"nft_auction/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQLStore 基于gorm的引擎状态存储
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore 创建存储
func NewMySQLStore(db *gorm.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// AutoMigrate 迁移表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Auction{},
		&model.Bid{},
		&model.Deposit{},
		&model.LedgerBalance{},
		&model.FeePoolBalance{},
		&model.AdminSettings{},
	)
}

// Load 实现service.Store
func (s *MySQLStore) Load(ctx context.Context) (*service.Snapshot, error) {
	db := s.db.WithContext(ctx)
	snap := &service.Snapshot{}

	if err := db.Order("id ASC").Find(&snap.Auctions).Error; err != nil {
		return nil, fmt.Errorf("load auctions: %w", err)
	}
	if err := db.Order("id ASC").Find(&snap.Bids).Error; err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}
	if err := db.Find(&snap.Deposits).Error; err != nil {
		return nil, fmt.Errorf("load deposits: %w", err)
	}
	if err := db.Where("amount <> 0").Find(&snap.Balances).Error; err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}

	var pool model.FeePoolBalance
	err := db.Where("id = ?", model.FeePoolRowID).First(&pool).Error
	switch {
	case err == nil:
		snap.FeePool = pool.Amount
	case errors.Is(err, gorm.ErrRecordNotFound):
		snap.FeePool = decimal.Zero
	default:
		return nil, fmt.Errorf("load fee pool: %w", err)
	}

	var settings model.AdminSettings
	err = db.Where("id = ?", model.SettingsRowID).First(&settings).Error
	switch {
	case err == nil:
		snap.Settings = &settings
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return snap, nil
}

// Commit 实现service.Store，整个变更集在一个事务内提交
func (s *MySQLStore) Commit(ctx context.Context, cs *service.ChangeSet) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyChangeSet(tx, cs, now)
	})
}

// applyChangeSet 把变更集映射为写入语句，tx由调用方提供
func applyChangeSet(tx *gorm.DB, cs *service.ChangeSet, now time.Time) error {
	for i := range cs.Auctions {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cs.Auctions[i]).Error; err != nil {
			return fmt.Errorf("save auction %d: %w", cs.Auctions[i].ID, err)
		}
	}

	if len(cs.Bids) > 0 {
		if err := tx.Create(&cs.Bids).Error; err != nil {
			return fmt.Errorf("append bids: %w", err)
		}
	}

	for i := range cs.Deposits {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cs.Deposits[i]).Error; err != nil {
			return fmt.Errorf("save deposit: %w", err)
		}
	}

	// 余额使用增量更新，与并发中的提现互不覆盖
	for _, ld := range cs.LedgerDeltas {
		row := model.LedgerBalance{Address: ld.Address, Amount: ld.Delta, UpdatedAt: now}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"amount":     gorm.Expr("amount + ?", ld.Delta),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("credit %s: %w", ld.Address, err)
		}
	}

	if !cs.FeePoolDelta.IsZero() {
		row := model.FeePoolBalance{ID: model.FeePoolRowID, Amount: cs.FeePoolDelta, UpdatedAt: now}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"amount":     gorm.Expr("amount + ?", cs.FeePoolDelta),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("credit fee pool: %w", err)
		}
	}

	if cs.Settings != nil {
		settings := *cs.Settings
		settings.ID = model.SettingsRowID
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&settings).Error; err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	return nil
}
