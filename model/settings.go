package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdminSettings 全局拍卖参数（仅运营方可修改）
type AdminSettings struct {
	ID                 uint8           `gorm:"primaryKey;comment:固定为1" json:"-"`
	Operator           string          `gorm:"size:42;comment:运营方地址" json:"operator"`
	PlatformFeePct     uint64          `gorm:"comment:平台手续费百分比(0-100)" json:"platform_fee_pct"`
	AntiSnipeWindow    int64           `gorm:"comment:防狙击窗口（秒）" json:"anti_snipe_window"`
	AntiSnipeExtension int64           `gorm:"comment:防狙击延长（秒）" json:"anti_snipe_extension"`
	MinIncrementPct    uint64          `gorm:"comment:全局最小加价百分比" json:"min_increment_pct"`
	MinIncrementAbs    decimal.Decimal `gorm:"type:decimal(65,0);comment:全局最小绝对加价" json:"min_increment_abs"`
	OutbidPenaltyPct   uint64          `gorm:"comment:被超越罚金百分比(<=10)" json:"outbid_penalty_pct"`
	UpdatedAt          time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (s *AdminSettings) TableName() string {
	return "admin_settings"
}

// SettingsRowID 全局参数固定行ID
const SettingsRowID uint8 = 1

// Window 防狙击窗口
func (s AdminSettings) Window() time.Duration {
	return time.Duration(s.AntiSnipeWindow) * time.Second
}

// Extension 防狙击延长时长
func (s AdminSettings) Extension() time.Duration {
	return time.Duration(s.AntiSnipeExtension) * time.Second
}
