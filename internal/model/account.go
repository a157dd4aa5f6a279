package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 托管账户表, 每个 (持有人, 资产) 一行
// 核心设计: 划转时 SELECT ... FOR UPDATE 行锁, Version 记录变更次数
type Account struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Holder    string          `gorm:"type:varchar(42);not null;uniqueIndex:idx_holder_asset" json:"holder"`
	Asset     string          `gorm:"type:varchar(42);not null;uniqueIndex:idx_holder_asset" json:"asset"`
	Balance   decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0" json:"balance"` // 最小单位
	Version   uint64          `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
