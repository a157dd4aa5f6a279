package model

import "time"

// LedgerEvent 账本事件日志, 按 Seq 回放即可恢复账本
type LedgerEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Seq       uint64    `gorm:"not null;uniqueIndex" json:"seq"` // 唯一索引: 多实例并发写入时只有一个能成功
	Type      string    `gorm:"type:varchar(64);not null" json:"type"`
	PoolID    uint64    `gorm:"not null;default:0;index" json:"pool_id"`
	At        uint64    `gorm:"not null" json:"at"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	Checksum  string    `gorm:"type:varchar(64);not null" json:"checksum"` // blake3(payload)
	CreatedAt time.Time `json:"created_at"`
}

func (LedgerEvent) TableName() string {
	return "ledger_events"
}
