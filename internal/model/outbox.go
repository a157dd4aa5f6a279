package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
)

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic     string    `gorm:"type:varchar(255);not null" json:"topic"`
	Key       string    `gorm:"type:varchar(255);not null;default:''" json:"key"` // 分区键, 同一个池的事件保持有序
	Payload   []byte    `gorm:"type:text;not null" json:"payload"`
	Status    string    `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SENT
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// CreateOutboxMessage 在业务事务中写入 Outbox 消息, payload 为已序列化的 JSON
func CreateOutboxMessage(tx *gorm.DB, topic, key string, payload []byte) error {
	msg := OutboxMessage{
		Topic:   topic,
		Key:     key,
		Payload: payload,
		Status:  OutboxPending,
	}
	return tx.Create(&msg).Error
}
