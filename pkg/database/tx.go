package database

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx 把事务放进 ctx, 下游仓储会复用同一个事务
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext 取出 ctx 中的事务
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// Conn ctx 带事务时用事务, 否则用 db
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// Transaction ctx 已在事务中时直接加入, 否则开启新事务
func Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx, ok := TxFromContext(ctx); ok {
		return fn(tx)
	}
	return db.WithContext(ctx).Transaction(fn)
}
