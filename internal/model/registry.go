package model

// AllModels 开发环境 AutoMigrate 的表, 与 migrations/ 下的 SQL 保持一致。
// LedgerEvent 与 OutboxMessage 在同一事务里写入, Account 是托管余额。
func AllModels() []interface{} {
	return []interface{}{
		&Account{},
		&LedgerEvent{},
		&OutboxMessage{},
	}
}
