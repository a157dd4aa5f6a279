package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"token-vesting/internal/model"
	"token-vesting/pkg/amount"
	"token-vesting/pkg/database"
	"token-vesting/pkg/errno"
)

// Accounts 基于数据库账户表的托管实现, escrow 是托管账户的持有人地址。
// ctx 带事务时加入该事务 (账本事件与划转一起提交)。
type Accounts struct {
	db     *gorm.DB
	escrow common.Address
}

func NewAccounts(db *gorm.DB, escrow common.Address) *Accounts {
	return &Accounts{db: db, escrow: escrow}
}

func (a *Accounts) Pull(ctx context.Context, asset, from common.Address, amt *uint256.Int) error {
	return a.transfer(ctx, asset, from, a.escrow, amt)
}

func (a *Accounts) Push(ctx context.Context, asset, to common.Address, amt *uint256.Int) error {
	return a.transfer(ctx, asset, a.escrow, to, amt)
}

func (a *Accounts) BalanceOf(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	return a.Balance(ctx, asset, a.escrow)
}

// Balance 任意持有人的余额, 没有账户时为 0
func (a *Accounts) Balance(ctx context.Context, asset, holder common.Address) (*uint256.Int, error) {
	var acc model.Account
	err := database.Conn(ctx, a.db).
		Where("holder = ? AND asset = ?", holder.Hex(), asset.Hex()).
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, errno.ErrDatabase.WithMessage(err.Error())
	}
	return amount.FromDecimal(acc.Balance)
}

// Deposit 给持有人入金 (外部充值到账后调用)
func (a *Accounts) Deposit(ctx context.Context, asset, holder common.Address, amt *uint256.Int) error {
	return database.Transaction(ctx, a.db, func(tx *gorm.DB) error {
		acc, err := lockAccount(tx, holder, asset)
		if err != nil {
			return err
		}
		acc.Balance = acc.Balance.Add(amount.ToDecimal(amt))
		acc.Version++
		return tx.Save(acc).Error
	})
}

func (a *Accounts) transfer(ctx context.Context, asset, from, to common.Address, amt *uint256.Int) error {
	delta := amount.ToDecimal(amt)
	return database.Transaction(ctx, a.db, func(tx *gorm.DB) error {
		// 固定加锁顺序, 避免两个方向相反的划转互相等待
		first, second := from, to
		if first.Hex() > second.Hex() {
			first, second = second, first
		}
		locked := make(map[common.Address]*model.Account, 2)
		for _, holder := range []common.Address{first, second} {
			acc, err := lockAccount(tx, holder, asset)
			if err != nil {
				return err
			}
			locked[holder] = acc
		}

		src, dst := locked[from], locked[to]
		if src.Balance.LessThan(delta) {
			return errno.ErrInsufficientBalance.WithMessage(
				fmt.Sprintf("%s has %s, needs %s", from.Hex(), src.Balance.String(), delta.String()))
		}
		src.Balance = src.Balance.Sub(delta)
		src.Version++
		if err := tx.Save(src).Error; err != nil {
			return errno.ErrDatabase.WithMessage(err.Error())
		}
		dst.Balance = dst.Balance.Add(delta)
		dst.Version++
		if err := tx.Save(dst).Error; err != nil {
			return errno.ErrDatabase.WithMessage(err.Error())
		}
		return nil
	})
}

// lockAccount 悲观锁读取账户, 不存在时创建空账户
func lockAccount(tx *gorm.DB, holder, asset common.Address) (*model.Account, error) {
	var acc model.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("holder = ? AND asset = ?", holder.Hex(), asset.Hex()).
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acc = model.Account{Holder: holder.Hex(), Asset: asset.Hex(), Balance: decimal.Zero}
		if err := tx.Create(&acc).Error; err != nil {
			return nil, errno.ErrDatabase.WithMessage(err.Error())
		}
		return &acc, nil
	}
	if err != nil {
		return nil, errno.ErrDatabase.WithMessage(err.Error())
	}
	return &acc, nil
}
