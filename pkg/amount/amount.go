// Package amount 在 uint256 (账本内部) 与 decimal (API / 数据库) 之间转换
package amount

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrNegative   = errors.New("amount is negative")
	ErrFractional = errors.New("amount must be an integer in the smallest unit")
	ErrOverflow   = errors.New("amount overflows 256 bits")
)

// ToDecimal 最小单位整数转 decimal
func ToDecimal(x *uint256.Int) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.ToBig(), 0)
}

// FromDecimal decimal 转最小单位整数, 拒绝负数、小数和溢出
func FromDecimal(d decimal.Decimal) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegative
	}
	if !d.IsInteger() {
		return nil, ErrFractional
	}
	v, overflow := uint256.FromBig(d.BigInt())
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

// Parse 解析十进制字符串
func Parse(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// Float 用于指标上报, 允许精度损失
func Float(x *uint256.Int) float64 {
	return ToDecimal(x).InexactFloat64()
}
