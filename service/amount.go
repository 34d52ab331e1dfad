package service

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// percentOf 按百分比计算金额，向下取整到最小货币单位
func percentOf(amount decimal.Decimal, pct uint64) decimal.Decimal {
	if pct == 0 || amount.IsZero() {
		return decimal.Zero
	}
	q, _ := amount.Mul(decimal.NewFromInt(int64(pct))).QuoRem(hundred, 0)
	return q
}

// isWholePositive 金额必须为正整数（最小货币单位）
func isWholePositive(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(0))
}

// isWholeNonNegative 金额必须为非负整数
func isWholeNonNegative(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Truncate(0))
}

// NormalizeAddress 校验并转换为EIP-55校验和格式
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	a := common.HexToAddress(addr)
	if a == (common.Address{}) {
		return "", fmt.Errorf("%w: zero address", ErrInvalidAddress)
	}
	return a.Hex(), nil
}
