// Package money implements overflow-checked fixed-point arithmetic for
// token amounts. Amounts are int64 values in the token's smallest unit
// (8 decimal places), fees are expressed in basis points.
package money

import (
	"errors"
	"math/big"
)

const (
	// Units is the number of smallest units per whole token.
	Units int64 = 100_000_000

	// BasisPointsDivisor is the denominator for basis-point fees:
	// 10000 bp = 100%.
	BasisPointsDivisor int64 = 10_000
)

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrInvalidFee         = errors.New("fee basis points out of range")
	ErrInvalidDivisor     = errors.New("discount divisor must be at least 1")
)

// CheckedAdd returns a+b, failing instead of wrapping.
func CheckedAdd(a, b int64) (int64, error) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, ErrArithmeticOverflow
	}
	return c, nil
}

// CheckedSub returns a-b, failing instead of wrapping.
func CheckedSub(a, b int64) (int64, error) {
	c := a - b
	if (b < 0 && c < a) || (b > 0 && c > a) {
		return 0, ErrArithmeticOverflow
	}
	return c, nil
}

// CheckedMul returns a*b, failing instead of wrapping.
func CheckedMul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	c := a * b
	if c/b != a {
		return 0, ErrArithmeticOverflow
	}
	return c, nil
}

// MulDiv returns a*b/den computed at full precision, so the
// intermediate product may exceed int64. Only a result that does not
// fit int64 overflows.
func MulDiv(a, b, den int64) (int64, error) {
	if den == 0 {
		return 0, ErrInvalidDivisor
	}
	product := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	product.Quo(product, big.NewInt(den))
	if !product.IsInt64() {
		return 0, ErrArithmeticOverflow
	}
	return product.Int64(), nil
}

// FromTokens converts a whole-token count to smallest units.
func FromTokens(tokens int64) (int64, error) {
	return CheckedMul(tokens, Units)
}

// ApplyFee splits amount into a net part and a fee of feeBp basis
// points. The fee rounds down and net+fee == amount always, so no
// value is created or lost by the split.
func ApplyFee(amount int64, feeBp uint32) (net int64, fee int64, err error) {
	if amount < 0 {
		return 0, 0, ErrNegativeAmount
	}
	if int64(feeBp) > BasisPointsDivisor {
		return 0, 0, ErrInvalidFee
	}
	raw, err := CheckedMul(amount, int64(feeBp))
	if err != nil {
		return 0, 0, err
	}
	fee = raw / BasisPointsDivisor
	return amount - fee, fee, nil
}

// BulkPrice prices count tickets bought together. Buying in bulk earns
// a linear discount up to discountDivisor tickets:
//
//	unitPrice * count * (divisor + 1 - count) / divisor
//
// A single ticket and batches beyond the divisor threshold pay full
// price. The discount never applies for count < 2.
func BulkPrice(unitPrice int64, count int, discountDivisor uint32) (int64, error) {
	if unitPrice < 0 {
		return 0, ErrNegativeAmount
	}
	if discountDivisor < 1 {
		return 0, ErrInvalidDivisor
	}
	if count < 0 {
		return 0, ErrNegativeAmount
	}
	full, err := CheckedMul(unitPrice, int64(count))
	if err != nil {
		return 0, err
	}
	if count < 2 || int64(count) > int64(discountDivisor) {
		return full, nil
	}
	discounted, err := CheckedMul(full, int64(discountDivisor)+1-int64(count))
	if err != nil {
		return 0, err
	}
	return discounted / int64(discountDivisor), nil
}
