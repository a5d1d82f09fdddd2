package math

import (
	"fmt"
	"math/big"
	"sync"
)

// BpsDenominator is the fixed denominator for basis-point ratios.
// 10000 bps == 100%.
const BpsDenominator int64 = 10_000

// MaxBps is the largest valid basis-point ratio.
const MaxBps int64 = 10_000

// Int128 is a pooled big.Int for intermediate products
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MulDivFloor computes floor(a * b / den) using int128 intermediates so the
// product a*b cannot overflow int64. All ratio arithmetic in the pool uses
// floor division; rounding loss stays in the pool, never paid out.
// Panics if den <= 0 — a non-positive denominator is a programming error.
func MulDivFloor(a, b, den int64) int64 {
	if den <= 0 {
		panic(fmt.Sprintf("MulDivFloor: non-positive denominator %d", den))
	}

	product := getInt128()
	product.Mul(big.NewInt(a), big.NewInt(b))

	quotient := getInt128()
	remainder := getInt128()
	quotient.QuoRem(product, big.NewInt(den), remainder)

	result := quotient.Int64()

	// QuoRem truncates toward zero; floor differs only for negative quotients
	// with a non-zero remainder.
	if quotient.Sign() < 0 && remainder.Sign() != 0 {
		result--
	}

	putInt128(product)
	putInt128(quotient)
	putInt128(remainder)

	return result
}

// ApplyBps computes floor(amount * bps / 10000).
func ApplyBps(amount, bps int64) int64 {
	return MulDivFloor(amount, bps, BpsDenominator)
}

// ValidBps reports whether bps is inside [0, 10000].
func ValidBps(bps int64) bool {
	return bps >= 0 && bps <= MaxBps
}
