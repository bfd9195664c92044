package whirlpool

import (
	"math"
	"math/big"
)

const tickBase = 1.0001

// DecimalAdjustment returns the factor that converts a raw-unit price into a
// human price. The deployed system applies the absolute decimal difference
// regardless of which side has more decimals; kept bit-for-bit compatible.
func DecimalAdjustment(decimalsA, decimalsB uint8) float64 {
	diff := int(decimalsB) - int(decimalsA)
	if diff < 0 {
		diff = -diff
	}
	return math.Pow10(diff)
}

// TickToSqrtPrice returns sqrt(1.0001)^tick in raw units.
func TickToSqrtPrice(tick int32) float64 {
	return math.Pow(tickBase, float64(tick)/2)
}

// TickToPrice returns the human price at a tick boundary.
func TickToPrice(tick int32, decimalsA, decimalsB uint8) float64 {
	sqrtP := TickToSqrtPrice(tick)
	return sqrtP * sqrtP * DecimalAdjustment(decimalsA, decimalsB)
}

// SqrtPriceX64ToSqrtPrice converts a Q64.64 fixed-point sqrt price into a
// raw-unit float.
func SqrtPriceX64ToSqrtPrice(sqrtPriceX64 *big.Int) float64 {
	f, _ := new(big.Float).SetInt(sqrtPriceX64).Float64()
	return f / math.Pow(2, 64)
}

// SqrtPriceX64ToPrice returns the current human price of token A in token B.
func SqrtPriceX64ToPrice(sqrtPriceX64 *big.Int, decimalsA, decimalsB uint8) float64 {
	sqrtP := SqrtPriceX64ToSqrtPrice(sqrtPriceX64)
	return sqrtP * sqrtP * DecimalAdjustment(decimalsA, decimalsB)
}

// TokenAmounts returns the human token quantities currently backing a
// position: all in A below the range, all in B above it, a mix in range.
func TokenAmounts(liquidity *big.Int, tickCurrent, tickLower, tickUpper int32, sqrtPriceX64 *big.Int, decimalsA, decimalsB uint8) (amountA, amountB float64) {
	l, _ := new(big.Float).SetInt(liquidity).Float64()
	sqrtPL := TickToSqrtPrice(tickLower)
	sqrtPU := TickToSqrtPrice(tickUpper)
	sqrtP := SqrtPriceX64ToSqrtPrice(sqrtPriceX64)

	var rawA, rawB float64
	switch {
	case tickCurrent < tickLower:
		rawA = l * (1/sqrtPL - 1/sqrtPU)
	case tickCurrent >= tickUpper:
		rawB = l * (sqrtPU - sqrtPL)
	default:
		// Clamp against tick/sqrt-price drift inside the range.
		if sqrtP < sqrtPL {
			sqrtP = sqrtPL
		}
		if sqrtP > sqrtPU {
			sqrtP = sqrtPU
		}
		rawA = l * (1/sqrtP - 1/sqrtPU)
		rawB = l * (sqrtP - sqrtPL)
	}

	amountA = rawA / math.Pow10(int(decimalsA))
	amountB = rawB / math.Pow10(int(decimalsB))
	return amountA, amountB
}
