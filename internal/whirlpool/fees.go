package whirlpool

import (
	"context"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OutstandingFees holds a position's uncollected fee balances with their USD
// value at spot.
type OutstandingFees struct {
	AmountA    decimal.Decimal `json:"amountA"`
	AmountB    decimal.Decimal `json:"amountB"`
	AmountAUSD decimal.Decimal `json:"amountAUsd"`
	AmountBUSD decimal.Decimal `json:"amountBUsd"`
}

// TotalUSD returns the combined USD value of both sides.
func (f *OutstandingFees) TotalUSD() decimal.Decimal {
	return f.AmountAUSD.Add(f.AmountBUSD)
}

type priceSource interface {
	PriceUSD(ctx context.Context, mint string, at time.Time) decimal.Decimal
}

// FeesReader reads uncollected fee balances straight from the position
// account's owed fields.
type FeesReader struct {
	state  *StateProvider
	prices priceSource
	logger *zap.Logger
}

// NewFeesReader creates a new outstanding-fees reader.
func NewFeesReader(state *StateProvider, prices priceSource, logger *zap.Logger) *FeesReader {
	return &FeesReader{
		state:  state,
		prices: prices,
		logger: logger.Named("fees-reader"),
	}
}

// OutstandingFees returns the uncollected fee balances for a position,
// decimal-normalized and valued at current spot prices.
func (r *FeesReader) OutstandingFees(ctx context.Context, position solana.PublicKey) (*OutstandingFees, error) {
	snap, err := r.state.Snapshot(ctx, position)
	if err != nil {
		return nil, err
	}

	amountA := decimal.NewFromBigInt(new(big.Int).SetUint64(snap.Position.FeeOwedA), -int32(snap.DecimalsA))
	amountB := decimal.NewFromBigInt(new(big.Int).SetUint64(snap.Position.FeeOwedB), -int32(snap.DecimalsB))

	pxA := r.prices.PriceUSD(ctx, snap.Pool.MintA.String(), time.Time{})
	pxB := r.prices.PriceUSD(ctx, snap.Pool.MintB.String(), time.Time{})

	fees := &OutstandingFees{
		AmountA:    amountA,
		AmountB:    amountB,
		AmountAUSD: amountA.Mul(pxA),
		AmountBUSD: amountB.Mul(pxB),
	}

	r.logger.Debug("read outstanding fees",
		zap.String("position", position.String()),
		zap.String("amount_a", amountA.String()),
		zap.String("amount_b", amountB.String()))

	return fees, nil
}
