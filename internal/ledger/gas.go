package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Transaction fees are paid in lamports.
const (
	solMint     = "So11111111111111111111111111111111111111112"
	solDecimals = 9
)

// GasCost holds the USD value of on-chain transaction costs, split by token
// side for shape parity with the fees reader. Fees are always paid in SOL, so
// only the A side is populated.
type GasCost struct {
	AmountAUSD decimal.Decimal `json:"amountAUsd"`
	AmountBUSD decimal.Decimal `json:"amountBUsd"`
}

// TotalUSD returns the combined USD gas cost.
func (g *GasCost) TotalUSD() decimal.Decimal {
	return g.AmountAUSD.Add(g.AmountBUSD)
}

// GasReader totals transaction fees for a position from its enriched
// transaction history.
type GasReader struct {
	txs        TransactionSource
	prices     PriceSource
	fetchLimit int
	logger     *zap.Logger
}

// NewGasReader creates a gas-cost reader.
func NewGasReader(txs TransactionSource, prices PriceSource, fetchLimit int, logger *zap.Logger) *GasReader {
	return &GasReader{
		txs:        txs,
		prices:     prices,
		fetchLimit: fetchLimit,
		logger:     logger.Named("gas"),
	}
}

// GasCost sums the position's transaction fees and values them at the SOL
// spot price. With includeHistory false only the opening transaction is
// counted; with true the full history is.
func (r *GasReader) GasCost(ctx context.Context, positionID string, includeHistory bool) (*GasCost, error) {
	txType := string(OpOpenPosition)
	if includeHistory {
		txType = ""
	}

	txs, err := r.txs.TransactionsForAddress(ctx, positionID, txType, r.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for gas cost: %w", err)
	}

	totalLamports := uint64(0)
	for _, tx := range txs {
		totalLamports += tx.Fee
	}

	totalSOL := decimal.NewFromUint64(totalLamports).Shift(-solDecimals)
	solPrice := r.prices.PriceUSD(ctx, solMint, time.Time{})
	cost := &GasCost{
		AmountAUSD: totalSOL.Mul(solPrice),
		AmountBUSD: decimal.Zero,
	}

	r.logger.Debug("computed gas cost",
		zap.String("position", positionID),
		zap.Uint64("lamports", totalLamports),
		zap.String("usd", cost.TotalUSD().String()))

	return cost, nil
}
