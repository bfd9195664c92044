package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rbelov/lp-analytics/internal/blockchain/helius"
)

func solPrices() *fakePriceSource {
	return &fakePriceSource{prices: map[string]decimal.Decimal{
		solMint: decimal.NewFromInt(150),
	}}
}

func TestGasCostOpeningOnly(t *testing.T) {
	txs := &fakeTxSource{txs: map[string][]helius.Transaction{
		string(OpOpenPosition): {
			{Signature: "sig-open", Fee: 5_000},
		},
		"": {
			{Signature: "sig-open", Fee: 5_000},
			{Signature: "sig-collect", Fee: 10_000},
		},
	}}

	reader := NewGasReader(txs, solPrices(), 100, zap.NewNop())
	cost, err := reader.GasCost(context.Background(), testPosition.String(), false)
	require.NoError(t, err)

	// 5000 lamports at 150 USD/SOL.
	want := decimal.RequireFromString("0.00075")
	assert.True(t, cost.AmountAUSD.Equal(want), "got %s", cost.AmountAUSD)
	assert.True(t, cost.AmountBUSD.IsZero())
	assert.True(t, cost.TotalUSD().Equal(want))
}

func TestGasCostFullHistory(t *testing.T) {
	txs := &fakeTxSource{txs: map[string][]helius.Transaction{
		"": {
			{Signature: "sig-open", Fee: 5_000},
			{Signature: "sig-increase", Fee: 5_000},
			{Signature: "sig-collect", Fee: 10_000},
		},
	}}

	reader := NewGasReader(txs, solPrices(), 100, zap.NewNop())
	cost, err := reader.GasCost(context.Background(), testPosition.String(), true)
	require.NoError(t, err)

	// 20000 lamports at 150 USD/SOL.
	assert.True(t, cost.TotalUSD().Equal(decimal.RequireFromString("0.003")), "got %s", cost.TotalUSD())
}

func TestGasCostNoTransactions(t *testing.T) {
	reader := NewGasReader(&fakeTxSource{}, solPrices(), 100, zap.NewNop())

	cost, err := reader.GasCost(context.Background(), testPosition.String(), true)
	require.NoError(t, err)
	assert.True(t, cost.TotalUSD().IsZero())
}

func TestGasCostUnknownSolPrice(t *testing.T) {
	txs := &fakeTxSource{txs: map[string][]helius.Transaction{
		"": {{Signature: "sig-open", Fee: 5_000}},
	}}

	// Price lookups degrade to zero; gas follows the same policy.
	reader := NewGasReader(txs, &fakePriceSource{prices: map[string]decimal.Decimal{}}, 100, zap.NewNop())
	cost, err := reader.GasCost(context.Background(), testPosition.String(), true)
	require.NoError(t, err)
	assert.True(t, cost.TotalUSD().IsZero())
}

func TestGasCostPropagatesFetchError(t *testing.T) {
	reader := NewGasReader(&fakeTxSource{err: assert.AnError}, solPrices(), 100, zap.NewNop())

	_, err := reader.GasCost(context.Background(), testPosition.String(), true)
	assert.ErrorIs(t, err, assert.AnError)
}
