// Package ledger reconstructs a position's classified on-chain cash-flow
// history from enriched transaction records.
package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rbelov/lp-analytics/internal/blockchain/helius"
	"github.com/rbelov/lp-analytics/internal/whirlpool"
)

// OperationKind classifies a cash-flow event. The set is closed; transfer-leg
// classification switches over it exhaustively.
type OperationKind string

const (
	OpOpenPosition      OperationKind = "OPEN_POSITION"
	OpIncreaseLiquidity OperationKind = "INCREASE_LIQUIDITY"
	OpDecreaseLiquidity OperationKind = "DECREASE_LIQUIDITY"
	OpCollectFees       OperationKind = "COLLECT_FEES"
)

// AllOperationKinds lists every supported operation kind.
var AllOperationKinds = []OperationKind{
	OpOpenPosition,
	OpIncreaseLiquidity,
	OpDecreaseLiquidity,
	OpCollectFees,
}

// Valid reports whether k is a member of the closed kind set.
func (k OperationKind) Valid() bool {
	switch k {
	case OpOpenPosition, OpIncreaseLiquidity, OpDecreaseLiquidity, OpCollectFees:
		return true
	}
	return false
}

// TokenAmount is a raw integer amount in the token's smallest denomination.
// Raw amounts stay integral end to end; conversion to a decimal happens only
// at the USD boundary.
type TokenAmount struct {
	Raw      *big.Int `json:"raw"`
	Decimals uint8    `json:"decimals"`
}

// Human returns the decimal-normalized amount.
func (a TokenAmount) Human() decimal.Decimal {
	if a.Raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Raw, -int32(a.Decimals))
}

// IsZero reports whether the raw amount is zero or unset.
func (a TokenAmount) IsZero() bool {
	return a.Raw == nil || a.Raw.Sign() == 0
}

// FlowEvent is one classified cash-flow line. Immutable once built; never
// persisted.
type FlowEvent struct {
	Signature    string          `json:"signature"`
	Timestamp    time.Time       `json:"timestamp"` // zero when the source gave none
	Kind         OperationKind   `json:"operationKind"`
	Position     string          `json:"position"`
	Counterparty string          `json:"counterparty"`
	AmountA      TokenAmount     `json:"amountA"`
	AmountB      TokenAmount     `json:"amountB"`
	AmountAUSD   decimal.Decimal `json:"amountAUsd"`
	AmountBUSD   decimal.Decimal `json:"amountBUsd"`
}

// TokenMeta identifies one side of the pool's trading pair. The vault address
// is fixed for the pool's lifetime and is the sole discriminator for "this
// transfer leg belongs to this position's custody account".
type TokenMeta struct {
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
	Vault    string `json:"vault"`
}

// Bundle is the extracted ledger for one position.
//
// Items preserve the data source's retrieval order (newest first); callers
// that need chronological order must sort explicitly.
type Bundle struct {
	Pool     string      `json:"pool"`
	Position string      `json:"position"`
	TokenA   TokenMeta   `json:"tokenA"`
	TokenB   TokenMeta   `json:"tokenB"`
	Items    []FlowEvent `json:"items"`
}

// Empty reports whether the bundle carries no pool metadata, which is how an
// unknown position is signalled.
func (b *Bundle) Empty() bool {
	return b.TokenA.Mint == ""
}

// TransactionSource supplies enriched transactions for an address.
type TransactionSource interface {
	TransactionsForAddress(ctx context.Context, address, txType string, limit int) ([]helius.Transaction, error)
}

// StateSource supplies position and pool state.
type StateSource interface {
	PositionState(ctx context.Context, position solana.PublicKey) (*whirlpool.Position, error)
	PoolState(ctx context.Context, pool solana.PublicKey) (*whirlpool.Pool, error)
	MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// PriceSource supplies USD prices; a zero time means spot. Lookups degrade to
// zero instead of failing.
type PriceSource interface {
	PriceUSD(ctx context.Context, mint string, at time.Time) decimal.Decimal
}
