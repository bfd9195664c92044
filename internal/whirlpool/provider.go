package whirlpool

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	internalsolana "github.com/rbelov/lp-analytics/internal/blockchain/solana"
)

// ErrNotFound is returned when a position or pool account does not exist.
var ErrNotFound = errors.New("whirlpool account not found")

// Position is the decoded state of a liquidity position.
type Position struct {
	Address   solana.PublicKey
	Whirlpool solana.PublicKey
	Liquidity *big.Int
	TickLower int32
	TickUpper int32
	FeeOwedA  uint64
	FeeOwedB  uint64
}

// Pool is the decoded state of a whirlpool.
type Pool struct {
	Address     solana.PublicKey
	MintA       solana.PublicKey
	MintB       solana.PublicKey
	VaultA      solana.PublicKey
	VaultB      solana.PublicKey
	SqrtPrice   *big.Int
	TickCurrent int32
	Liquidity   *big.Int
}

// Snapshot is the point-in-time position/pool pair consumed by the metrics
// calculator.
type Snapshot struct {
	Pool      Pool
	Position  Position
	DecimalsA uint8
	DecimalsB uint8
}

// AccountReader is the subset of the RPC adapter the provider needs.
type AccountReader interface {
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// StateProvider reads and decodes position/pool accounts.
type StateProvider struct {
	client  AccountReader
	decoder *StateDecoder
	logger  *zap.Logger
}

// NewStateProvider creates a new provider backed by the given account reader.
func NewStateProvider(client AccountReader, logger *zap.Logger) *StateProvider {
	return &StateProvider{
		client:  client,
		decoder: NewStateDecoder(logger),
		logger:  logger.Named("whirlpool-state"),
	}
}

// PositionState fetches and decodes a position account. A missing account
// maps to ErrNotFound.
func (p *StateProvider) PositionState(ctx context.Context, position solana.PublicKey) (*Position, error) {
	data, err := p.client.GetAccountData(ctx, position)
	if err != nil {
		if internalsolana.IsAccountNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch position account: %w", err)
	}

	layout, err := p.decoder.DecodePosition(data)
	if err != nil {
		return nil, err
	}

	return &Position{
		Address:   position,
		Whirlpool: layout.Whirlpool,
		Liquidity: layout.Liquidity.BigInt(),
		TickLower: layout.TickLowerIndex,
		TickUpper: layout.TickUpperIndex,
		FeeOwedA:  layout.FeeOwedA,
		FeeOwedB:  layout.FeeOwedB,
	}, nil
}

// PoolState fetches and decodes a whirlpool account.
func (p *StateProvider) PoolState(ctx context.Context, pool solana.PublicKey) (*Pool, error) {
	data, err := p.client.GetAccountData(ctx, pool)
	if err != nil {
		if internalsolana.IsAccountNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch pool account: %w", err)
	}

	layout, err := p.decoder.DecodePool(data)
	if err != nil {
		return nil, err
	}

	return &Pool{
		Address:     pool,
		MintA:       layout.TokenMintA,
		MintB:       layout.TokenMintB,
		VaultA:      layout.TokenVaultA,
		VaultB:      layout.TokenVaultB,
		SqrtPrice:   layout.SqrtPrice.BigInt(),
		TickCurrent: layout.TickCurrentIndex,
		Liquidity:   layout.Liquidity.BigInt(),
	}, nil
}

// MintDecimals returns the decimals count for a token mint.
func (p *StateProvider) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	return p.client.GetMintDecimals(ctx, mint)
}

// Snapshot assembles the full position/pool pair for one position.
func (p *StateProvider) Snapshot(ctx context.Context, position solana.PublicKey) (*Snapshot, error) {
	pos, err := p.PositionState(ctx, position)
	if err != nil {
		return nil, err
	}

	pool, err := p.PoolState(ctx, pos.Whirlpool)
	if err != nil {
		return nil, err
	}

	decA, err := p.MintDecimals(ctx, pool.MintA)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch decimals for mint A: %w", err)
	}
	decB, err := p.MintDecimals(ctx, pool.MintB)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch decimals for mint B: %w", err)
	}

	p.logger.Debug("assembled position snapshot",
		zap.String("position", position.String()),
		zap.String("pool", pool.Address.String()),
		zap.Int32("tick_lower", pos.TickLower),
		zap.Int32("tick_upper", pos.TickUpper))

	return &Snapshot{
		Pool:      *pool,
		Position:  *pos,
		DecimalsA: decA,
		DecimalsB: decB,
	}, nil
}
