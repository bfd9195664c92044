// Package whirlpool reads concentrated-liquidity pool and position state and
// exposes the price/quantity math derived from it.
package whirlpool

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// PositionLayout is the on-chain account structure of a liquidity position.
// Reward checkpoints after FeeOwedB are not decoded; they trail the fields we
// use and the borsh decoder stops at the end of the struct.
type PositionLayout struct {
	Discriminator        [8]byte
	Whirlpool            solana.PublicKey
	PositionMint         solana.PublicKey
	Liquidity            bin.Uint128
	TickLowerIndex       int32
	TickUpperIndex       int32
	FeeGrowthCheckpointA bin.Uint128
	FeeOwedA             uint64
	FeeGrowthCheckpointB bin.Uint128
	FeeOwedB             uint64
}

// PoolLayout is the on-chain account structure of a whirlpool.
type PoolLayout struct {
	Discriminator    [8]byte
	WhirlpoolsConfig solana.PublicKey
	WhirlpoolBump    [1]uint8
	TickSpacing      uint16
	TickSpacingSeed  [2]uint8
	FeeRate          uint16
	ProtocolFeeRate  uint16
	Liquidity        bin.Uint128
	SqrtPrice        bin.Uint128
	TickCurrentIndex int32
	ProtocolFeeOwedA uint64
	ProtocolFeeOwedB uint64
	TokenMintA       solana.PublicKey
	TokenVaultA      solana.PublicKey
	FeeGrowthGlobalA bin.Uint128
	TokenMintB       solana.PublicKey
	TokenVaultB      solana.PublicKey
	FeeGrowthGlobalB bin.Uint128
}

const (
	positionDataLen = 216
	poolDataLen     = 653
)

// StateDecoder decodes raw account bytes into layouts.
type StateDecoder struct {
	logger *zap.Logger
}

// NewStateDecoder creates a new account decoder.
func NewStateDecoder(logger *zap.Logger) *StateDecoder {
	return &StateDecoder{
		logger: logger.Named("whirlpool-decoder"),
	}
}

// DecodePosition decodes a position account.
func (d *StateDecoder) DecodePosition(data []byte) (*PositionLayout, error) {
	if len(data) < positionDataLen {
		return nil, fmt.Errorf("position account too short: %d bytes", len(data))
	}
	var layout PositionLayout
	if err := bin.NewBorshDecoder(data).Decode(&layout); err != nil {
		d.logger.Debug("position decode failed", zap.Error(err))
		return nil, fmt.Errorf("failed to decode position account: %w", err)
	}
	return &layout, nil
}

// DecodePool decodes a whirlpool account.
func (d *StateDecoder) DecodePool(data []byte) (*PoolLayout, error) {
	if len(data) < poolDataLen {
		return nil, fmt.Errorf("pool account too short: %d bytes", len(data))
	}
	var layout PoolLayout
	if err := bin.NewBorshDecoder(data).Decode(&layout); err != nil {
		d.logger.Debug("pool decode failed", zap.Error(err))
		return nil, fmt.Errorf("failed to decode pool account: %w", err)
	}
	return &layout, nil
}
