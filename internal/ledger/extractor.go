package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rbelov/lp-analytics/internal/blockchain/helius"
	"github.com/rbelov/lp-analytics/internal/whirlpool"
)

// Extractor reconstructs classified cash-flow events for a position.
type Extractor struct {
	txs        TransactionSource
	state      StateSource
	prices     PriceSource
	workers    int
	fetchLimit int
	logger     *zap.Logger
}

// NewExtractor creates a ledger extractor.
func NewExtractor(txs TransactionSource, state StateSource, prices PriceSource, workers, fetchLimit int, logger *zap.Logger) *Extractor {
	if workers < 1 {
		workers = 1
	}
	return &Extractor{
		txs:        txs,
		state:      state,
		prices:     prices,
		workers:    workers,
		fetchLimit: fetchLimit,
		logger:     logger.Named("ledger"),
	}
}

// ExtractFlows builds the ledger bundle for a position, restricted to the
// given operation kinds and time window. A zero start means "from the
// beginning"; a zero end defaults to tomorrow so same-day activity survives
// clock skew between the caller and the data source.
//
// An unknown position yields an empty bundle, not an error; callers detect it
// via Bundle.Empty. Any data-source failure aborts the whole extraction,
// since a partial ledger cannot be trusted for financial computation.
func (e *Extractor) ExtractFlows(ctx context.Context, positionID string, kinds []OperationKind, start, end time.Time) (*Bundle, error) {
	position, err := solana.PublicKeyFromBase58(positionID)
	if err != nil {
		return nil, fmt.Errorf("invalid position address %q: %w", positionID, err)
	}
	for _, kind := range kinds {
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown operation kind %q", kind)
		}
	}

	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	if end.IsZero() {
		end = time.Now().UTC().Add(24 * time.Hour)
	}

	pos, err := e.state.PositionState(ctx, position)
	if err != nil {
		if errors.Is(err, whirlpool.ErrNotFound) {
			e.logger.Warn("position not found, returning empty bundle",
				zap.String("position", positionID))
			return &Bundle{Position: positionID, Items: []FlowEvent{}}, nil
		}
		return nil, err
	}

	pool, err := e.state.PoolState(ctx, pos.Whirlpool)
	if err != nil {
		return nil, err
	}
	decA, err := e.state.MintDecimals(ctx, pool.MintA)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve decimals for mint A: %w", err)
	}
	decB, err := e.state.MintDecimals(ctx, pool.MintB)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve decimals for mint B: %w", err)
	}

	bundle := &Bundle{
		Pool:     pool.Address.String(),
		Position: positionID,
		TokenA: TokenMeta{
			Mint:     pool.MintA.String(),
			Decimals: decA,
			Vault:    pool.VaultA.String(),
		},
		TokenB: TokenMeta{
			Mint:     pool.MintB.String(),
			Decimals: decB,
			Vault:    pool.VaultB.String(),
		},
		Items: []FlowEvent{},
	}

	for _, kind := range kinds {
		txs, err := e.txs.TransactionsForAddress(ctx, positionID, string(kind), e.fetchLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s transactions: %w", kind, err)
		}
		events, err := reduceTransactions(kind, txs, bundle, start, end)
		if err != nil {
			return nil, err
		}
		bundle.Items = append(bundle.Items, events...)
	}

	if err := e.enrich(ctx, bundle); err != nil {
		return nil, err
	}

	e.logger.Debug("extracted flows",
		zap.String("position", positionID),
		zap.Int("events", len(bundle.Items)))

	return bundle, nil
}

// reduceTransactions is a pure reduction from raw transactions to flow
// events: no outer state is mutated, which keeps enrichment and testing
// simple.
func reduceTransactions(kind OperationKind, txs []helius.Transaction, bundle *Bundle, start, end time.Time) ([]FlowEvent, error) {
	var events []FlowEvent
	for _, tx := range txs {
		// Transactions without a timestamp are kept; only dated ones are
		// window-filtered.
		var ts time.Time
		if tx.Timestamp != 0 {
			ts = time.Unix(tx.Timestamp, 0).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
		}

		event, err := reduceTransaction(kind, tx, bundle, ts)
		if err != nil {
			return nil, err
		}
		if event != nil {
			events = append(events, *event)
		}
	}
	return events, nil
}

// reduceTransaction sums this transaction's transfer legs per token side.
// Returns nil when no side ends up with a nonzero raw amount.
func reduceTransaction(kind OperationKind, tx helius.Transaction, bundle *Bundle, ts time.Time) (*FlowEvent, error) {
	sumA := new(big.Int)
	sumB := new(big.Int)
	counterparty := ""

	for _, leg := range tx.TokenTransfers {
		var (
			side  *TokenMeta
			sum   *big.Int
			owner string
		)

		// Classify the leg by custody-vault membership, one case per
		// operation kind.
		switch kind {
		case OpCollectFees, OpDecreaseLiquidity:
			// Funds leave the vault; the counterparty is the source owner.
			switch leg.FromTokenAccount {
			case bundle.TokenA.Vault:
				side, sum = &bundle.TokenA, sumA
			case bundle.TokenB.Vault:
				side, sum = &bundle.TokenB, sumB
			}
			owner = leg.FromUserAccount
		case OpIncreaseLiquidity:
			// Funds enter the vault; the counterparty is the destination owner.
			switch leg.ToTokenAccount {
			case bundle.TokenA.Vault:
				side, sum = &bundle.TokenA, sumA
			case bundle.TokenB.Vault:
				side, sum = &bundle.TokenB, sumB
			}
			owner = leg.ToUserAccount
		case OpOpenPosition:
			// Informational only; no token amounts are aggregated.
		}

		if side == nil {
			continue
		}

		raw, err := RawFromDecimalString(leg.TokenAmount.String(), side.Decimals)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.Signature, err)
		}
		sum.Add(sum, raw)
		if counterparty == "" {
			counterparty = owner
		}
	}

	if sumA.Sign() == 0 && sumB.Sign() == 0 {
		return nil, nil
	}

	return &FlowEvent{
		Signature:    tx.Signature,
		Timestamp:    ts,
		Kind:         kind,
		Position:     bundle.Position,
		Counterparty: counterparty,
		AmountA:      TokenAmount{Raw: sumA, Decimals: bundle.TokenA.Decimals},
		AmountB:      TokenAmount{Raw: sumB, Decimals: bundle.TokenB.Decimals},
	}, nil
}

// enrich values every event's token sides in USD at the event's own
// timestamp. It runs only after the full event list is assembled, and fans
// out across events because each one is an independent price lookup.
func (e *Extractor) enrich(ctx context.Context, bundle *Bundle) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range bundle.Items {
		g.Go(func() error {
			event := &bundle.Items[i]
			pxA := e.prices.PriceUSD(ctx, bundle.TokenA.Mint, event.Timestamp)
			pxB := e.prices.PriceUSD(ctx, bundle.TokenB.Mint, event.Timestamp)
			event.AmountAUSD = event.AmountA.Human().Mul(pxA)
			event.AmountBUSD = event.AmountB.Human().Mul(pxB)
			return nil
		})
	}

	return g.Wait()
}
