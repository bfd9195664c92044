// Package analytics derives the financial metrics report for a liquidity
// position from its extracted cash-flow ledger and current on-chain state.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rbelov/lp-analytics/internal/ledger"
	"github.com/rbelov/lp-analytics/internal/whirlpool"
)

var (
	// ErrMissingPosition is returned when no position id is supplied;
	// pool-wide analytics without a position are not supported.
	ErrMissingPosition = errors.New("position id is required")

	// ErrPositionNotFound is returned when the position does not exist
	// on chain.
	ErrPositionNotFound = errors.New("position not found")
)

const daysPerYear = 365

// FlowSource extracts classified cash-flow events.
type FlowSource interface {
	ExtractFlows(ctx context.Context, positionID string, kinds []ledger.OperationKind, start, end time.Time) (*ledger.Bundle, error)
}

// FeesSource supplies uncollected fee balances.
type FeesSource interface {
	OutstandingFees(ctx context.Context, position solana.PublicKey) (*whirlpool.OutstandingFees, error)
}

// GasSource supplies on-chain transaction cost totals.
type GasSource interface {
	GasCost(ctx context.Context, positionID string, includeHistory bool) (*ledger.GasCost, error)
}

// SnapshotSource supplies current position/pool state.
type SnapshotSource interface {
	Snapshot(ctx context.Context, position solana.PublicKey) (*whirlpool.Snapshot, error)
}

// PriceSource supplies spot USD prices.
type PriceSource interface {
	PriceUSD(ctx context.Context, mint string, at time.Time) decimal.Decimal
}

// Params identifies the position and optional time window to analyze.
type Params struct {
	Pool     string
	Owner    string
	Position string
	Start    time.Time
	End      time.Time
}

// Calculator assembles the metrics report.
type Calculator struct {
	flows  FlowSource
	fees   FeesSource
	gas    GasSource
	state  SnapshotSource
	prices PriceSource
	logger *zap.Logger
}

// NewCalculator creates a metrics calculator.
func NewCalculator(flows FlowSource, fees FeesSource, gas GasSource, state SnapshotSource, prices PriceSource, logger *zap.Logger) *Calculator {
	return &Calculator{
		flows:  flows,
		fees:   fees,
		gas:    gas,
		state:  state,
		prices: prices,
		logger: logger.Named("analytics"),
	}
}

// Calculate produces the full metrics report for one position. The three
// ledger extractions and the fee/gas/state lookups are independent reads and
// run concurrently; every formula needs the complete set, so nothing is
// computed until all of them have joined.
func (c *Calculator) Calculate(ctx context.Context, p Params) (*Report, error) {
	if p.Position == "" {
		return nil, ErrMissingPosition
	}
	position, err := solana.PublicKeyFromBase58(p.Position)
	if err != nil {
		return nil, fmt.Errorf("invalid position address %q: %w", p.Position, err)
	}

	var (
		increases *ledger.Bundle
		collects  *ledger.Bundle
		decreases *ledger.Bundle
		outFees   *whirlpool.OutstandingFees
		gasCost   *ledger.GasCost
		snap      *whirlpool.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		increases, err = c.flows.ExtractFlows(gctx, p.Position, []ledger.OperationKind{ledger.OpIncreaseLiquidity}, p.Start, p.End)
		return err
	})
	g.Go(func() (err error) {
		collects, err = c.flows.ExtractFlows(gctx, p.Position, []ledger.OperationKind{ledger.OpCollectFees}, p.Start, p.End)
		return err
	})
	g.Go(func() (err error) {
		decreases, err = c.flows.ExtractFlows(gctx, p.Position, []ledger.OperationKind{ledger.OpDecreaseLiquidity}, p.Start, p.End)
		return err
	})
	g.Go(func() (err error) {
		outFees, err = c.fees.OutstandingFees(gctx, position)
		return err
	})
	g.Go(func() (err error) {
		gasCost, err = c.gas.GasCost(gctx, p.Position, true)
		return err
	})
	g.Go(func() (err error) {
		snap, err = c.state.Snapshot(gctx, position)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, whirlpool.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, p.Position)
		}
		return nil, err
	}

	if increases.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, p.Position)
	}

	report := c.buildReport(ctx, p, increases, collects, decreases, outFees, gasCost, snap)

	c.logger.Info("metrics computed",
		zap.String("position", p.Position),
		zap.Int("deposits", len(increases.Items)),
		zap.Int("collects", len(collects.Items)),
		zap.Int("withdrawals", len(decreases.Items)))

	return report, nil
}

func (c *Calculator) buildReport(ctx context.Context, p Params, increases, collects, decreases *ledger.Bundle, outFees *whirlpool.OutstandingFees, gasCost *ledger.GasCost, snap *whirlpool.Snapshot) *Report {
	decA, decB := snap.DecimalsA, snap.DecimalsB

	priceLower := whirlpool.TickToPrice(snap.Position.TickLower, decA, decB)
	priceUpper := whirlpool.TickToPrice(snap.Position.TickUpper, decA, decB)
	priceCurrent := whirlpool.SqrtPriceX64ToPrice(snap.Pool.SqrtPrice, decA, decB)

	pxA := c.prices.PriceUSD(ctx, increases.TokenA.Mint, time.Time{})
	pxB := c.prices.PriceUSD(ctx, increases.TokenB.Mint, time.Time{})

	qtyNowAf, qtyNowBf := whirlpool.TokenAmounts(
		snap.Position.Liquidity,
		snap.Pool.TickCurrent,
		snap.Position.TickLower,
		snap.Position.TickUpper,
		snap.Pool.SqrtPrice,
		decA, decB,
	)
	qtyNowA := decimal.NewFromFloat(qtyNowAf)
	qtyNowB := decimal.NewFromFloat(qtyNowBf)

	depositQtyA, depositQtyB := sumQuantities(increases)

	depositValue := sumUSD(increases)
	withdrawn := sumUSD(decreases)
	collectedFees := sumUSD(collects)
	uncollectedFees := outFees.TotalUSD()
	gas := gasCost.TotalUSD()
	totalFees := collectedFees.Add(uncollectedFees)

	positionValue := qtyNowA.Mul(pxA).Add(qtyNowB.Mul(pxB))
	hodlValue := depositQtyA.Mul(pxA).Add(depositQtyB.Mul(pxB))

	ageDays := positionAgeDays(increases)

	pnlExGas := positionValue.Add(totalFees).Add(withdrawn).Sub(depositValue)
	pnl := pnlExGas.Sub(gas)
	feePnlExGas := totalFees
	feePnl := totalFees.Sub(gas)

	roi := ratio(pnl, depositValue)
	roiExGas := ratio(pnlExGas, depositValue)
	feeRoi := ratio(feePnl, depositValue)
	feeRoiExGas := ratio(feePnlExGas, depositValue)

	il := positionValue.Sub(hodlValue)
	ilPercent := ratio(il, hodlValue)

	metrics := map[string]Metric{
		MetricPriceLower:       {priceLower, "pool price at the position's lower tick"},
		MetricPriceUpper:       {priceUpper, "pool price at the position's upper tick"},
		MetricPriceCurrent:     {priceCurrent, "current pool price"},
		MetricDepositQtyA:      {depositQtyA.InexactFloat64(), "token A quantity deposited over all increase-liquidity flows"},
		MetricDepositQtyB:      {depositQtyB.InexactFloat64(), "token B quantity deposited over all increase-liquidity flows"},
		MetricCurrentQtyA:      {qtyNowA.InexactFloat64(), "token A quantity currently backing the position"},
		MetricCurrentQtyB:      {qtyNowB.InexactFloat64(), "token B quantity currently backing the position"},
		MetricDepositValue:     {depositValue.InexactFloat64(), "USD cost basis of all deposits at their own timestamps"},
		MetricPositionValue:    {positionValue.InexactFloat64(), "USD value of the position's current token quantities at spot"},
		MetricHodlValue:        {hodlValue.InexactFloat64(), "USD value of the original deposit had it never been supplied as liquidity"},
		MetricCollectedFees:    {collectedFees.InexactFloat64(), "USD value of all collected fees at their own timestamps"},
		MetricUncollectedFees:  {uncollectedFees.InexactFloat64(), "USD value of uncollected fee balances at spot"},
		MetricTotalFees:        {totalFees.InexactFloat64(), "collected plus uncollected fees, USD"},
		MetricWithdrawn:        {withdrawn.InexactFloat64(), "USD value of all withdrawals at their own timestamps"},
		MetricGas:              {gas.InexactFloat64(), "USD total of on-chain transaction costs"},
		MetricAgeDays:          {ageDays, "days since the earliest deposit; 0 when no deposit flows exist"},
		MetricPnL:              {pnl.InexactFloat64(), "position value + fees + withdrawals - deposits - gas"},
		MetricPnLExGas:         {pnlExGas.InexactFloat64(), "profit and loss before gas costs"},
		MetricFeePnL:           {feePnl.InexactFloat64(), "fees earned minus gas costs"},
		MetricFeePnLExGas:      {feePnlExGas.InexactFloat64(), "fees earned before gas costs"},
		MetricROI:              {roi, "pnl over deposit cost basis; NaN when no deposits"},
		MetricROIExGas:         {roiExGas, "pnl before gas over deposit cost basis; NaN when no deposits"},
		MetricFeeROI:           {feeRoi, "fee pnl over deposit cost basis; NaN when no deposits"},
		MetricFeeROIExGas:      {feeRoiExGas, "fee pnl before gas over deposit cost basis; NaN when no deposits"},
		MetricTotalAPR:         {annualize(roi, ageDays), "roi annualized over the position's age; NaN when age is 0"},
		MetricTotalAPRExGas:    {annualize(roiExGas, ageDays), "roi before gas annualized over the position's age; NaN when age is 0"},
		MetricFeeAPR:           {annualize(feeRoi, ageDays), "fee roi annualized over the position's age; NaN when age is 0"},
		MetricFeeAPRExGas:      {annualize(feeRoiExGas, ageDays), "fee roi before gas annualized over the position's age; NaN when age is 0"},
		MetricImpermanentLoss:  {il.InexactFloat64(), "position value minus hodl value, USD"},
		MetricImpermanentLossP: {ilPercent, "impermanent loss over hodl value; NaN when hodl value is 0"},
	}

	return &Report{
		Pool:        increases.Pool,
		Owner:       p.Owner,
		Position:    p.Position,
		GeneratedAt: time.Now().UTC(),
		Metrics:     metrics,
	}
}

// sumUSD totals both sides' USD values over a bundle's events.
func sumUSD(bundle *ledger.Bundle) decimal.Decimal {
	total := decimal.Zero
	for _, item := range bundle.Items {
		total = total.Add(item.AmountAUSD).Add(item.AmountBUSD)
	}
	return total
}

// sumQuantities totals the human token quantities over a bundle's events.
func sumQuantities(bundle *ledger.Bundle) (qtyA, qtyB decimal.Decimal) {
	qtyA, qtyB = decimal.Zero, decimal.Zero
	for _, item := range bundle.Items {
		qtyA = qtyA.Add(item.AmountA.Human())
		qtyB = qtyB.Add(item.AmountB.Human())
	}
	return qtyA, qtyB
}

// positionAgeDays returns the days since the earliest dated deposit flow, or
// 0 when none exists. Age 0 makes the APR denominators undefined; annualize
// guards the division.
func positionAgeDays(increases *ledger.Bundle) float64 {
	var earliest time.Time
	for _, item := range increases.Items {
		if item.Timestamp.IsZero() {
			continue
		}
		if earliest.IsZero() || item.Timestamp.Before(earliest) {
			earliest = item.Timestamp
		}
	}
	if earliest.IsZero() {
		return 0
	}
	age := time.Since(earliest).Hours() / 24
	if age < 0 {
		return 0
	}
	return age
}

// ratio divides two decimals, yielding the NaN sentinel on a zero
// denominator.
func ratio(num, denom decimal.Decimal) float64 {
	if denom.IsZero() {
		return math.NaN()
	}
	return num.Div(denom).InexactFloat64()
}

// annualize extrapolates a realized return over the position's age to a
// yearly rate.
func annualize(roi, ageDays float64) float64 {
	if ageDays == 0 || math.IsNaN(roi) {
		return math.NaN()
	}
	return roi * daysPerYear / ageDays
}
