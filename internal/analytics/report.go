package analytics

import (
	"encoding/json"
	"math"
	"time"
)

// Metric is one derived value with its audit description.
type Metric struct {
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

// MarshalJSON emits null for the non-finite sentinels (NaN, ±Inf), which
// plain float64 marshalling rejects.
func (m Metric) MarshalJSON() ([]byte, error) {
	type alias struct {
		Value       interface{} `json:"value"`
		Description string      `json:"description"`
	}
	out := alias{Value: m.Value, Description: m.Description}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		out.Value = nil
	}
	return json.Marshal(out)
}

// Metric names. Ratio metrics carry NaN when their denominator is zero;
// callers must special-case the sentinel instead of treating it as a number.
const (
	MetricPriceLower       = "price_lower"
	MetricPriceUpper       = "price_upper"
	MetricPriceCurrent     = "price_current"
	MetricDepositQtyA      = "deposit_qty_a"
	MetricDepositQtyB      = "deposit_qty_b"
	MetricCurrentQtyA      = "current_qty_a"
	MetricCurrentQtyB      = "current_qty_b"
	MetricDepositValue     = "deposit_value_usd"
	MetricPositionValue    = "position_value_usd"
	MetricHodlValue        = "hodl_value_usd"
	MetricCollectedFees    = "collected_fees_usd"
	MetricUncollectedFees  = "uncollected_fees_usd"
	MetricTotalFees        = "total_fees_usd"
	MetricWithdrawn        = "withdrawn_usd"
	MetricGas              = "gas_usd"
	MetricAgeDays          = "age_days"
	MetricPnL              = "pnl_usd"
	MetricPnLExGas         = "pnl_ex_gas_usd"
	MetricFeePnL           = "fee_pnl_usd"
	MetricFeePnLExGas      = "fee_pnl_ex_gas_usd"
	MetricROI              = "roi"
	MetricROIExGas         = "roi_ex_gas"
	MetricFeeROI           = "fee_roi"
	MetricFeeROIExGas      = "fee_roi_ex_gas"
	MetricTotalAPR         = "total_apr"
	MetricTotalAPRExGas    = "total_apr_ex_gas"
	MetricFeeAPR           = "fee_apr"
	MetricFeeAPRExGas      = "fee_apr_ex_gas"
	MetricImpermanentLoss  = "il_usd"
	MetricImpermanentLossP = "il_percent"
)

// MetricNames lists every report metric in presentation order.
func MetricNames() []string {
	return []string{
		MetricPriceLower,
		MetricPriceUpper,
		MetricPriceCurrent,
		MetricDepositQtyA,
		MetricDepositQtyB,
		MetricCurrentQtyA,
		MetricCurrentQtyB,
		MetricDepositValue,
		MetricPositionValue,
		MetricHodlValue,
		MetricCollectedFees,
		MetricUncollectedFees,
		MetricTotalFees,
		MetricWithdrawn,
		MetricGas,
		MetricAgeDays,
		MetricPnL,
		MetricPnLExGas,
		MetricFeePnL,
		MetricFeePnLExGas,
		MetricROI,
		MetricROIExGas,
		MetricFeeROI,
		MetricFeeROIExGas,
		MetricTotalAPR,
		MetricTotalAPRExGas,
		MetricFeeAPR,
		MetricFeeAPRExGas,
		MetricImpermanentLoss,
		MetricImpermanentLossP,
	}
}

// Report is the full derived-metrics object for one position. Built fresh
// per call; not mutated after construction.
type Report struct {
	Pool        string            `json:"pool"`
	Owner       string            `json:"owner"`
	Position    string            `json:"position"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Metrics     map[string]Metric `json:"metrics"`
}

// Metric returns a metric by name, with a zero Metric for unknown names.
func (r *Report) Metric(name string) Metric {
	return r.Metrics[name]
}

// Value returns a metric's numeric value by name.
func (r *Report) Value(name string) float64 {
	return r.Metrics[name].Value
}
