package export

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rbelov/lp-analytics/internal/analytics"
	"github.com/rbelov/lp-analytics/internal/ledger"
)

func sampleReport() *analytics.Report {
	metrics := make(map[string]analytics.Metric, len(analytics.MetricNames()))
	for _, name := range analytics.MetricNames() {
		metrics[name] = analytics.Metric{Value: 1.5, Description: "test metric"}
	}
	metrics[analytics.MetricROI] = analytics.Metric{Value: math.NaN(), Description: "undefined ratio"}
	return &analytics.Report{
		Pool:        "pool-address",
		Position:    "position-address-12345",
		GeneratedAt: time.Now().UTC(),
		Metrics:     metrics,
	}
}

func sampleBundle() *ledger.Bundle {
	return &ledger.Bundle{
		Pool:     "pool-address",
		Position: "position-address-12345",
		TokenA:   ledger.TokenMeta{Mint: "mint-a", Decimals: 6},
		TokenB:   ledger.TokenMeta{Mint: "mint-b", Decimals: 9},
		Items: []ledger.FlowEvent{
			{
				Signature:  "sig-1",
				Timestamp:  time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC),
				Kind:       ledger.OpIncreaseLiquidity,
				AmountA:    ledger.TokenAmount{Raw: big.NewInt(100_000_000), Decimals: 6},
				AmountB:    ledger.TokenAmount{Raw: big.NewInt(1_000_000_000), Decimals: 9},
				AmountAUSD: decimal.NewFromInt(100),
				AmountBUSD: decimal.NewFromInt(150),
			},
			{
				Signature: "sig-undated",
				Kind:      ledger.OpCollectFees,
				AmountA:   ledger.TokenAmount{Raw: big.NewInt(5_000_000), Decimals: 6},
			},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportReportCSV(t *testing.T) {
	exporter := NewExporter(t.TempDir(), zap.NewNop())

	path, err := exporter.ExportReport(sampleReport(), FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "report_position")

	rows := readCSV(t, path)
	require.Len(t, rows, len(analytics.MetricNames())+1)
	assert.Equal(t, []string{"metric", "value", "description"}, rows[0])

	byName := make(map[string][]string)
	for _, row := range rows[1:] {
		byName[row[0]] = row
	}
	assert.Equal(t, "1.5", byName[analytics.MetricPnL][1])
	assert.Equal(t, "NaN", byName[analytics.MetricROI][1])
}

func TestExportReportJSON(t *testing.T) {
	exporter := NewExporter(t.TempDir(), zap.NewNop())

	path, err := exporter.ExportReport(sampleReport(), FormatJSON)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		Pool     string `json:"pool"`
		Position string `json:"position"`
		Metrics  map[string]struct {
			Value       *float64 `json:"value"`
			Description string   `json:"description"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "pool-address", decoded.Pool)
	require.NotNil(t, decoded.Metrics[analytics.MetricPnL].Value)
	assert.Equal(t, 1.5, *decoded.Metrics[analytics.MetricPnL].Value)

	// The NaN sentinel must serialize as null, not break the encoder.
	assert.Nil(t, decoded.Metrics[analytics.MetricROI].Value)
}

func TestExportBundleCSV(t *testing.T) {
	exporter := NewExporter(t.TempDir(), zap.NewNop())

	path, err := exporter.ExportBundle(sampleBundle(), FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "ledger_position")

	rows := readCSV(t, path)
	require.Len(t, rows, 3)

	assert.Equal(t, "sig-1", rows[1][0])
	assert.Equal(t, "2024-06-03T12:00:00Z", rows[1][1])
	assert.Equal(t, string(ledger.OpIncreaseLiquidity), rows[1][2])
	assert.Equal(t, "100", rows[1][4])
	assert.Equal(t, "1", rows[1][5])
	assert.Equal(t, "100", rows[1][6])

	// Undated events export with an empty timestamp column.
	assert.Equal(t, "sig-undated", rows[2][0])
	assert.Empty(t, rows[2][1])
}

func TestExportBundleJSON(t *testing.T) {
	exporter := NewExporter(t.TempDir(), zap.NewNop())

	path, err := exporter.ExportBundle(sampleBundle(), FormatJSON)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded ledger.Bundle
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "pool-address", decoded.Pool)
	require.Len(t, decoded.Items, 2)
	assert.Equal(t, "sig-1", decoded.Items[0].Signature)
}

func TestExportUnsupportedFormat(t *testing.T) {
	exporter := NewExporter(t.TempDir(), zap.NewNop())

	_, err := exporter.ExportReport(sampleReport(), Format("xml"))
	assert.ErrorContains(t, err, "unsupported format")
}
