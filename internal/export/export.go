// Package export writes metrics reports and ledger bundles to disk.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rbelov/lp-analytics/internal/analytics"
	"github.com/rbelov/lp-analytics/internal/ledger"
)

// Format is the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Exporter writes analytics output files.
type Exporter struct {
	outputDir string
	logger    *zap.Logger
}

// NewExporter creates an exporter rooted at outputDir.
func NewExporter(outputDir string, logger *zap.Logger) *Exporter {
	return &Exporter{
		outputDir: outputDir,
		logger:    logger.Named("export"),
	}
}

// ExportReport writes a metrics report and returns the file path.
func (e *Exporter) ExportReport(report *analytics.Report, format Format) (string, error) {
	outputPath, err := e.prepare("report", report.Position, format)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatCSV:
		err = e.reportToCSV(report, outputPath)
	case FormatJSON:
		err = writeJSON(report, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("report exported",
		zap.String("file", outputPath),
		zap.String("format", string(format)))

	return outputPath, nil
}

// ExportBundle writes a ledger bundle, one row per flow event for CSV.
func (e *Exporter) ExportBundle(bundle *ledger.Bundle, format Format) (string, error) {
	outputPath, err := e.prepare("ledger", bundle.Position, format)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatCSV:
		err = e.bundleToCSV(bundle, outputPath)
	case FormatJSON:
		err = writeJSON(bundle, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("ledger exported",
		zap.String("file", outputPath),
		zap.Int("events", len(bundle.Items)),
		zap.String("format", string(format)))

	return outputPath, nil
}

func (e *Exporter) prepare(kind, position string, format Format) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	prefix := kind
	if len(position) >= 8 {
		prefix += "_" + position[:8]
	}
	timestamp := time.Now().Format("20060102_150405")
	return filepath.Join(e.outputDir, fmt.Sprintf("%s_%s.%s", prefix, timestamp, format)), nil
}

func (e *Exporter) reportToCSV(report *analytics.Report, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"metric", "value", "description"}); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, name := range analytics.MetricNames() {
		metric := report.Metric(name)
		row := []string{
			name,
			strconv.FormatFloat(metric.Value, 'f', -1, 64),
			metric.Description,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write metric row: %w", err)
		}
	}
	return writer.Error()
}

func (e *Exporter) bundleToCSV(bundle *ledger.Bundle, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{"signature", "timestamp", "operation", "counterparty", "amount_a", "amount_b", "amount_a_usd", "amount_b_usd"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, item := range bundle.Items {
		ts := ""
		if !item.Timestamp.IsZero() {
			ts = item.Timestamp.UTC().Format(time.RFC3339)
		}
		row := []string{
			item.Signature,
			ts,
			string(item.Kind),
			item.Counterparty,
			item.AmountA.Human().String(),
			item.AmountB.Human().String(),
			item.AmountAUSD.String(),
			item.AmountBUSD.String(),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write flow row: %w", err)
		}
	}
	return writer.Error()
}

func writeJSON(v interface{}, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
