package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rbelov/lp-analytics/internal/analytics"
	"github.com/rbelov/lp-analytics/internal/blockchain/helius"
	internalsolana "github.com/rbelov/lp-analytics/internal/blockchain/solana"
	"github.com/rbelov/lp-analytics/internal/config"
	"github.com/rbelov/lp-analytics/internal/export"
	"github.com/rbelov/lp-analytics/internal/ledger"
	"github.com/rbelov/lp-analytics/internal/logger"
	"github.com/rbelov/lp-analytics/internal/pricing"
	"github.com/rbelov/lp-analytics/internal/whirlpool"
)

// Exit codes let callers distinguish bad input from missing positions and
// retryable upstream failures.
const (
	exitUsage    = 2
	exitNotFound = 3
	exitUpstream = 4
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	position := flag.String("position", "", "position address (required)")
	pool := flag.String("pool", "", "pool address")
	owner := flag.String("owner", "", "owner wallet address")
	start := flag.String("start", "", "window start, RFC3339")
	end := flag.String("end", "", "window end, RFC3339")
	format := flag.String("format", "", "export format: csv or json (omit to print to stdout)")
	ledgerOnly := flag.Bool("ledger", false, "emit the raw cash-flow ledger instead of the metrics report")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     "lp-analytics.log",
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	code := run(cfg, log, *position, *pool, *owner, *start, *end, *format, *ledgerOnly)
	_ = log.Sync()
	os.Exit(code)
}

func run(cfg *config.Config, log *logger.Logger, position, pool, owner, start, end, format string, ledgerOnly bool) int {
	opLog := log.WithOperation("calculate-analytics")

	params := analytics.Params{
		Pool:     pool,
		Owner:    owner,
		Position: position,
	}
	var err error
	if params.Start, err = parseTime(start); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start: %v\n", err)
		return exitUsage
	}
	if params.End, err = parseTime(end); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -end: %v\n", err)
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RequestTimeout)*time.Second)
	defer cancel()

	calculator, extractor := buildCalculator(cfg, log.Logger)

	if ledgerOnly {
		return runLedger(ctx, cfg, log.Logger, extractor, params, format)
	}

	report, err := calculator.Calculate(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, analytics.ErrMissingPosition):
			fmt.Fprintln(os.Stderr, "a position address is required (-position)")
			return exitUsage
		case errors.Is(err, analytics.ErrPositionNotFound):
			fmt.Fprintf(os.Stderr, "position not found: %s\n", position)
			return exitNotFound
		default:
			opLog.Error("analytics computation failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "upstream failure: %v\n", err)
			return exitUpstream
		}
	}

	if format == "" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			opLog.Error("failed to render report", zap.Error(err))
			return 1
		}
		return 0
	}

	exporter := export.NewExporter(cfg.ExportDir, log.Logger)
	path, err := exporter.ExportReport(report, export.Format(format))
	if err != nil {
		opLog.Error("failed to export report", zap.Error(err))
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		return 1
	}
	fmt.Println(path)
	return 0
}

// runLedger extracts and emits the classified cash-flow ledger without
// computing metrics.
func runLedger(ctx context.Context, cfg *config.Config, log *zap.Logger, extractor *ledger.Extractor, params analytics.Params, format string) int {
	if params.Position == "" {
		fmt.Fprintln(os.Stderr, "a position address is required (-position)")
		return exitUsage
	}

	bundle, err := extractor.ExtractFlows(ctx, params.Position, ledger.AllOperationKinds, params.Start, params.End)
	if err != nil {
		log.Error("ledger extraction failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "upstream failure: %v\n", err)
		return exitUpstream
	}
	if bundle.Empty() {
		fmt.Fprintf(os.Stderr, "position not found: %s\n", params.Position)
		return exitNotFound
	}

	if format == "" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(bundle); err != nil {
			log.Error("failed to render ledger", zap.Error(err))
			return 1
		}
		return 0
	}

	exporter := export.NewExporter(cfg.ExportDir, log)
	path, err := exporter.ExportBundle(bundle, export.Format(format))
	if err != nil {
		log.Error("failed to export ledger", zap.Error(err))
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		return 1
	}
	fmt.Println(path)
	return 0
}

// buildCalculator wires the collaborator graph: RPC client, state provider,
// transaction source, price oracle, extractor and readers.
func buildCalculator(cfg *config.Config, log *zap.Logger) (*analytics.Calculator, *ledger.Extractor) {
	rpcClient := internalsolana.NewClient(cfg.RPCList, cfg.Retries, log)
	txClient := helius.NewClient(cfg.DataAPIURL, cfg.DataAPIKey, log)
	oracle := pricing.NewOracle(cfg.PriceAPIURL, cfg.PriceAPIKey, log)
	state := whirlpool.NewStateProvider(rpcClient, log)

	extractor := ledger.NewExtractor(txClient, state, oracle, cfg.Workers, cfg.TxFetchLimit, log)
	feesReader := whirlpool.NewFeesReader(state, oracle, log)
	gasReader := ledger.NewGasReader(txClient, oracle, cfg.TxFetchLimit, log)

	return analytics.NewCalculator(extractor, feesReader, gasReader, state, oracle, log), extractor
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
