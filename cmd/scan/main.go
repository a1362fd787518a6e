// Command scan runs one screening pass against the history database and
// prints the candidate table. A CSV history file can be imported first.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/config"
	"github.com/aristath/alphascan/internal/di"
	"github.com/aristath/alphascan/internal/modules/scanner"
	"github.com/aristath/alphascan/internal/modules/universe"
	"github.com/aristath/alphascan/pkg/logger"
)

func main() {
	csvFlag := flag.String("import", "", "History CSV to import before scanning")
	noCleanFlag := flag.Bool("no-clean", false, "Store imported bars without spike/crash interpolation")
	topFlag := flag.Int("top", 0, "Override SCAN_TOP_N")
	reportFlag := flag.String("report-dir", "", "Override SCAN_REPORT_DIR")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *topFlag > 0 {
		cfg.Scan.TopN = *topFlag
	}
	if *reportFlag != "" {
		cfg.Scan.ReportDir = *reportFlag
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: os.Stderr,
	})

	if err := run(cfg, *csvFlag, !*noCleanFlag, log); err != nil {
		log.Error().Err(err).Msg("Scan failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, csvPath string, clean bool, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, jobs, err := di.Wire(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer container.Close()

	if csvPath != "" {
		if err := importHistory(ctx, container.History, csvPath, clean, log); err != nil {
			return fmt.Errorf("failed to import %s: %w", csvPath, err)
		}
	}

	out, err := jobs.Scan.Execute(ctx)
	if err != nil {
		return err
	}
	printResult(out)
	return nil
}

func importHistory(ctx context.Context, history *universe.HistoryDB, path string, clean bool, log zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	prices, err := universe.ReadPrices(f)
	if err != nil {
		return err
	}
	if clean {
		var logs []universe.InterpolationLog
		prices, logs = universe.NewPriceValidator(log).Clean(prices)
		log.Info().Int("interpolated", len(logs)).Msg("Cleaned imported history")
	}
	return history.UpsertPrices(ctx, prices)
}

func printResult(out *scanner.Output) {
	fmt.Printf("Run %s as of %s: %s\n", out.RunID, out.AsOf.Format("2006-01-02"), out.Status)
	if out.KillSwitchActive {
		fmt.Printf("Kill switch active (threshold %.4f), no new entries\n", out.Threshold)
	}
	if out.Calibration != nil {
		fmt.Printf("Best Sharpe %.3f with weights %v\n", out.Calibration.BestSharpe, out.Calibration.BestWeights)
	}
	if len(out.Candidates) > 0 {
		fmt.Printf("\n%-10s %10s %10s %10s %10s %10s %6s\n", "Ticker", "Score", "Shares", "Price", "Cost", "Capacity", "Sig")
	}
	for _, c := range out.Candidates {
		capacity := "n/a"
		if !math.IsNaN(c.CapacityUsage) {
			capacity = fmt.Sprintf("%.4f", c.CapacityUsage)
		}
		fmt.Printf("%-10s %10.4f %10.0f %10.2f %10.2f %10s %6.3f\n",
			c.Ticker, c.CompositeScore, c.VolAdjShares, c.EstEntryPrice, c.EstSlippageCost, capacity, c.Significance)
	}
	if out.ReportPath != "" {
		fmt.Printf("\nReport: %s\n", out.ReportPath)
	}
}
