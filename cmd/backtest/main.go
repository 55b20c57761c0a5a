package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aristath/quantfolio/internal/config"
	"github.com/aristath/quantfolio/internal/marketdata"
	"github.com/aristath/quantfolio/internal/modules/allocation"
	"github.com/aristath/quantfolio/internal/modules/backtest"
	"github.com/aristath/quantfolio/internal/modules/safety"
	"github.com/aristath/quantfolio/internal/modules/scoring"
	"github.com/aristath/quantfolio/internal/modules/sizing"
	"github.com/aristath/quantfolio/pkg/logger"
)

func main() {
	var (
		symbolsFlag = flag.String("symbols", "ALPHA,BRAVO,CHARLIE,DELTA,ECHO", "comma-separated ticker list")
		days        = flag.Int("days", 756, "business days of history to load")
		seed        = flag.Int64("seed", 42, "synthetic data seed")
		method      = flag.String("method", allocation.MethodKellyConstrained, "allocation method: kelly_constrained, equal_weight, risk_parity")
		historyDir  = flag.String("history", "", "load real history from this directory instead of synthetic data")
		benchmark   = flag.String("benchmark", "SPY.US", "benchmark symbol for -history mode")
		diagnostics = flag.Bool("diagnostics", true, "run IC decay, stress test and regime diagnostics")
	)
	flag.Parse()

	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting walk-forward backtest")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	symbols := strings.Split(*symbolsFlag, ",")
	for i := range symbols {
		symbols[i] = strings.TrimSpace(symbols[i])
	}

	var provider marketdata.Provider
	if *historyDir != "" {
		provider = marketdata.NewHistoryDB(marketdata.HistoryDBConfig{
			HistoryDir:      *historyDir,
			BenchmarkSymbol: *benchmark,
		}, log)
	} else {
		sectors := map[string]string{}
		sectorNames := []string{"Technology", "Financials", "Energy"}
		for i, s := range symbols {
			sectors[s] = sectorNames[i%len(sectorNames)]
		}
		provider = marketdata.NewSynthetic(*seed, sectors, log)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := provider.Load(ctx, symbols, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load price panel")
	}

	engineCfg := scoring.DefaultConfig()
	engineCfg.MinLookback = cfg.MinTrainingDays
	engine := scoring.NewEngine(engineCfg, log)

	filter := safety.NewFilter(cfg.MinAvgVolume, cfg.MaxMissingFrac)
	sizer := sizing.NewSizer(cfg.KellyCap, cfg.MinKellySample, cfg.RiskFreeRate)

	constraints := allocation.Constraints{
		MaxNameWeight:     cfg.MaxNameWeight,
		MaxSectorWeight:   cfg.MaxSectorWeight,
		TurnoverBudget:    cfg.TurnoverBudget,
		TargetGross:       cfg.TargetGross,
		CorrelationTarget: cfg.CorrelationTarget,
		ShrinkageDelta:    cfg.ShrinkageDelta,
	}

	var allocator allocation.Allocator
	switch *method {
	case allocation.MethodEqualWeight:
		allocator = allocation.NewEqualWeight(constraints)
	case allocation.MethodRiskParity:
		allocator = allocation.NewRiskParity(constraints)
	default:
		allocator = allocation.NewKellyConstrained(constraints, log)
	}

	bt, err := backtest.New(backtest.Config{
		LookbackDays:    cfg.LookbackDays,
		MinTrainingDays: cfg.MinTrainingDays,
		Frequency:       cfg.RebalanceFrequency,
		TopK:            cfg.TopKPositions,
		CostBps:         cfg.TransactionCostBps,
		TargetGross:     cfg.TargetGross,
		TurnoverBudget:  cfg.TurnoverBudget,
		Workers:         cfg.Workers,
	}, engine, filter, sizer, allocator, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct backtester")
	}

	result, err := bt.Run(ctx, p)
	if err != nil {
		log.Fatal().Err(err).Str("state", string(result.State)).Msg("Backtest failed")
	}

	printReport(result)

	if *diagnostics {
		ic := backtest.ICDecay(result, p)
		stress, stressErr := backtest.StressTest(p, filter, result.FinalWeights(), cfg.LookbackDays)

		fmt.Println("\nIC decay:")
		for _, h := range ic.Horizons {
			fmt.Printf("  %3dd  IC %+.4f  t %+.2f  significant=%v  (n=%d)\n",
				h.Horizon, h.MeanIC, h.TStat, h.Significant, h.Samples)
		}
		fmt.Printf("  decay rate: %.2f\n", ic.DecayRate)

		if stressErr != nil {
			log.Warn().Err(stressErr).Msg("Stress test failed")
		} else {
			fmt.Printf("\nBlack-swan stress: %.0f%% of names rejected, portfolio loss %.2f%%\n",
				stress.RejectedFraction*100, stress.PortfolioLoss*100)
		}

		fmt.Printf("\nReturn on turnover: %.4f\n", backtest.ReturnOnTurnover(result))
	}
}

func printReport(result *backtest.Result) {
	m := result.Metrics
	fmt.Printf("\nRun %s (%s)\n", result.RunID, result.State)
	fmt.Printf("  annual return:  %+.2f%%\n", m.AnnualReturn*100)
	fmt.Printf("  annual vol:     %.2f%%\n", m.AnnualVolatility*100)
	fmt.Printf("  sharpe:         %.2f\n", m.Sharpe)
	fmt.Printf("  sortino:        %.2f\n", m.Sortino)
	fmt.Printf("  max drawdown:   %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("  calmar:         %.2f\n", m.Calmar)
	fmt.Printf("  alpha:          %+.2f%%\n", m.Alpha*100)
	fmt.Printf("  info ratio:     %.2f\n", m.InformationRatio)
	fmt.Printf("  turnover:       %.2f (cost %.2f%%)\n", m.TotalTurnover, m.TotalCost*100)
	fmt.Printf("  rebalances:     %d (%d skipped)\n", m.Rebalances, m.SkippedRebalances)

	if weights := result.FinalWeights(); len(weights) > 0 {
		data, _ := json.MarshalIndent(weights, "  ", "  ")
		fmt.Printf("  final weights:  %s\n", data)
	}

	if len(result.Diagnostics) > 0 {
		fmt.Printf("\nDiagnostics (%d):\n", len(result.Diagnostics))
		for _, d := range result.Diagnostics {
			fmt.Println("  " + d)
		}
	}
}
