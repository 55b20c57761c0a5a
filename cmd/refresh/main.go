package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aristath/quantfolio/internal/config"
	"github.com/aristath/quantfolio/internal/database"
	"github.com/aristath/quantfolio/internal/marketdata"
	"github.com/aristath/quantfolio/internal/modules/scoring"
	"github.com/aristath/quantfolio/internal/scheduler"
	"github.com/aristath/quantfolio/pkg/logger"
)

func main() {
	var (
		symbolsFlag = flag.String("symbols", "", "comma-separated ticker list (default: stored universe)")
		benchmark   = flag.String("benchmark", "SPY.US", "benchmark symbol")
		volIndex    = flag.String("volindex", "", "volatility index symbol (optional)")
		once        = flag.Bool("once", false, "run the refresh once and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting score refresh daemon")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	securities := marketdata.NewSecurityRepository(db, log)

	var symbols []string
	if *symbolsFlag != "" {
		for _, s := range strings.Split(*symbolsFlag, ",") {
			symbols = append(symbols, strings.TrimSpace(s))
		}
		for _, s := range symbols {
			if err := securities.Upsert(marketdata.Security{Symbol: s}); err != nil {
				log.Warn().Err(err).Str("symbol", s).Msg("Failed to store security")
			}
		}
	} else {
		universe, err := securities.All()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load universe")
		}
		for _, sec := range universe {
			symbols = append(symbols, sec.Symbol)
		}
	}
	if len(symbols) == 0 {
		log.Fatal().Msg("No symbols: pass -symbols or seed the securities table")
	}

	sectors, err := securities.Sectors()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load sectors")
	}

	provider := marketdata.NewHistoryDB(marketdata.HistoryDBConfig{
		HistoryDir:      cfg.HistoryDir,
		BenchmarkSymbol: *benchmark,
		VolIndexSymbol:  *volIndex,
		Sectors:         sectors,
	}, log)

	engine := scoring.NewEngine(scoring.DefaultConfig(), log)
	repo := scoring.NewRepository(db, log)

	job := scheduler.NewRefreshJob(provider, engine, repo, symbols, cfg.LookbackDays, log)

	sched := scheduler.New(log)

	if *once {
		if err := sched.RunNow(job); err != nil {
			log.Fatal().Err(err).Msg("Refresh failed")
		}
		return
	}

	if err := sched.AddJob(cfg.RefreshSchedule, job); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}

	sched.Start()
	defer sched.Stop()

	log.Info().Str("schedule", cfg.RefreshSchedule).Msg("Refresh daemon running")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
}
