package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"papersim/feed"
	"papersim/sim"
	"papersim/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulator until interrupted",
	RunE:  runSimulator,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSimulator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	flush, err := cfg.Feed.ParseFlushInterval()
	if err != nil {
		return err
	}

	var slot store.Slot
	if cfg.Store.Path == "" {
		slot = store.NewMemory()
		logger.Info("no store path configured, state will not survive this session")
	} else {
		s, err := store.NewSQLite(cfg.Store.Path, store.DefaultSlotKey)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		slot = s
	}
	defer slot.Close()

	stream := feed.NewStream(cfg.Feed.StreamURL, logger)
	source := feed.NewClient(cfg.Feed.APIURL, logger)

	simulator := sim.New(sim.Config{
		Symbol:          cfg.Chart.Symbol,
		Timeframe:       cfg.Chart.Timeframe,
		SeedBars:        cfg.Chart.SeedBars,
		FlushInterval:   flush,
		StartingBalance: cfg.Account.Balance,
		Watchlist:       cfg.Watchlist,
	}, stream, source, slot, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("papersim running",
		zap.String("symbol", cfg.Chart.Symbol),
		zap.String("timeframe", cfg.Chart.Timeframe),
		zap.Strings("watchlist", cfg.Watchlist))

	if err := simulator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
