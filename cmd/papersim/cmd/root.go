package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"papersim/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "papersim",
	Short: "A live paper-trading simulator for crypto markets",
	Long: `Papersim is a paper-trading simulator driven by a live exchange
trade stream.

It maintains leveraged positions with isolated margin accounting,
computes continuous profit/loss, detects and executes liquidation,
aggregates ticks into OHLC candles for charting, and persists the
account state across sessions.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (papersim.yaml in the working directory if present)")
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	if _, err := os.Stat("papersim.yaml"); err == nil {
		return config.LoadFromFile("papersim.yaml")
	}
	return config.Default(), nil
}
