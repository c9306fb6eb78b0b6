package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ranger",
		Short:        "Concentrated liquidity range manager",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "https://arb1.arbitrum.io/rpc", "RPC URL")
	root.PersistentFlags().Uint64("chain-id", 42161, "expected chain id")
	root.PersistentFlags().String("position-manager", "0xC36442b4a4522E871399CD717aBDD847Ab11FE88", "nonfungible position manager address")
	root.PersistentFlags().String("pool", "0xC31E54c7a869B9FcBEcc14363CF510d1c41fa443", "pool address")
	root.PersistentFlags().String("router", "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45", "swap router address")
	root.PersistentFlags().String("max-ratio-deviation", "0.3", "lowest accepted value0/balance1 ratio; its reciprocal is the highest")
	root.PersistentFlags().String("max-slippage", "0.01", "max slippage as a fraction")
	root.PersistentFlags().Int32("half-width", 2, "range half width in tick spacings")
	root.PersistentFlags().String("position-store", "memory", "position store (memory, file, postgres)")
	root.PersistentFlags().String("position-file", "./data/position.json", "position file for the file store")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run <private-key>",
		Short: "Manage the position until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE:  runRanger,
	}

	runCmd.Flags().Duration("tick-interval", time.Minute, "time between ticks")
	runCmd.Flags().Duration("open-deadline", time.Minute, "mint deadline delay")
	runCmd.Flags().Duration("withdraw-deadline", 30*time.Minute, "decreaseLiquidity deadline delay")
	runCmd.Flags().Duration("confirm-timeout", 10*time.Minute, "max wait for a transaction receipt")
	runCmd.Flags().String("journal", "", "action journal JSONL path")

	root.AddCommand(runCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print pool state and, with --wallet, the rebalance decision",
		Args:  cobra.NoArgs,
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("wallet", "", "wallet address to read holdings for")
	inspectCmd.Flags().String("journal", "", "action journal JSONL path to summarize")

	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
