package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolOracle/internal/config"
	"poolOracle/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:          "oracle",
		Short:        "AMM pool price oracle",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("profile", "local", "config profile (local, dev, prod)")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-file", "", "optional rotated log file")
	root.PersistentFlags().Duration("average-window", 0, "average price window, 0 keeps the configured value")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Stream pool accounts and record prices",
		RunE:  runOracle,
	}

	runCmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated)")
	runCmd.Flags().String("stream-endpoint", "", "websocket endpoint for account subscriptions")
	runCmd.Flags().String("rpc-endpoint", "", "JSON-RPC endpoint for account fetches")
	runCmd.Flags().String("http-listen", "", "query API listen address, empty disables it")
	runCmd.Flags().Int("channel-capacity", 32, "update channel capacity")
	runCmd.Flags().Bool("clear-old-records", true, "periodically delete prices older than the retention horizon")

	root.AddCommand(runCmd)

	currentCmd := &cobra.Command{
		Use:   "current <pool>",
		Short: "Print the latest recorded price of a pool",
		Args:  cobra.ExactArgs(1),
		RunE:  runCurrent,
	}
	root.AddCommand(currentCmd)

	averageCmd := &cobra.Command{
		Use:   "average <pool>",
		Short: "Print the average price of a pool over the configured window",
		Args:  cobra.ExactArgs(1),
		RunE:  runAverage,
	}
	averageCmd.Flags().Duration("window", 0, "averaging window for this query, 0 uses average-window")
	root.AddCommand(averageCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List supported pools",
		RunE:  runPools,
	}
	poolsCmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated)")
	root.AddCommand(poolsCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect <pool>",
		Short: "Fetch a pool once and print its keys, reserves and spot price",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	inspectCmd.Flags().String("rpc-endpoint", "", "JSON-RPC endpoint for account fetches")
	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
