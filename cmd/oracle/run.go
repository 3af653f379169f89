package main

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolOracle/internal/chain"
	"poolOracle/internal/config"
	"poolOracle/internal/dex"
	"poolOracle/internal/indexer"
	"poolOracle/internal/metrics"
	"poolOracle/internal/notify"
	"poolOracle/internal/pricing"
	"poolOracle/internal/query"
	"poolOracle/internal/storage"
	"poolOracle/internal/storage/postgres"
)

func runOracle(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	pools, err := indexer.ParseAddresses(cfg.Pools)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	m := metrics.New()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	chainClient, err := chain.NewClient(chain.ClientConfig{
		Endpoint:   cfg.RPC.Endpoint,
		Commitment: rpc.CommitmentProcessed,
		RPS:        cfg.RPC.RPS,
		Burst:      cfg.RPC.Burst,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	publisher, closePublishers, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublishers()

	stream := chain.NewWSStream(cfg.Stream.Endpoint, rpc.CommitmentType(cfg.Stream.Commitment), logger)
	supervisor := indexer.NewSupervisor(indexer.SupervisorConfig{
		Reconnect:  cfg.Stream.Reconnect,
		BackoffMax: cfg.Stream.BackoffMax,
	}, stream, logger, m)

	runner := indexer.NewRunner(indexer.RunConfig{
		Pools:           pools,
		ChannelCapacity: cfg.ChannelCapacity,
	}, indexer.RunnerDeps{
		Subscriptions: supervisor,
		Decoder:       dex.AmmV4Decoder{},
		Resolver:      dex.NewMarketResolver(chainClient),
		Calculator:    pricing.NewCalculator(chainClient),
		Store:         store,
		Publisher:     publisher,
		Metrics:       m,
	}, logger)

	logger.Info("oracle start",
		zap.String("profile", cfg.Profile),
		zap.Int("pools", len(pools)),
		zap.String("stream", cfg.Stream.Endpoint),
		zap.String("commitment", cfg.Stream.Commitment),
		zap.String("rpc", cfg.RPC.Endpoint),
		zap.Bool("reconnect", cfg.Stream.Reconnect),
		zap.Bool("clear_old_records", cfg.Database.ClearOldRecords),
		zap.String("http", cfg.HTTPListen),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := pond.NewPool(3)
	group := workers.NewGroup()

	// The pipeline ending for any reason stops the other components.
	group.SubmitErr(func() error {
		defer cancel()
		return runner.Run(runCtx)
	})

	if cfg.Database.ClearOldRecords {
		retention := storage.NewRetention(store, storage.RetentionConfig{
			Horizon:  cfg.Database.Retention,
			Interval: cfg.Database.RetentionInterval,
		}, logger, m)
		group.SubmitErr(func() error {
			if err := retention.Run(runCtx); err != nil {
				cancel()
				return fmt.Errorf("retention: %w", err)
			}
			return nil
		})
	}

	if cfg.HTTPListen != "" {
		service := query.NewService(store, pools, cfg.AverageWindow)
		server := query.NewServer(service, indexer.Health{Runner: runner, Supervisor: supervisor}, m.Handler(), logger)
		group.SubmitErr(func() error {
			if err := server.ListenAndServe(runCtx, cfg.HTTPListen); err != nil {
				cancel()
				return fmt.Errorf("query server: %w", err)
			}
			return nil
		})
	}

	err = group.Wait()
	workers.StopAndWait()
	if err != nil {
		return err
	}
	logger.Info("oracle stopped")
	return nil
}

func connectStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*postgres.Store, error) {
	store, err := postgres.NewStore(ctx, postgres.Config{
		DSN:          cfg.Database.DSN,
		MinConns:     cfg.Database.MinConns,
		MaxConns:     cfg.Database.MaxConns,
		ConnRetries:  cfg.Database.ConnRetries,
		RetryBackoff: cfg.Database.RetryBackoff,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return store, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*postgres.Store, error) {
	store, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// buildPublisher wires the optional Redis and journal sinks.
func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Publisher, func(), error) {
	var sinks notify.Multi
	closeFn := func() {}

	if cfg.Redis.Addr != "" {
		redisPub, err := notify.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Channel, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, redisPub)
		closeFn = func() {
			if err := redisPub.Close(); err != nil {
				logger.Warn("close redis", zap.Error(err))
			}
		}
	}
	if cfg.JournalPath != "" {
		sinks = append(sinks, notify.NewJournal(cfg.JournalPath))
	}

	if len(sinks) == 0 {
		return notify.Nop{}, closeFn, nil
	}
	return sinks, closeFn, nil
}
