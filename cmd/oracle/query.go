package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"

	"poolOracle/internal/chain"
	"poolOracle/internal/dex"
	"poolOracle/internal/indexer"
	"poolOracle/internal/model"
	"poolOracle/internal/pricing"
	"poolOracle/internal/query"
)

func runCurrent(cmd *cobra.Command, args []string) error {
	return runPriceQuery(cmd, args[0], func(ctx context.Context, svc *query.Service, pool solana.PublicKey) query.Response {
		return svc.Current(ctx, pool)
	})
}

func runAverage(cmd *cobra.Command, args []string) error {
	window, _ := cmd.Flags().GetDuration("window")
	return runPriceQuery(cmd, args[0], func(ctx context.Context, svc *query.Service, pool solana.PublicKey) query.Response {
		return svc.Average(ctx, pool, window)
	})
}

func runPriceQuery(cmd *cobra.Command, address string, ask func(context.Context, *query.Service, solana.PublicKey) query.Response) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.ValidateStore(); err != nil {
		return err
	}
	pool, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return fmt.Errorf("invalid pool address %q: %w", address, err)
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	resp := ask(ctx, query.NewService(store, nil, cfg.AverageWindow), pool)
	fmt.Fprintln(cmd.OutOrStdout(), resp.String())
	if e, ok := resp.(query.Error); ok {
		return fmt.Errorf("query failed: %s", e.Message)
	}
	return nil
}

func runPools(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pools, err := indexer.ParseAddresses(cfg.Pools)
	if err != nil {
		return err
	}
	for _, pool := range query.NewService(nil, pools, cfg.AverageWindow).SupportedPools() {
		fmt.Fprintln(cmd.OutOrStdout(), pool)
	}
	return nil
}

type inspection struct {
	State    model.AmmPoolState    `json:"state"`
	Keys     model.AmmKeys         `json:"keys"`
	Market   model.MarketKeys      `json:"market"`
	Reserves model.ReserveSnapshot `json:"reserves"`
	Price    *float64              `json:"price,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// runInspect runs one decode, resolve and calculate cycle against live
// accounts without touching the store.
func runInspect(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPC.Endpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	pool, err := solana.PublicKeyFromBase58(args[0])
	if err != nil {
		return fmt.Errorf("invalid pool address %q: %w", args[0], err)
	}
	program, err := solana.PublicKeyFromBase58(cfg.AmmProgramID)
	if err != nil {
		return fmt.Errorf("invalid amm program id: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	client, err := chain.NewClient(chain.ClientConfig{
		Endpoint:   cfg.RPC.Endpoint,
		Commitment: rpc.CommitmentProcessed,
		RPS:        cfg.RPC.RPS,
		Burst:      cfg.RPC.Burst,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	data, err := client.GetAccount(ctx, pool)
	if err != nil {
		return fmt.Errorf("fetch pool: %w", err)
	}
	state, err := dex.DecodeAmmInfo(data)
	if err != nil {
		return err
	}
	keys, err := dex.LoadAmmKeys(program, pool, state)
	if err != nil {
		return err
	}
	market, err := dex.NewMarketResolver(client).Resolve(ctx, state.MarketProgram, state.Market)
	if err != nil {
		return fmt.Errorf("resolve market: %w", err)
	}
	reserves, err := pricing.NewCalculator(client).Calculate(ctx, pool, state, market)
	if err != nil {
		return fmt.Errorf("calculate reserves: %w", err)
	}

	out := inspection{State: state, Keys: keys, Market: market, Reserves: reserves}
	if price, err := pricing.Price(reserves); err != nil {
		out.Error = err.Error()
	} else {
		out.Price = &price
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
