package indexer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"poolOracle/internal/dex"
	"poolOracle/internal/metrics"
	"poolOracle/internal/model"
	"poolOracle/internal/notify"
	"poolOracle/internal/pricing"
	"poolOracle/internal/storage"
)

// State is the orchestrator's position in the update cycle.
type State int32

const (
	StateIdle State = iota
	StateSubscribing
	StateDraining
	StateDecoding
	StateResolving
	StateCalculating
	StatePersisting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateDraining:
		return "draining"
	case StateDecoding:
		return "decoding"
	case StateResolving:
		return "resolving"
	case StateCalculating:
		return "calculating"
	case StatePersisting:
		return "persisting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Subscriptions fans pool updates into out until every subscriber stops.
type Subscriptions interface {
	Run(ctx context.Context, pools []solana.PublicKey, out chan<- model.AccountUpdate) error
}

// MarketResolver loads market keys for a pool's market.
type MarketResolver interface {
	Resolve(ctx context.Context, program, market solana.PublicKey) (model.MarketKeys, error)
}

// ReserveCalculator computes pool reserves.
type ReserveCalculator interface {
	Calculate(ctx context.Context, pool solana.PublicKey, state model.AmmPoolState, market model.MarketKeys) (model.ReserveSnapshot, error)
}

// RunConfig holds runtime settings for the orchestrator.
type RunConfig struct {
	Pools           []solana.PublicKey
	ChannelCapacity int
}

// Runner drains pool updates one at a time and persists their prices.
type Runner struct {
	cfg        RunConfig
	subs       Subscriptions
	decoder    dex.PoolDecoder
	resolver   MarketResolver
	calculator ReserveCalculator
	store      storage.PriceStore
	publisher  notify.Publisher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	state      atomic.Int32
	now        func() time.Time
}

// RunnerDeps groups the collaborators of a Runner.
type RunnerDeps struct {
	Subscriptions Subscriptions
	Decoder       dex.PoolDecoder
	Resolver      MarketResolver
	Calculator    ReserveCalculator
	Store         storage.PriceStore
	Publisher     notify.Publisher
	Metrics       *metrics.Metrics
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps RunnerDeps, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Runner{
		cfg:        cfg,
		subs:       deps.Subscriptions,
		decoder:    deps.Decoder,
		resolver:   deps.Resolver,
		calculator: deps.Calculator,
		store:      deps.Store,
		publisher:  publisher,
		logger:     logger,
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

// State reports the current cycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// Run subscribes to every pool and processes updates in arrival order until
// all subscribers have stopped. Per-update failures are logged and dropped.
func (r *Runner) Run(ctx context.Context) error {
	if r.subs == nil {
		return fmt.Errorf("subscriptions are nil")
	}
	if r.decoder == nil {
		return fmt.Errorf("pool decoder is nil")
	}
	if r.resolver == nil {
		return fmt.Errorf("market resolver is nil")
	}
	if r.calculator == nil {
		return fmt.Errorf("reserve calculator is nil")
	}
	if r.store == nil {
		return fmt.Errorf("price store is nil")
	}
	if r.cfg.ChannelCapacity <= 0 {
		return fmt.Errorf("channel capacity must be greater than zero")
	}
	if len(r.cfg.Pools) == 0 {
		return fmt.Errorf("at least one pool is required")
	}

	updates := make(chan model.AccountUpdate, r.cfg.ChannelCapacity)
	r.setState(StateSubscribing)
	go func() {
		defer close(updates)
		if err := r.subs.Run(ctx, r.cfg.Pools, updates); err != nil {
			r.logger.Error("subscriptions failed", zap.Error(err))
		}
	}()

	r.logger.Info("price fetcher start", zap.Int("pools", len(r.cfg.Pools)), zap.Int("channel_capacity", r.cfg.ChannelCapacity))
	r.setState(StateDraining)
	for update := range updates {
		if ctx.Err() != nil {
			continue
		}
		r.handle(ctx, update)
		r.setState(StateDraining)
	}

	r.setState(StateStopped)
	r.logger.Info("price fetcher stopped")
	return nil
}

func (r *Runner) handle(ctx context.Context, update model.AccountUpdate) {
	point, err := r.process(ctx, update)
	r.metrics.PipelineUpdate(model.ErrorKind(err))
	if err != nil {
		r.logger.Warn("update dropped",
			zap.String("pool", update.Pool.String()),
			zap.Uint64("slot", update.Slot),
			zap.String("kind", model.ErrorKind(err)),
			zap.Error(err),
		)
		return
	}

	r.logger.Debug("price saved", zap.String("pool", point.Pool.String()), zap.Float64("price", point.Price))
	if err := r.publisher.Publish(ctx, point); err != nil {
		r.logger.Warn("publish price failed", zap.String("pool", point.Pool.String()), zap.Error(err))
	}
}

// process runs one update through decode, resolve, calculate and persist.
func (r *Runner) process(ctx context.Context, update model.AccountUpdate) (model.PricePoint, error) {
	r.setState(StateDecoding)
	state, err := r.decoder.Decode(update.Data)
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("decode pool: %w", err)
	}

	r.setState(StateResolving)
	market, err := r.resolver.Resolve(ctx, state.MarketProgram, state.Market)
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("resolve market: %w", err)
	}

	r.setState(StateCalculating)
	snapshot, err := r.calculator.Calculate(ctx, update.Pool, state, market)
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("calculate reserves: %w", err)
	}
	price, err := pricing.Price(snapshot)
	if err != nil {
		return model.PricePoint{}, err
	}

	r.setState(StatePersisting)
	point := model.PricePoint{Pool: update.Pool, Price: price, Timestamp: r.now().UTC()}
	if _, err := r.store.Save(ctx, point); err != nil {
		return model.PricePoint{}, fmt.Errorf("save price: %w", err)
	}
	return point, nil
}
