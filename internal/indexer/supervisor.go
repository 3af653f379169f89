package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"poolOracle/internal/chain"
	"poolOracle/internal/metrics"
	"poolOracle/internal/model"
)

// SupervisorConfig controls subscription lifecycles.
type SupervisorConfig struct {
	Reconnect  bool
	BackoffMax time.Duration
}

// Supervisor runs one subscriber per pool and tracks their status.
type Supervisor struct {
	cfg      SupervisorConfig
	stream   chain.AccountStream
	logger   *zap.Logger
	metrics  *metrics.Metrics
	statuses *xsync.Map[string, model.SubscriberStatus]
}

func NewSupervisor(cfg SupervisorConfig, stream chain.AccountStream, logger *zap.Logger, m *metrics.Metrics) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	return &Supervisor{
		cfg:      cfg,
		stream:   stream,
		logger:   logger,
		metrics:  m,
		statuses: xsync.NewMap[string, model.SubscriberStatus](),
	}
}

// Run starts every subscriber and blocks until all of them have stopped.
// Without reconnects a subscriber stops at its first connection loss.
func (s *Supervisor) Run(ctx context.Context, pools []solana.PublicKey, out chan<- model.AccountUpdate) error {
	if s.stream == nil {
		return fmt.Errorf("account stream is nil")
	}
	if len(pools) == 0 {
		return fmt.Errorf("at least one pool is required")
	}

	workers := pond.NewPool(len(pools))
	group := workers.NewGroupContext(ctx)

	for _, pool := range pools {
		sub := &subscriber{
			pool:   pool,
			stream: s.stream,
			out:    out,
			logger: s.logger,
			report: s.update,
		}
		s.update(pool, func(st *model.SubscriberStatus) { st.State = model.SubscriberConnecting })

		group.Submit(func() {
			if s.cfg.Reconnect {
				sub.runResubscribing(ctx, s.cfg.BackoffMax)
				return
			}
			sub.runOnce(ctx)
		})
	}

	s.logger.Info("subscribers started", zap.Int("pools", len(pools)), zap.Bool("reconnect", s.cfg.Reconnect))
	_ = group.Wait()
	workers.StopAndWait()
	s.logger.Info("subscribers stopped")
	return nil
}

// Statuses returns a snapshot of every subscriber, ordered by pool.
func (s *Supervisor) Statuses() []model.SubscriberStatus {
	out := make([]model.SubscriberStatus, 0, s.statuses.Size())
	s.statuses.Range(func(_ string, st model.SubscriberStatus) bool {
		out = append(out, st)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Pool < out[j].Pool })
	return out
}

func (s *Supervisor) update(pool solana.PublicKey, fn func(*model.SubscriberStatus)) {
	key := pool.String()
	st, _ := s.statuses.Compute(key, func(old model.SubscriberStatus, loaded bool) (model.SubscriberStatus, xsync.ComputeOp) {
		if !loaded {
			old = model.SubscriberStatus{Pool: key}
		}
		reconnects := old.Reconnects
		fn(&old)
		if old.Reconnects > reconnects {
			s.metrics.SubscriberReconnect(key)
		}
		return old, xsync.UpdateOp
	})
	s.metrics.SubscriberState(key, st.State)
	if !st.LastUpdate.IsZero() {
		s.metrics.SubscriberUpdate(key, st.LastUpdate)
	}
}
