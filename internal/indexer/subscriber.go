package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"poolOracle/internal/chain"
	"poolOracle/internal/model"
)

// backoff is the reconnect delay schedule of one subscriber. The first wait
// is max/10 and each following one doubles up to max. A session that stayed
// up longer than max starts the schedule over.
type backoff struct {
	max  time.Duration
	wait time.Duration
}

func (b *backoff) next(session time.Duration) time.Duration {
	if b.wait == 0 || session > b.max {
		b.wait = b.max / 10
		return b.wait
	}
	b.wait *= 2
	if b.wait > b.max {
		b.wait = b.max
	}
	return b.wait
}

// subscriber streams one pool into the shared fan-in channel.
type subscriber struct {
	pool    solana.PublicKey
	stream  chain.AccountStream
	out     chan<- model.AccountUpdate
	logger  *zap.Logger
	report  func(solana.PublicKey, func(*model.SubscriberStatus))
	backoff backoff
	// session is the length of the last subscription. It is written by the
	// subscription goroutine before its error is delivered and read by the
	// next resubscribe call.
	session time.Duration
}

// opened marks the subscription as live before its first update arrives.
func (s *subscriber) opened() {
	s.report(s.pool, func(st *model.SubscriberStatus) { st.State = model.SubscriberStreaming })
}

// forward blocks while the channel is full and gives up when ctx ends.
func (s *subscriber) forward(ctx context.Context, update model.AccountUpdate) error {
	select {
	case s.out <- update:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.report(s.pool, func(st *model.SubscriberStatus) {
		st.State = model.SubscriberStreaming
		st.Updates++
		st.LastUpdate = update.ReceivedAt
	})
	return nil
}

// runOnce streams until the first connection loss.
func (s *subscriber) runOnce(ctx context.Context) {
	s.report(s.pool, func(st *model.SubscriberStatus) { st.State = model.SubscriberConnecting })
	err := s.stream.Stream(ctx, s.pool, s.opened, func(u model.AccountUpdate) error {
		return s.forward(ctx, u)
	})
	s.stopped(ctx, err)
}

// runResubscribing reconnects after every connection loss, waiting
// according to the subscriber's backoff schedule.
func (s *subscriber) runResubscribing(ctx context.Context, backoffMax time.Duration) {
	s.backoff = backoff{max: backoffMax}
	sub := event.ResubscribeErr(backoffMax, s.resubscribe(ctx))
	select {
	case <-ctx.Done():
	case <-sub.Err():
	}
	sub.Unsubscribe()
	s.stopped(ctx, nil)
}

func (s *subscriber) resubscribe(ctx context.Context) event.ResubscribeErrFunc {
	return func(attemptCtx context.Context, lastErr error) (event.Subscription, error) {
		if ctx.Err() != nil {
			return done(), nil
		}
		if lastErr != nil {
			wait := s.backoff.next(s.session)
			s.logger.Warn("subscription lost",
				zap.String("pool", s.pool.String()),
				zap.Duration("session", s.session),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			s.report(s.pool, func(st *model.SubscriberStatus) {
				st.State = model.SubscriberBackoff
				st.LastError = lastErr.Error()
			})

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return done(), nil
			case <-attemptCtx.Done():
				timer.Stop()
				return done(), nil
			}
			s.report(s.pool, func(st *model.SubscriberStatus) { st.Reconnects++ })
		}
		s.report(s.pool, func(st *model.SubscriberStatus) { st.State = model.SubscriberConnecting })

		return event.NewSubscription(func(quit <-chan struct{}) error {
			streamCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-quit:
					cancel()
				case <-streamCtx.Done():
				}
			}()

			started := time.Now()
			err := s.stream.Stream(streamCtx, s.pool, s.opened, func(u model.AccountUpdate) error {
				return s.forward(streamCtx, u)
			})
			s.session = time.Since(started)
			if streamCtx.Err() != nil {
				return nil
			}
			if err == nil {
				err = errors.New("stream closed")
			}
			return err
		}), nil
	}
}

// done is a subscription that ends the resubscribe loop immediately.
func done() event.Subscription {
	return event.NewSubscription(func(<-chan struct{}) error { return nil })
}

func (s *subscriber) stopped(ctx context.Context, err error) {
	if err != nil && ctx.Err() == nil {
		s.logger.Error("subscription ended", zap.String("pool", s.pool.String()), zap.Error(err))
	}
	s.report(s.pool, func(st *model.SubscriberStatus) {
		st.State = model.SubscriberStopped
		if err != nil && ctx.Err() == nil {
			st.LastError = err.Error()
		}
	})
}
