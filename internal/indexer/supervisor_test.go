package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"poolOracle/internal/dex/dextest"
	"poolOracle/internal/model"
)

// blockingStream never delivers anything and returns when ctx ends.
type blockingStream struct{}

func (blockingStream) Stream(ctx context.Context, _ solana.PublicKey, opened func(), _ func(model.AccountUpdate) error) error {
	if opened != nil {
		opened()
	}
	<-ctx.Done()
	return ctx.Err()
}

// flakyStream fails the first failures calls per account, then delivers one
// update and blocks.
type flakyStream struct {
	mu       sync.Mutex
	failures int
	calls    map[solana.PublicKey]int
}

func (s *flakyStream) Stream(ctx context.Context, account solana.PublicKey, opened func(), fn func(model.AccountUpdate) error) error {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[solana.PublicKey]int)
	}
	s.calls[account]++
	call := s.calls[account]
	s.mu.Unlock()

	if call <= s.failures {
		return errors.New("connection reset")
	}
	opened()
	if err := fn(model.AccountUpdate{Pool: account, Slot: uint64(call), ReceivedAt: time.Now()}); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *flakyStream) Calls(account solana.PublicKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[account]
}

// scriptedStream keeps session i up for script[i] and then drops it. Calls
// past the end of the script block until ctx ends.
type scriptedStream struct {
	mu     sync.Mutex
	script []time.Duration
	starts []time.Time
	ends   []time.Time
}

func (s *scriptedStream) Stream(ctx context.Context, _ solana.PublicKey, opened func(), _ func(model.AccountUpdate) error) error {
	s.mu.Lock()
	call := len(s.starts)
	s.starts = append(s.starts, time.Now())
	s.mu.Unlock()

	if call >= len(s.script) {
		opened()
		<-ctx.Done()
		return ctx.Err()
	}

	opened()
	select {
	case <-time.After(s.script[call]):
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.ends = append(s.ends, time.Now())
	s.mu.Unlock()
	return errors.New("connection reset")
}

// gap returns the time between the end of session i and the start of i+1.
func (s *scriptedStream) gap(i int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts[i+1].Sub(s.ends[i])
}

func (s *scriptedStream) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.starts)
}

func TestBackoffSchedule(t *testing.T) {
	b := backoff{max: 100 * time.Millisecond}
	want := []time.Duration{10, 20, 40, 80, 100, 100}
	for i, w := range want {
		if got := b.next(0); got != w*time.Millisecond {
			t.Fatalf("wait %d: got %s, want %s", i, got, w*time.Millisecond)
		}
	}
	if got := b.next(150 * time.Millisecond); got != 10*time.Millisecond {
		t.Fatalf("wait after long session: got %s, want 10ms", got)
	}
	if got := b.next(0); got != 20*time.Millisecond {
		t.Fatalf("wait after reset: got %s, want 20ms", got)
	}
}

func TestSupervisorBackoffResetsAfterHealthySession(t *testing.T) {
	backoffMax := 200 * time.Millisecond
	// Five quick drops push the wait to the max, then a session that
	// outlives the max drops and the next wait starts over.
	stream := &scriptedStream{script: []time.Duration{0, 0, 0, 0, 0, 3 * backoffMax}}
	sup := NewSupervisor(SupervisorConfig{Reconnect: true, BackoffMax: backoffMax}, stream, zaptest.NewLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, []solana.PublicKey{dextest.Key(1)}, make(chan model.AccountUpdate, 1)) }()

	require.Eventually(t, func() bool { return stream.Starts() == 7 }, 10*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("supervisor did not stop")
	}

	require.GreaterOrEqual(t, stream.gap(0), backoffMax/10)
	require.GreaterOrEqual(t, stream.gap(4), backoffMax*3/4)
	require.Less(t, stream.gap(5), backoffMax/2)
	require.Equal(t, 6, sup.Statuses()[0].Reconnects)
}

func TestSupervisorReportsStreamingOnOpen(t *testing.T) {
	sup := NewSupervisor(SupervisorConfig{Reconnect: true}, blockingStream{}, zaptest.NewLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, []solana.PublicKey{dextest.Key(1)}, make(chan model.AccountUpdate)) }()

	require.Eventually(t, func() bool {
		st := sup.Statuses()
		return len(st) == 1 && st[0].State == model.SubscriberStreaming && st[0].Updates == 0
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("supervisor did not stop")
	}
}

func TestSupervisorWithoutReconnectStopsOnFailure(t *testing.T) {
	stream := &flakyStream{failures: 1}
	sup := NewSupervisor(SupervisorConfig{Reconnect: false}, stream, zaptest.NewLogger(t), nil)
	pool := dextest.Key(1)
	out := make(chan model.AccountUpdate, 4)

	require.NoError(t, sup.Run(context.Background(), []solana.PublicKey{pool}, out))
	require.Equal(t, 1, stream.Calls(pool))
	require.Empty(t, out)

	statuses := sup.Statuses()
	require.Len(t, statuses, 1)
	require.Equal(t, model.SubscriberStopped, statuses[0].State)
	require.Equal(t, "connection reset", statuses[0].LastError)
}

func TestSupervisorReconnects(t *testing.T) {
	stream := &flakyStream{failures: 2}
	sup := NewSupervisor(SupervisorConfig{Reconnect: true, BackoffMax: 20 * time.Millisecond}, stream, zaptest.NewLogger(t), nil)
	poolA, poolB := dextest.Key(1), dextest.Key(2)
	out := make(chan model.AccountUpdate, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, []solana.PublicKey{poolA, poolB}, out) }()

	received := map[solana.PublicKey]bool{}
	for len(received) < 2 {
		select {
		case u := <-out:
			received[u.Pool] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for updates")
		}
	}

	require.Eventually(t, func() bool {
		for _, st := range sup.Statuses() {
			if st.Reconnects != 2 || st.Updates != 1 || st.State != model.SubscriberStreaming {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("supervisor did not stop")
	}
	for _, st := range sup.Statuses() {
		require.Equal(t, model.SubscriberStopped, st.State)
	}
	require.Equal(t, 3, stream.Calls(poolA))
	require.Equal(t, 3, stream.Calls(poolB))
}

func TestSupervisorBackpressureRespectsCancel(t *testing.T) {
	stream := &flakyStream{}
	sup := NewSupervisor(SupervisorConfig{Reconnect: false}, stream, zaptest.NewLogger(t), nil)
	out := make(chan model.AccountUpdate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, []solana.PublicKey{dextest.Key(1)}, out) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("blocked send did not observe cancel")
	}
}

func TestSupervisorRequiresPools(t *testing.T) {
	sup := NewSupervisor(SupervisorConfig{}, blockingStream{}, nil, nil)
	require.Error(t, sup.Run(context.Background(), nil, make(chan model.AccountUpdate)))
}
