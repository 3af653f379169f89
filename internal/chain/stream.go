package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"poolOracle/internal/model"
)

// AccountStream delivers raw account updates for one account. Stream calls
// opened, when non-nil, once the subscription is live, then blocks until the
// connection is lost, fn fails, or ctx is cancelled.
type AccountStream interface {
	Stream(ctx context.Context, account solana.PublicKey, opened func(), fn func(model.AccountUpdate) error) error
}

// WSStream opens one websocket account subscription per Stream call.
type WSStream struct {
	endpoint   string
	commitment rpc.CommitmentType
	logger     *zap.Logger
	now        func() time.Time
}

// NewWSStream builds a websocket stream for the given endpoint.
func NewWSStream(endpoint string, commitment rpc.CommitmentType, logger *zap.Logger) *WSStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	if commitment == "" {
		commitment = rpc.CommitmentProcessed
	}
	return &WSStream{
		endpoint:   endpoint,
		commitment: commitment,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *WSStream) Stream(ctx context.Context, account solana.PublicKey, opened func(), fn func(model.AccountUpdate) error) error {
	client, err := ws.Connect(ctx, s.endpoint)
	if err != nil {
		return fmt.Errorf("%w: connect %s: %v", model.ErrNetwork, s.endpoint, err)
	}
	defer client.Close()

	sub, err := client.AccountSubscribeWithOpts(account, s.commitment, solana.EncodingBase64)
	if err != nil {
		return fmt.Errorf("%w: subscribe %s: %v", model.ErrNetwork, account, err)
	}
	defer sub.Unsubscribe()

	s.logger.Info("account subscription opened", zap.String("account", account.String()))
	if opened != nil {
		opened()
	}

	for {
		res, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: recv %s: %v", model.ErrNetwork, account, err)
		}
		if res == nil || res.Value.Data == nil {
			continue
		}

		update := model.AccountUpdate{
			Pool:       account,
			Data:       res.Value.Data.GetBinary(),
			Slot:       res.Context.Slot,
			ReceivedAt: s.now().UTC(),
		}
		if err := fn(update); err != nil {
			return err
		}
	}
}

var _ AccountStream = (*WSStream)(nil)
