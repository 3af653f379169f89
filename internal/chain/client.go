package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"

	"poolOracle/internal/model"
)

// maxMultipleAccounts is the getMultipleAccounts batch limit of the RPC node.
const maxMultipleAccounts = 100

// ClientConfig holds JSON-RPC settings.
type ClientConfig struct {
	Endpoint   string
	Commitment rpc.CommitmentType
	RPS        float64
	Burst      int
}

// Client wraps the solana-go JSON-RPC client and throttles every call.
type Client struct {
	rpcClient  *rpc.Client
	limiter    *rate.Limiter
	commitment rpc.CommitmentType
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rpc endpoint is empty")
	}
	commitment := cfg.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentProcessed
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		rpcClient:  rpc.New(cfg.Endpoint),
		limiter:    rate.NewLimiter(limit, burst),
		commitment: commitment,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		_ = c.rpcClient.Close()
	}
}

// GetAccount returns the raw data of one account.
func (c *Client) GetAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := c.rpcClient.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, addr)
		}
		return nil, fmt.Errorf("%w: get account %s: %v", model.ErrNetwork, addr, err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, addr)
	}
	return res.Value.Data.GetBinary(), nil
}

// GetMultipleAccounts returns account data in the order of addrs. Any
// missing account fails the whole call.
func (c *Client) GetMultipleAccounts(ctx context.Context, addrs []solana.PublicKey) ([][]byte, error) {
	out := make([][]byte, 0, len(addrs))
	for start := 0; start < len(addrs); start += maxMultipleAccounts {
		end := start + maxMultipleAccounts
		if end > len(addrs) {
			end = len(addrs)
		}
		batch, err := c.getMultiple(ctx, addrs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *Client) getMultiple(ctx context.Context, addrs []solana.PublicKey) ([][]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := c.rpcClient.GetMultipleAccountsWithOpts(ctx, addrs, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get multiple accounts: %v", model.ErrNetwork, err)
	}
	if res == nil || len(res.Value) != len(addrs) {
		return nil, fmt.Errorf("%w: get multiple accounts: unexpected result size", model.ErrNetwork)
	}

	out := make([][]byte, len(addrs))
	for i, account := range res.Value {
		if account == nil || account.Data == nil {
			return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, addrs[i])
		}
		out[i] = account.Data.GetBinary()
	}
	return out, nil
}
