// Package solana is a thin adapter over the solana-go RPC client for the
// read-only lookups the analytics core needs.
package solana

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

var (
	ErrAccountNotFound = errors.New("account not found")
)

// IsAccountNotFoundError reports whether err describes a missing account.
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// Client wraps a pool of RPC endpoints with logging and retry. Each attempt
// rotates to the next endpoint, so a degraded endpoint does not pin a whole
// computation.
type Client struct {
	pool       *rpcPool
	logger     *zap.Logger
	maxTries   uint
	retryDelay time.Duration
}

// NewClient creates a new client over the given RPC endpoints.
func NewClient(rpcURLs []string, retries int, logger *zap.Logger) *Client {
	if retries < 1 {
		retries = 1
	}
	return &Client{
		pool:       newRPCPool(rpcURLs),
		logger:     logger.Named("solana-client"),
		maxTries:   uint(retries),
		retryDelay: 500 * time.Millisecond,
	}
}

// GetAccountInfo fetches raw account info for a pubkey. A missing account is
// reported as ErrAccountNotFound and is not retried.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return retryRPC(ctx, c, "GetAccountInfo", func() (*rpc.GetAccountInfoResult, error) {
		result, err := c.pool.next().GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
		})
		if err != nil {
			if IsAccountNotFoundError(err) {
				return nil, backoff.Permanent(ErrAccountNotFound)
			}
			return nil, err
		}
		if result == nil || result.Value == nil {
			return nil, backoff.Permanent(ErrAccountNotFound)
		}
		return result, nil
	})
}

// GetAccountData fetches the raw data bytes of an account.
func (c *Client) GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	result, err := c.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return nil, err
	}
	data := result.Value.Data.GetBinary()
	if len(data) == 0 {
		return nil, ErrAccountNotFound
	}
	return data, nil
}

// GetMintDecimals returns the decimals count for a token mint.
func (c *Client) GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	result, err := retryRPC(ctx, c, "GetTokenSupply", func() (*rpc.GetTokenSupplyResult, error) {
		res, err := c.pool.next().GetTokenSupply(ctx, mint, rpc.CommitmentConfirmed)
		if err != nil {
			if IsAccountNotFoundError(err) {
				return nil, backoff.Permanent(ErrAccountNotFound)
			}
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return 0, err
	}
	if result.Value == nil {
		return 0, ErrAccountNotFound
	}
	return result.Value.Decimals, nil
}

// retryRPC runs op with exponential backoff, logging each retry.
func retryRPC[T any](ctx context.Context, c *Client, name string, op func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxInterval = c.retryDelay * 10

	notify := func(err error, duration time.Duration) {
		c.logger.Debug("retrying RPC call",
			zap.String("method", name),
			zap.Error(err),
			zap.Duration("backoff", duration))
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(notify))
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			c.logger.Error("RPC call failed", zap.String("method", name), zap.Error(err))
		}
		return result, err
	}
	return result, nil
}
