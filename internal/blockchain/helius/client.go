package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	rateLimit      = 300 // requests per minute
	requestTimeout = 10 * time.Second

	// whirlpoolSource restricts results to the AMM program's own
	// transactions, so unrelated activity on the same address never
	// reaches classification.
	whirlpoolSource = "ORCA"
)

// TokenTransfer is one transfer leg inside an enriched transaction.
// TokenAmount arrives as a decimal string; it is scaled to a raw integer
// downstream, never parsed as a float.
type TokenTransfer struct {
	FromUserAccount  string      `json:"fromUserAccount"`
	ToUserAccount    string      `json:"toUserAccount"`
	FromTokenAccount string      `json:"fromTokenAccount"`
	ToTokenAccount   string      `json:"toTokenAccount"`
	TokenAmount      json.Number `json:"tokenAmount"`
	Mint             string      `json:"mint"`
}

// Transaction is one enriched transaction record returned by the data API.
type Transaction struct {
	Signature      string          `json:"signature"`
	Timestamp      int64           `json:"timestamp"` // unix seconds, 0 when absent
	Type           string          `json:"type"`
	Fee            uint64          `json:"fee"` // lamports
	FeePayer       string          `json:"feePayer"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers"`
}

// Client talks to an enriched-transaction API (Helius-shaped).
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	logger      *zap.Logger
	rateLimiter *time.Ticker
	mu          sync.Mutex
}

// NewClient creates a new enriched-transaction API client.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		logger:      logger.Named("helius"),
		rateLimiter: time.NewTicker(time.Minute / rateLimit),
	}
}

// TransactionsForAddress fetches enriched transactions addressed to the given
// account, optionally filtered by transaction type. Results keep the API's own
// ordering (newest first).
func (c *Client) TransactionsForAddress(ctx context.Context, address, txType string, limit int) ([]Transaction, error) {
	values := url.Values{}
	if c.apiKey != "" {
		values.Set("api-key", c.apiKey)
	}
	if txType != "" {
		values.Set("type", txType)
	}
	values.Set("source", whirlpoolSource)
	if limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := fmt.Sprintf("%s/v0/addresses/%s/transactions?%s", c.baseURL, address, values.Encode())

	body, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for %s: %w", address, err)
	}

	var txs []Transaction
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions response: %w", err)
	}

	c.logger.Debug("fetched transactions",
		zap.String("address", address),
		zap.String("type", txType),
		zap.Int("count", len(txs)))

	return txs, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	// Serialize requests through the rate limiter; the upstream API is
	// shared across concurrent extractions.
	c.mu.Lock()
	select {
	case <-c.rateLimiter.C:
	case <-ctx.Done():
		c.mu.Unlock()
		return nil, ctx.Err()
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
