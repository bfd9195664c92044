// Package pricing resolves token mints to USD prices, spot or historical.
//
// Lookups never fail: an unknown mint, a network error or an unparseable
// response all yield a zero price and a warning log. Zero therefore means
// "price unavailable", not a worthless asset; one missing price must not
// abort a whole metrics run. The cost is that the affected leg's USD value is
// silently zeroed, which callers document rather than fix.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	rateLimit      = 30 // requests per minute
	requestTimeout = 10 * time.Second
	spotCacheTTL   = 30 * time.Second
)

type cachedPrice struct {
	price     decimal.Decimal
	fetchedAt time.Time
	spot      bool
}

// Oracle is the price-feed adapter.
type Oracle struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	logger      *zap.Logger
	rateLimiter *time.Ticker

	mu    sync.Mutex
	cache map[string]cachedPrice
}

// NewOracle creates a price oracle against a CoinGecko-shaped API.
func NewOracle(baseURL, apiKey string, logger *zap.Logger) *Oracle {
	return &Oracle{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		logger:      logger.Named("pricing"),
		rateLimiter: time.NewTicker(time.Minute / rateLimit),
		cache:       make(map[string]cachedPrice),
	}
}

// PriceUSD returns the USD price of a token mint. A zero `at` means spot;
// otherwise the price for the UTC calendar day of `at` is returned, so two
// timestamps on the same UTC day receive identical prices. Sub-day history is
// not supported by the feed.
func (o *Oracle) PriceUSD(ctx context.Context, mint string, at time.Time) decimal.Decimal {
	feedID, ok := ResolveFeedID(mint)
	if !ok {
		o.logger.Warn("no price feed mapping for mint", zap.String("mint", mint))
		return decimal.Zero
	}

	spot := at.IsZero()
	dateKey := "spot"
	if !spot {
		dateKey = at.UTC().Format("02-01-2006")
	}
	cacheKey := feedID + "|" + dateKey

	if price, ok := o.cachedPrice(cacheKey, spot); ok {
		return price
	}

	var (
		price decimal.Decimal
		err   error
	)
	if spot {
		price, err = o.fetchSpot(ctx, feedID)
	} else {
		price, err = o.fetchHistorical(ctx, feedID, dateKey)
	}
	if err != nil {
		o.logger.Warn("price lookup degraded to zero",
			zap.String("feed_id", feedID),
			zap.String("date", dateKey),
			zap.Error(err))
		return decimal.Zero
	}

	o.storePrice(cacheKey, price, spot)
	return price
}

// TokenPrice returns the price of tokenA denominated in tokenB. Identical
// tokens price at exactly 1; a missing leg prices at 0.
func (o *Oracle) TokenPrice(ctx context.Context, tokenA, tokenB string, at time.Time) decimal.Decimal {
	if tokenA == tokenB {
		return decimal.NewFromInt(1)
	}
	priceA := o.PriceUSD(ctx, tokenA, at)
	priceB := o.PriceUSD(ctx, tokenB, at)
	if priceA.IsZero() || priceB.IsZero() {
		return decimal.Zero
	}
	return priceA.Div(priceB)
}

func (o *Oracle) cachedPrice(key string, spot bool) (decimal.Decimal, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.cache[key]
	if !ok {
		return decimal.Zero, false
	}
	if spot && time.Since(entry.fetchedAt) > spotCacheTTL {
		return decimal.Zero, false
	}
	return entry.price, true
}

func (o *Oracle) storePrice(key string, price decimal.Decimal, spot bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cache[key] = cachedPrice{price: price, fetchedAt: time.Now(), spot: spot}
}

type spotResponse map[string]struct {
	USD decimal.Decimal `json:"usd"`
}

func (o *Oracle) fetchSpot(ctx context.Context, feedID string) (decimal.Decimal, error) {
	values := url.Values{}
	values.Set("ids", feedID)
	values.Set("vs_currencies", "usd")
	endpoint := fmt.Sprintf("%s/simple/price?%s", o.baseURL, values.Encode())

	body, err := o.doRequest(ctx, endpoint)
	if err != nil {
		return decimal.Zero, err
	}

	var parsed spotResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode spot price response: %w", err)
	}
	entry, ok := parsed[feedID]
	if !ok {
		return decimal.Zero, fmt.Errorf("feed %s missing from spot response", feedID)
	}
	return entry.USD, nil
}

type historicalResponse struct {
	MarketData struct {
		CurrentPrice map[string]decimal.Decimal `json:"current_price"`
	} `json:"market_data"`
}

func (o *Oracle) fetchHistorical(ctx context.Context, feedID, date string) (decimal.Decimal, error) {
	values := url.Values{}
	values.Set("date", date)
	endpoint := fmt.Sprintf("%s/coins/%s/history?%s", o.baseURL, feedID, values.Encode())

	body, err := o.doRequest(ctx, endpoint)
	if err != nil {
		return decimal.Zero, err
	}

	var parsed historicalResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode historical price response: %w", err)
	}
	price, ok := parsed.MarketData.CurrentPrice["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("no usd price for %s on %s", feedID, date)
	}
	return price, nil
}

func (o *Oracle) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	select {
	case <-o.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if o.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
