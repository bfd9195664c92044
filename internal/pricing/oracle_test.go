package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func newTestOracle(t *testing.T, handler http.HandlerFunc) (*Oracle, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	oracle := NewOracle(server.URL, "", zap.NewNop())
	// Tests should not wait on the production rate limit.
	oracle.rateLimiter = time.NewTicker(time.Microsecond)
	return oracle, server
}

func spotHandler(price string, hits *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		id := r.URL.Query().Get("ids")
		fmt.Fprintf(w, `{"%s":{"usd":%s}}`, id, price)
	}
}

func TestPriceUSDSpot(t *testing.T) {
	oracle, _ := newTestOracle(t, spotHandler("151.25", nil))

	price := oracle.PriceUSD(context.Background(), solMint, time.Time{})
	assert.True(t, price.Equal(decimal.RequireFromString("151.25")), "got %s", price)
}

func TestPriceUSDHistoricalDateFormat(t *testing.T) {
	var gotPath, gotDate string
	oracle, _ := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDate = r.URL.Query().Get("date")
		fmt.Fprint(w, `{"market_data":{"current_price":{"usd":142.5}}}`)
	})

	at := time.Date(2024, 6, 3, 17, 45, 0, 0, time.UTC)
	price := oracle.PriceUSD(context.Background(), solMint, at)

	assert.True(t, strings.HasSuffix(gotPath, "/coins/solana/history"), "path %s", gotPath)
	assert.Equal(t, "03-06-2024", gotDate)
	assert.True(t, price.Equal(decimal.RequireFromString("142.5")), "got %s", price)
}

func TestPriceUSDSameDayBucketing(t *testing.T) {
	var hits atomic.Int64
	oracle, _ := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"market_data":{"current_price":{"usd":100}}}`)
	})

	morning := time.Date(2024, 6, 3, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC)

	first := oracle.PriceUSD(context.Background(), solMint, morning)
	second := oracle.PriceUSD(context.Background(), solMint, evening)

	// Two timestamps on the same UTC day share one feed request and one
	// price.
	assert.True(t, first.Equal(second))
	assert.Equal(t, int64(1), hits.Load())
}

func TestPriceUSDUnknownMintDegradesToZero(t *testing.T) {
	var hits atomic.Int64
	oracle, _ := newTestOracle(t, spotHandler("1", &hits))

	price := oracle.PriceUSD(context.Background(), "UnknownMint1111111111111111111111111111111", time.Time{})

	assert.True(t, price.IsZero())
	assert.Zero(t, hits.Load(), "no upstream call for unmapped mints")
}

func TestPriceUSDUpstreamFailureDegradesToZero(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		oracle, _ := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		price := oracle.PriceUSD(context.Background(), solMint, time.Time{})
		assert.True(t, price.IsZero())
	})

	t.Run("malformed body", func(t *testing.T) {
		oracle, _ := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "not json")
		})
		price := oracle.PriceUSD(context.Background(), solMint, time.Time{})
		assert.True(t, price.IsZero())
	})
}

func TestTokenPriceIdentity(t *testing.T) {
	var hits atomic.Int64
	oracle, _ := newTestOracle(t, spotHandler("151.25", &hits))

	for _, at := range []time.Time{{}, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)} {
		price := oracle.TokenPrice(context.Background(), solMint, solMint, at)
		assert.True(t, price.Equal(decimal.NewFromInt(1)), "got %s", price)
	}
	assert.Zero(t, hits.Load(), "identity pairs never hit the feed")
}

func TestTokenPriceMissingLegIsZero(t *testing.T) {
	oracle, _ := newTestOracle(t, spotHandler("151.25", nil))

	price := oracle.TokenPrice(context.Background(), solMint, "UnknownMint1111111111111111111111111111111", time.Time{})
	assert.True(t, price.IsZero())
}

func TestTokenPriceRelative(t *testing.T) {
	oracle, _ := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("ids")
		price := "1"
		if id == "solana" {
			price = "150"
		}
		fmt.Fprintf(w, `{"%s":{"usd":%s}}`, id, price)
	})

	price := oracle.TokenPrice(context.Background(), solMint, usdcMint, time.Time{})
	assert.True(t, price.Equal(decimal.NewFromInt(150)), "got %s", price)
}

func TestHistoricalCacheDedupes(t *testing.T) {
	var hits atomic.Int64
	oracle, _ := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"market_data":{"current_price":{"usd":99}}}`)
	})

	at := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		price := oracle.PriceUSD(context.Background(), solMint, at)
		require.True(t, price.Equal(decimal.NewFromInt(99)))
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestResolveFeedID(t *testing.T) {
	id, ok := ResolveFeedID(solMint)
	require.True(t, ok)
	assert.Equal(t, "solana", id)

	_, ok = ResolveFeedID("not-a-mint")
	assert.False(t, ok)
}
