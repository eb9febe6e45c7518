package coinbase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "dGVzdC1zZWNyZXQ=" // base64("test-secret")

func newTestClient(t *testing.T, handler http.HandlerFunc) *RESTClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewRESTClient(server.URL, NewLegacyAuthenticator("key", testSecret, "phrase"))
}

func TestGetCandlesSortsOldestFirst(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/BTC-USD/candles", r.URL.Path)
		assert.Equal(t, "300", r.URL.Query().Get("granularity"))
		assert.NotEmpty(t, r.Header.Get("CB-ACCESS-SIGN"))
		// Newest-first, as the exchange returns them.
		io.WriteString(w, `[[1700000600,49000,50200,49500,50000,12],[1700000300,43900,44100,44000,49500,10]]`)
	})

	end := time.Unix(1700000600, 0)
	candles, err := client.GetCandles(context.Background(), "BTC-USD", end.Add(-2*time.Hour), end, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.True(t, candles[0].Time.Before(candles[1].Time))
	assert.True(t, candles[0].Open.Equal(decimal.NewFromInt(44000)))
	assert.True(t, candles[1].Close.Equal(decimal.NewFromInt(50000)))
}

func TestGetCandlesMalformedBucket(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[[1700000600,49000,50200]]`)
	})

	_, err := client.GetCandles(context.Background(), "BTC-USD", time.Now().Add(-time.Hour), time.Now(), 5*time.Minute)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestGetTicker(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/ETH-USD/ticker", r.URL.Path)
		io.WriteString(w, `{"price":"2000.50","time":"2024-01-02T03:04:05Z"}`)
	})

	ticker, err := client.GetTicker(context.Background(), "ETH-USD")
	require.NoError(t, err)
	assert.Equal(t, "ETH-USD", ticker.ProductID)
	assert.True(t, ticker.Price.Equal(decimal.RequireFromString("2000.50")))
	assert.Equal(t, 2024, ticker.Time.Year())
}

func TestGetTickerMissingPrice(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"volume":"12"}`)
	})

	_, err := client.GetTicker(context.Background(), "ETH-USD")
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "ticker.price", malformed.Field)
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.GetTicker(context.Background(), "ETH-USD")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestListTradeableProductsFiltersDisabled(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"id":"BTC-USD","base_currency":"BTC","quote_currency":"USD","trading_disabled":false},
			{"id":"XRP-USD","base_currency":"XRP","quote_currency":"USD","trading_disabled":true}
		]`)
	})

	products, err := client.ListTradeableProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "BTC-USD", products[0].ID)
}

func TestMarketBuy(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("CB-ACCESS-SIGN"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "market", body["type"])
		assert.Equal(t, "BTC-USD", body["product_id"])
		assert.Equal(t, "100", body["funds"])
		assert.NotEmpty(t, body["client_oid"])

		io.WriteString(w, `{"id":"order-1","filled_size":"1.0","executed_value":"51000.0"}`)
	})

	fill, err := client.MarketBuy(context.Background(), "BTC-USD", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "order-1", fill.OrderID)
	assert.True(t, fill.Size.Equal(decimal.NewFromInt(1)))
	assert.True(t, fill.PurchasePrice().Equal(decimal.NewFromInt(51000)))
}

func TestMarketBuyMissingFillFields(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"order-1"}`)
	})

	_, err := client.MarketBuy(context.Background(), "BTC-USD", decimal.NewFromInt(100))
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestMarketSell(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "market", body["type"])
		assert.Equal(t, "0.5", body["size"])
		assert.Empty(t, body["funds"])
		io.WriteString(w, `{"id":"order-2"}`)
	})

	clientOID, err := client.MarketSell(context.Background(), "BTC-USD", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.NotEmpty(t, clientOID)
}

func TestMarketSellRejected(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient funds", http.StatusBadRequest)
	})

	_, err := client.MarketSell(context.Background(), "BTC-USD", decimal.NewFromInt(1))
	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
}
