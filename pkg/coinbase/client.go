package coinbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"surge/pkg/models"
)

// Client is the exchange contract the trader consumes: market data plus
// market-order placement. The REST client implements it; tests fake it.
type Client interface {
	GetCandles(ctx context.Context, productID string, start, end time.Time, granularity time.Duration) ([]models.Candle, error)
	GetTicker(ctx context.Context, productID string) (*models.Ticker, error)
	ListTradeableProducts(ctx context.Context) ([]models.Product, error)
	MarketBuy(ctx context.Context, productID string, funds decimal.Decimal) (*models.Fill, error)
	MarketSell(ctx context.Context, productID string, size decimal.Decimal) (string, error)
}

type RESTClient struct {
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
}

func NewRESTClient(baseURL string, auth Authenticator) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		auth:       auth,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RESTClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	// The signature covers the path including the query string.
	signPath := req.URL.Path
	if req.URL.RawQuery != "" {
		signPath += "?" + req.URL.RawQuery
	}
	if err := c.auth.AddAuthHeaders(req, method, signPath, string(body)); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s %s: %w", method, path, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &StatusError{Code: res.StatusCode, Body: string(data)}
	}
	return data, nil
}

// GetCandles fetches the OHLCV buckets covering [start, end] and returns
// them oldest-first. The exchange encodes each bucket as a six element
// array: [time, low, high, open, close, volume].
func (c *RESTClient) GetCandles(ctx context.Context, productID string, start, end time.Time, granularity time.Duration) ([]models.Candle, error) {
	qs := url.Values{
		"start":       []string{start.UTC().Format(time.RFC3339)},
		"end":         []string{end.UTC().Format(time.RFC3339)},
		"granularity": []string{strconv.Itoa(int(granularity.Seconds()))},
	}
	path := fmt.Sprintf("/products/%s/candles?%s", url.PathEscape(productID), qs.Encode())

	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var raw [][]json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "candles", Cause: err}
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, bucket := range raw {
		if len(bucket) != 6 {
			return nil, &MalformedResponseError{Field: "candles", Cause: fmt.Errorf("bucket has %d elements, want 6", len(bucket))}
		}
		ts, err := bucket[0].Int64()
		if err != nil {
			return nil, &MalformedResponseError{Field: "candles.time", Cause: err}
		}
		fields := make([]decimal.Decimal, 5)
		for i, name := range []string{"low", "high", "open", "close", "volume"} {
			d, err := decimal.NewFromString(bucket[i+1].String())
			if err != nil {
				return nil, &MalformedResponseError{Field: "candles." + name, Cause: err}
			}
			fields[i] = d
		}
		candles = append(candles, models.Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Low:    fields[0],
			High:   fields[1],
			Open:   fields[2],
			Close:  fields[3],
			Volume: fields[4],
		})
	}

	// Exchange returns newest-first.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

func (c *RESTClient) GetTicker(ctx context.Context, productID string) (*models.Ticker, error) {
	path := fmt.Sprintf("/products/%s/ticker", url.PathEscape(productID))

	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Price string `json:"price"`
		Time  string `json:"time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "ticker", Cause: err}
	}
	if raw.Price == "" {
		return nil, &MalformedResponseError{Field: "ticker.price"}
	}
	price, err := decimal.NewFromString(raw.Price)
	if err != nil {
		return nil, &MalformedResponseError{Field: "ticker.price", Cause: err}
	}

	ts := time.Now().UTC()
	if raw.Time != "" {
		if parsed, err := time.Parse(time.RFC3339, raw.Time); err == nil {
			ts = parsed
		}
	}

	return &models.Ticker{ProductID: productID, Price: price, Time: ts}, nil
}

// ListTradeableProducts returns the products currently open for trading.
// Products flagged trading-disabled never enter the scan set.
func (c *RESTClient) ListTradeableProducts(ctx context.Context) ([]models.Product, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID              string `json:"id"`
		BaseCurrency    string `json:"base_currency"`
		QuoteCurrency   string `json:"quote_currency"`
		TradingDisabled bool   `json:"trading_disabled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "products", Cause: err}
	}

	products := make([]models.Product, 0, len(raw))
	for _, p := range raw {
		if p.TradingDisabled {
			continue
		}
		products = append(products, models.Product{
			ID:              p.ID,
			BaseCurrency:    p.BaseCurrency,
			QuoteCurrency:   p.QuoteCurrency,
			TradingDisabled: p.TradingDisabled,
		})
	}
	return products, nil
}

type orderRequest struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Funds     string `json:"funds,omitempty"`
	Size      string `json:"size,omitempty"`
	ClientOID string `json:"client_oid"`
}

// MarketBuy places a market order spending the given quote-currency funds
// and returns the resulting fill.
func (c *RESTClient) MarketBuy(ctx context.Context, productID string, funds decimal.Decimal) (*models.Fill, error) {
	clientOID := uuid.NewString()
	body, err := json.Marshal(orderRequest{
		Type:      string(models.OrderTypeMarket),
		ProductID: productID,
		Funds:     funds.String(),
		ClientOID: clientOID,
	})
	if err != nil {
		return nil, err
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID            string `json:"id"`
		FilledSize    string `json:"filled_size"`
		ExecutedValue string `json:"executed_value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Field: "order", Cause: err}
	}
	if raw.FilledSize == "" {
		return nil, &MalformedResponseError{Field: "order.filled_size"}
	}
	if raw.ExecutedValue == "" {
		return nil, &MalformedResponseError{Field: "order.executed_value"}
	}
	size, err := decimal.NewFromString(raw.FilledSize)
	if err != nil {
		return nil, &MalformedResponseError{Field: "order.filled_size", Cause: err}
	}
	value, err := decimal.NewFromString(raw.ExecutedValue)
	if err != nil {
		return nil, &MalformedResponseError{Field: "order.executed_value", Cause: err}
	}
	if !size.IsPositive() || !value.IsPositive() {
		return nil, &MalformedResponseError{Field: "order", Cause: fmt.Errorf("fill size %s and value %s must be positive", size, value)}
	}

	return &models.Fill{
		ProductID:     productID,
		OrderID:       raw.ID,
		ClientOrderID: clientOID,
		Size:          size,
		ExecutedValue: value,
	}, nil
}

// MarketSell places a market order for the given base-currency size and
// returns the client order id it was submitted under.
func (c *RESTClient) MarketSell(ctx context.Context, productID string, size decimal.Decimal) (string, error) {
	clientOID := uuid.NewString()
	body, err := json.Marshal(orderRequest{
		Type:      string(models.OrderTypeMarket),
		ProductID: productID,
		Size:      size.String(),
		ClientOID: clientOID,
	})
	if err != nil {
		return "", err
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/orders", body); err != nil {
		return "", err
	}
	return clientOID, nil
}
