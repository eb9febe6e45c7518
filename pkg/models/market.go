package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bucket. Field order mirrors the exchange payload
// [time, low, high, open, close, volume].
type Candle struct {
	Time   time.Time
	Low    decimal.Decimal
	High   decimal.Decimal
	Open   decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Ticker is the one shape a current-price read ever takes. A response
// without a usable price is a gateway error, never a zero Ticker.
type Ticker struct {
	ProductID string
	Price     decimal.Decimal
	Time      time.Time
}

type Product struct {
	ID              string
	BaseCurrency    string
	QuoteCurrency   string
	TradingDisabled bool
}
