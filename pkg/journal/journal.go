package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"surge/pkg/models"
)

// BuyRecord is one executed buy fill as journaled.
type BuyRecord struct {
	ProductID     string
	PurchasePrice decimal.Decimal
	Amount        decimal.Decimal
	ClientOrderID string
	Time          time.Time
}

// SellRecord is one executed sell as journaled.
type SellRecord struct {
	ProductID     string
	Amount        decimal.Decimal
	SellPrice     decimal.Decimal
	ClientOrderID string
	Time          time.Time
}

// Journal is the append-only sink for everything the trader observes and
// does. LastPrice reads back the most recent journaled close for a product
// so the buy evaluator can compare against the last known price.
type Journal interface {
	RecordPrices(productID string, candles []models.Candle) error
	RecordBuy(BuyRecord) error
	RecordSell(SellRecord) error
	LastPrice(productID string) (decimal.Decimal, error)
	Close() error
}
