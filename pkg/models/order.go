package models

import (
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
)

// Fill is the exchange's confirmation of an executed market buy.
type Fill struct {
	ProductID     string
	OrderID       string
	ClientOrderID string
	Size          decimal.Decimal
	ExecutedValue decimal.Decimal
}

// PurchasePrice is the effective per-unit price of the fill,
// executed value divided by size.
func (f Fill) PurchasePrice() decimal.Decimal {
	return f.ExecutedValue.Div(f.Size)
}
