package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the single owned holding. At most one exists process-wide;
// the trader package enforces that.
type Position struct {
	ProductID     string
	PurchasePrice decimal.Decimal
	Amount        decimal.Decimal
	OpenedAt      time.Time
}

// Valid reports whether the position satisfies the holding invariants:
// a product, a positive purchase price and a positive amount.
func (p Position) Valid() bool {
	return p.ProductID != "" && p.PurchasePrice.IsPositive() && p.Amount.IsPositive()
}
