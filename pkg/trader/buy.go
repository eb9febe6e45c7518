package trader

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"surge/pkg/journal"
	"surge/pkg/models"
)

// Buy triggers: a 10% rise over either trailing window, or a 5% jump since
// the last journaled price. Sell triggers: a 5% drop from the previous tick
// or the running high, or a 25% gain over the purchase price. Any single
// trigger is enough.
var (
	buyWindowThreshold = decimal.NewFromInt(10)
	buyTickThreshold   = decimal.NewFromInt(5)
	sellDropThreshold  = decimal.NewFromInt(-5)
	sellGainThreshold  = decimal.NewFromInt(25)

	hundred = decimal.NewFromInt(100)
)

// pctChange is the percentage change from base to current. Callers guard
// against a zero base.
func pctChange(base, current decimal.Decimal) decimal.Decimal {
	return current.Sub(base).Div(base).Mul(hundred)
}

// evaluateBuy checks the buy conditions for one product and, when any holds,
// submits a market buy and opens the position. It returns true only when a
// fill was received and the position opened. Every external failure degrades
// to "no buy this cycle"; nothing propagates to the loop.
func (t *Trader) evaluateBuy(ctx context.Context, productID string, lastKnown decimal.Decimal) bool {
	now := t.now()
	triggered := false

	// Condition 1: 10% rise over the trailing 2 hours.
	if pct, ok := t.windowChange(ctx, productID, now.Add(-2*time.Hour), now); ok {
		if pct.GreaterThanOrEqual(buyWindowThreshold) {
			triggered = true
		}
	}

	// Condition 2: 10% rise over the trailing hour.
	if pct, ok := t.windowChange(ctx, productID, now.Add(-time.Hour), now); ok {
		if pct.GreaterThanOrEqual(buyWindowThreshold) {
			triggered = true
		}
	}

	// Condition 3: 5% rise since the last journaled price. Skipped when no
	// baseline exists; a zero baseline must never reach the division.
	ticker, err := t.exchange.GetTicker(ctx, productID)
	if err != nil {
		t.logGatewayError(err, "ticker", productID)
	} else if !lastKnown.IsZero() {
		if pctChange(lastKnown, ticker.Price).GreaterThanOrEqual(buyTickThreshold) {
			triggered = true
		}
	}

	if !triggered {
		return false
	}

	fill, err := t.exchange.MarketBuy(ctx, productID, t.cfg.SpendAmount)
	if err != nil {
		t.logGatewayError(err, "market buy", productID)
		return false
	}

	pos := models.Position{
		ProductID:     productID,
		PurchasePrice: fill.PurchasePrice(),
		Amount:        fill.Size,
		OpenedAt:      t.now(),
	}
	if err := t.book.Open(pos); err != nil {
		// Unreachable from the state machine; a fill we cannot record is a
		// serious bug, not a market condition.
		t.logger.WithError(err).WithField("product_id", productID).Error("Buy filled but position could not be opened")
		return false
	}

	if err := t.journal.RecordBuy(journal.BuyRecord{
		ProductID:     productID,
		PurchasePrice: pos.PurchasePrice,
		Amount:        pos.Amount,
		ClientOrderID: fill.ClientOrderID,
		Time:          pos.OpenedAt,
	}); err != nil {
		t.logger.WithError(err).Warn("Failed to journal buy order")
	}

	t.logger.WithFields(logrus.Fields{
		"product_id":     productID,
		"amount":         pos.Amount.String(),
		"purchase_price": pos.PurchasePrice.String(),
	}).Info("Executed buy order")
	return true
}

// windowChange fetches the candles covering [start, end], journals them, and
// returns the percentage change from the window's first open to its last
// close. ok is false when the window is empty or could not be fetched, which
// skips the condition without failing the evaluation.
func (t *Trader) windowChange(ctx context.Context, productID string, start, end time.Time) (decimal.Decimal, bool) {
	candles, err := t.exchange.GetCandles(ctx, productID, start, end, t.cfg.CandleGranularity)
	if err != nil {
		t.logGatewayError(err, "candles", productID)
		return decimal.Zero, false
	}
	if len(candles) == 0 {
		return decimal.Zero, false
	}

	if err := t.journal.RecordPrices(productID, candles); err != nil {
		t.logger.WithError(err).WithField("product_id", productID).Warn("Failed to journal price history")
	}

	firstOpen := candles[0].Open
	if firstOpen.IsZero() {
		return decimal.Zero, false
	}
	return pctChange(firstOpen, candles[len(candles)-1].Close), true
}
