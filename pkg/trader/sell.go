package trader

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"surge/pkg/journal"
)

// Trajectory tracks the price path while holding: the running maximum since
// purchase and the previous ticker reading. It is reset to zero whenever the
// position closes.
type Trajectory struct {
	Highest  decimal.Decimal
	Previous decimal.Decimal
}

// evaluateSell checks the exit conditions for the held position and, when
// any holds, sells the full amount and clears the position. It is a no-op
// returning false when nothing is held or the price read fails. A failed
// sell order leaves the position open for the next cycle.
func (t *Trader) evaluateSell(ctx context.Context) bool {
	pos, ok := t.book.Current()
	if !ok {
		t.logger.Info("No position held, nothing to sell")
		return false
	}

	current, err := t.currentPrice(ctx, pos.ProductID)
	if err != nil {
		t.logGatewayError(err, "ticker", pos.ProductID)
		return false
	}

	// Stop-loss on the previous tick, trailing stop on the running high,
	// take-profit on the purchase price. Zero baselines are skipped; the
	// purchase price is positive by the position invariant.
	triggered := false
	if !t.traj.Previous.IsZero() && pctChange(t.traj.Previous, current).LessThanOrEqual(sellDropThreshold) {
		triggered = true
	}
	if !t.traj.Highest.IsZero() && pctChange(t.traj.Highest, current).LessThanOrEqual(sellDropThreshold) {
		triggered = true
	}
	if pctChange(pos.PurchasePrice, current).GreaterThanOrEqual(sellGainThreshold) {
		triggered = true
	}

	if !triggered {
		t.logger.WithFields(logrus.Fields{
			"product_id": pos.ProductID,
			"price":      current.String(),
		}).Info("Sell conditions not met")
		return false
	}

	clientOID, err := t.exchange.MarketSell(ctx, pos.ProductID, pos.Amount)
	if err != nil {
		t.logGatewayError(err, "market sell", pos.ProductID)
		return false
	}

	sold, err := t.book.Close()
	if err != nil {
		// Unreachable: we held the position at the top of this call and no
		// one else closes it.
		t.logger.WithError(err).Error("Sell filled but no position to close")
		return false
	}

	if err := t.journal.RecordSell(journal.SellRecord{
		ProductID:     sold.ProductID,
		Amount:        sold.Amount,
		SellPrice:     current,
		ClientOrderID: clientOID,
		Time:          t.now(),
	}); err != nil {
		t.logger.WithError(err).Warn("Failed to journal sell order")
	}

	t.logger.WithFields(logrus.Fields{
		"product_id": sold.ProductID,
		"amount":     sold.Amount.String(),
		"sell_price": current.String(),
	}).Info("Executed sell order")
	return true
}
