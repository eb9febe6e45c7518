package trader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"surge/pkg/coinbase"
	"surge/pkg/journal"
	"surge/pkg/models"
)

// Mode is the scheduler state: scanning for a buy or holding a position.
// The two are mutually exclusive and derived from the position book.
type Mode string

const (
	ModeScanning Mode = "scanning"
	ModeHolding  Mode = "holding"
)

// Config carries the trading knobs; thresholds are fixed policy, not config.
type Config struct {
	// SpendAmount is the quote-currency amount of every buy.
	SpendAmount decimal.Decimal
	// PollInterval is the end-of-iteration sleep.
	PollInterval time.Duration
	// ScanInterval gates how often the scanning mode walks the product list.
	ScanInterval time.Duration
	// CandleGranularity is the bucket size for window fetches.
	CandleGranularity time.Duration
	// FeedMaxAge is how old a websocket ticker observation may be before the
	// trader falls back to REST.
	FeedMaxAge time.Duration
}

// Observation is the most recent price read, exposed for the status API.
type Observation struct {
	ProductID string
	Price     decimal.Decimal
	Time      time.Time
}

// Trader drives the poll loop: scan for a buy when flat, watch for a sell
// when holding. A single goroutine runs the loop; the position book and the
// last-observation cell are the only state shared with other goroutines.
type Trader struct {
	exchange coinbase.Client
	journal  journal.Journal
	book     *PositionBook
	governor *Governor
	feed     *coinbase.TickerFeed
	logger   *logrus.Logger
	cfg      Config

	// Loop-goroutine state.
	traj     Trajectory
	lastScan time.Time

	obsMu   sync.RWMutex
	lastObs Observation

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(exchange coinbase.Client, jnl journal.Journal, governor *Governor, cfg Config, logger *logrus.Logger) *Trader {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	if cfg.CandleGranularity <= 0 {
		cfg.CandleGranularity = 5 * time.Minute
	}
	if cfg.FeedMaxAge <= 0 {
		cfg.FeedMaxAge = 10 * time.Second
	}

	return &Trader{
		exchange: exchange,
		journal:  jnl,
		book:     NewPositionBook(),
		governor: governor,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		sleep:    waitForContext,
	}
}

// SetTickerFeed attaches an optional websocket price feed. While holding,
// fresh feed observations replace REST ticker reads.
func (t *Trader) SetTickerFeed(feed *coinbase.TickerFeed) {
	t.feed = feed
}

// Run loops until the context is cancelled. Every iteration body is isolated:
// errors are logged and the next iteration proceeds; only cancellation at the
// sleep boundary exits.
func (t *Trader) Run(ctx context.Context) error {
	t.logger.WithFields(logrus.Fields{
		"poll_interval": t.cfg.PollInterval.String(),
		"scan_interval": t.cfg.ScanInterval.String(),
		"spend_amount":  t.cfg.SpendAmount.String(),
	}).Info("Trader running")

	for {
		t.runIteration(ctx)

		if err := t.sleep(ctx, t.cfg.PollInterval); err != nil {
			t.logger.WithError(err).Info("Trader stopping")
			return err
		}
	}
}

func (t *Trader) runIteration(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.WithField("panic", r).Error("Recovered from iteration panic")
		}
	}()

	if t.book.Holding() {
		t.holdCycle(ctx)
	} else {
		t.scanCycle(ctx)
	}
}

// scanCycle walks the tradeable products once per scan interval and stops at
// the first product that buys: first match wins, not best match.
func (t *Trader) scanCycle(ctx context.Context) {
	now := t.now()
	if !t.lastScan.IsZero() && now.Sub(t.lastScan) < t.cfg.ScanInterval {
		return
	}
	t.lastScan = now.Truncate(t.cfg.ScanInterval)

	products, err := t.exchange.ListTradeableProducts(ctx)
	if err != nil {
		t.logGatewayError(err, "products", "")
		return
	}

	for _, product := range products {
		if err := t.governor.Throttle(ctx); err != nil {
			return
		}

		lastKnown, err := t.journal.LastPrice(product.ID)
		if err != nil {
			t.logger.WithError(err).WithField("product_id", product.ID).Warn("Failed to read last journaled price")
			lastKnown = decimal.Zero
		}

		if t.evaluateBuy(ctx, product.ID, lastKnown) {
			// Fresh trajectory for the new holding; the first hold cycle
			// seeds the running high.
			t.traj = Trajectory{}
			return
		}
	}
}

// holdCycle updates the price trajectory for the held position and hands off
// to the sell evaluator.
func (t *Trader) holdCycle(ctx context.Context) {
	pos, ok := t.book.Current()
	if !ok {
		return
	}

	if err := t.governor.Throttle(ctx); err != nil {
		return
	}

	current, err := t.currentPrice(ctx, pos.ProductID)
	if err != nil {
		t.logGatewayError(err, "ticker", pos.ProductID)
		return
	}

	if current.GreaterThan(t.traj.Highest) {
		t.traj.Highest = current
	}

	if t.evaluateSell(ctx) {
		t.traj = Trajectory{}
		return
	}
	t.traj.Previous = current
}

// currentPrice reads the held product's price, preferring a fresh websocket
// observation over a REST round trip.
func (t *Trader) currentPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	if t.feed != nil {
		if price, seen, ok := t.feed.LastPrice(productID); ok && t.now().Sub(seen) <= t.cfg.FeedMaxAge {
			t.recordObservation(productID, price, seen)
			return price, nil
		}
	}

	ticker, err := t.exchange.GetTicker(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	t.recordObservation(productID, ticker.Price, ticker.Time)
	return ticker.Price, nil
}

func (t *Trader) recordObservation(productID string, price decimal.Decimal, at time.Time) {
	t.obsMu.Lock()
	t.lastObs = Observation{ProductID: productID, Price: price, Time: at}
	t.obsMu.Unlock()
}

// logGatewayError logs non-2xx and malformed responses as warnings, in the
// same breath as the exchange's own error text; anything else (transport,
// timeouts) as errors.
func (t *Trader) logGatewayError(err error, op, productID string) {
	entry := t.logger.WithError(err).WithField("op", op)
	if productID != "" {
		entry = entry.WithField("product_id", productID)
	}

	var statusErr *coinbase.StatusError
	var malformedErr *coinbase.MalformedResponseError
	if errors.As(err, &statusErr) || errors.As(err, &malformedErr) {
		entry.Warn("Exchange call rejected")
		return
	}
	entry.Error("Exchange call failed")
}

// Mode reports the scheduler state for the status API.
func (t *Trader) Mode() Mode {
	if t.book.Holding() {
		return ModeHolding
	}
	return ModeScanning
}

// CurrentPosition returns the held position, if any.
func (t *Trader) CurrentPosition() (models.Position, bool) {
	return t.book.Current()
}

// LastObservation returns the most recent price read.
func (t *Trader) LastObservation() Observation {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	return t.lastObs
}

func waitForContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
