package trader

import (
	"errors"
	"sync"

	"surge/pkg/models"
)

var (
	ErrAlreadyHolding  = errors.New("a position is already held")
	ErrNotHolding      = errors.New("no position is held")
	ErrInvalidPosition = errors.New("position must have a product, positive price and positive amount")
)

// PositionBook owns the single position. All transitions go through Open and
// Close so the at-most-one invariant lives in exactly one place. The mutex is
// for the status API and ticker feed, which read while the loop writes.
type PositionBook struct {
	mu  sync.RWMutex
	pos *models.Position
}

func NewPositionBook() *PositionBook {
	return &PositionBook{}
}

// Open records a new holding. Opening while holding is a logic bug upstream,
// not a market condition, so it returns an error instead of replacing.
func (b *PositionBook) Open(p models.Position) error {
	if !p.Valid() {
		return ErrInvalidPosition
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pos != nil {
		return ErrAlreadyHolding
	}
	b.pos = &p
	return nil
}

// Close clears the holding and returns what was held.
func (b *PositionBook) Close() (models.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pos == nil {
		return models.Position{}, ErrNotHolding
	}
	p := *b.pos
	b.pos = nil
	return p, nil
}

func (b *PositionBook) Current() (models.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.pos == nil {
		return models.Position{}, false
	}
	return *b.pos, true
}

func (b *PositionBook) Holding() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pos != nil
}
