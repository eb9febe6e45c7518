package trader

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surge/pkg/models"
)

func btcPosition() models.Position {
	return models.Position{
		ProductID:     "BTC-USD",
		PurchasePrice: decimal.NewFromInt(45000),
		Amount:        decimal.NewFromInt(1),
		OpenedAt:      time.Now(),
	}
}

func TestPositionBookLifecycle(t *testing.T) {
	t.Parallel()

	book := NewPositionBook()
	assert.False(t, book.Holding())
	_, ok := book.Current()
	assert.False(t, ok)

	require.NoError(t, book.Open(btcPosition()))
	assert.True(t, book.Holding())

	pos, ok := book.Current()
	require.True(t, ok)
	assert.Equal(t, "BTC-USD", pos.ProductID)

	closed, err := book.Close()
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", closed.ProductID)
	assert.False(t, book.Holding())
}

func TestPositionBookRejectsSecondOpen(t *testing.T) {
	t.Parallel()

	book := NewPositionBook()
	require.NoError(t, book.Open(btcPosition()))

	err := book.Open(btcPosition())
	assert.ErrorIs(t, err, ErrAlreadyHolding)
}

func TestPositionBookRejectsInvalidPosition(t *testing.T) {
	t.Parallel()

	book := NewPositionBook()

	invalid := btcPosition()
	invalid.Amount = decimal.Zero
	assert.ErrorIs(t, book.Open(invalid), ErrInvalidPosition)

	invalid = btcPosition()
	invalid.PurchasePrice = decimal.NewFromInt(-1)
	assert.ErrorIs(t, book.Open(invalid), ErrInvalidPosition)

	assert.False(t, book.Holding())
}

func TestPositionBookCloseWhenEmpty(t *testing.T) {
	t.Parallel()

	book := NewPositionBook()
	_, err := book.Close()
	assert.ErrorIs(t, err, ErrNotHolding)
}
