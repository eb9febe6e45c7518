package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surge/pkg/models"
)

func candle(ts time.Time, open, close string) models.Candle {
	return models.Candle{
		Time:   ts,
		Low:    decimal.RequireFromString(open),
		High:   decimal.RequireFromString(close),
		Open:   decimal.RequireFromString(open),
		Close:  decimal.RequireFromString(close),
		Volume: decimal.NewFromInt(1),
	}
}

func TestCSVJournalWritesHeadersOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	j, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, j.RecordPrices("BTC-USD", []models.Candle{candle(time.Now(), "100", "110")}))
	require.NoError(t, j.Close())

	// Reopening must append, not rewrite the header.
	j, err = NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, j.RecordPrices("BTC-USD", []models.Candle{candle(time.Now(), "110", "120")}))
	require.NoError(t, j.Close())

	data, err := os.ReadFile(filepath.Join(dir, pricesFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(pricesHeader, ","), lines[0])
}

func TestCSVJournalRecordBuyAndSell(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, j.RecordBuy(BuyRecord{
		ProductID:     "BTC-USD",
		PurchasePrice: decimal.NewFromInt(51000),
		Amount:        decimal.NewFromInt(1),
		ClientOrderID: "oid-1",
		Time:          at,
	}))
	require.NoError(t, j.RecordSell(SellRecord{
		ProductID:     "BTC-USD",
		Amount:        decimal.NewFromInt(1),
		SellPrice:     decimal.NewFromInt(60000),
		ClientOrderID: "oid-2",
		Time:          at,
	}))
	require.NoError(t, j.Close())

	buyData, err := os.ReadFile(filepath.Join(dir, buysFile))
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(buyData))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, buysHeader, rows[0])
	assert.Equal(t, []string{"BTC-USD", "51000", "1", "oid-1", "2024-01-02T03:04:05Z"}, rows[1])

	sellData, err := os.ReadFile(filepath.Join(dir, sellsFile))
	require.NoError(t, err)
	rows, err = csv.NewReader(strings.NewReader(string(sellData))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"BTC-USD", "1", "60000", "oid-2", "2024-01-02T03:04:05Z"}, rows[1])
}

func TestLastPrice(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)
	defer j.Close()

	// No rows yet: zero, no error.
	price, err := j.LastPrice("BTC-USD")
	require.NoError(t, err)
	assert.True(t, price.IsZero())

	now := time.Now()
	require.NoError(t, j.RecordPrices("BTC-USD", []models.Candle{
		candle(now.Add(-10*time.Minute), "100", "105"),
		candle(now.Add(-5*time.Minute), "105", "110"),
	}))
	require.NoError(t, j.RecordPrices("ETH-USD", []models.Candle{
		candle(now, "2000", "2100"),
	}))

	// Most recent close for the product, not for the file.
	price, err = j.LastPrice("BTC-USD")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(110)))

	price, err = j.LastPrice("DOGE-USD")
	require.NoError(t, err)
	assert.True(t, price.IsZero())
}
