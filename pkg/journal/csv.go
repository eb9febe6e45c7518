package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"surge/pkg/models"
)

const (
	pricesFile = "price_history.csv"
	buysFile   = "buy_orders.csv"
	sellsFile  = "sell_orders.csv"
)

var (
	pricesHeader = []string{"product_id", "time", "low", "high", "open", "close", "volume"}
	buysHeader   = []string{"product_id", "purchase_price", "amount", "client_order_id", "time"}
	sellsHeader  = []string{"product_id", "amount", "sell_price", "client_order_id", "time"}
)

// CSVJournal appends records to three CSV files under one directory. Files
// are opened append-only and get a header exactly once, when created; a
// restart keeps appending to the same files.
type CSVJournal struct {
	dir    string
	prices *appendFile
	buys   *appendFile
	sells  *appendFile
}

type appendFile struct {
	f *os.File
	w *csv.Writer
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	prices, err := openAppend(filepath.Join(dir, pricesFile), pricesHeader)
	if err != nil {
		return nil, err
	}
	buys, err := openAppend(filepath.Join(dir, buysFile), buysHeader)
	if err != nil {
		prices.close()
		return nil, err
	}
	sells, err := openAppend(filepath.Join(dir, sellsFile), sellsHeader)
	if err != nil {
		prices.close()
		buys.close()
		return nil, err
	}

	return &CSVJournal{dir: dir, prices: prices, buys: buys, sells: sells}, nil
}

func openAppend(path string, header []string) (*appendFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &appendFile{f: f, w: w}, nil
}

func (a *appendFile) write(row []string) error {
	if err := a.w.Write(row); err != nil {
		return err
	}
	a.w.Flush()
	return a.w.Error()
}

func (a *appendFile) close() error {
	a.w.Flush()
	if err := a.w.Error(); err != nil {
		a.f.Close()
		return err
	}
	return a.f.Close()
}

func (j *CSVJournal) RecordPrices(productID string, candles []models.Candle) error {
	for _, c := range candles {
		row := []string{
			productID,
			c.Time.UTC().Format(time.RFC3339),
			c.Low.String(),
			c.High.String(),
			c.Open.String(),
			c.Close.String(),
			c.Volume.String(),
		}
		if err := j.prices.write(row); err != nil {
			return fmt.Errorf("journal prices for %s: %w", productID, err)
		}
	}
	return nil
}

func (j *CSVJournal) RecordBuy(r BuyRecord) error {
	err := j.buys.write([]string{
		r.ProductID,
		r.PurchasePrice.String(),
		r.Amount.String(),
		r.ClientOrderID,
		r.Time.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("journal buy for %s: %w", r.ProductID, err)
	}
	return nil
}

func (j *CSVJournal) RecordSell(r SellRecord) error {
	err := j.sells.write([]string{
		r.ProductID,
		r.Amount.String(),
		r.SellPrice.String(),
		r.ClientOrderID,
		r.Time.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("journal sell for %s: %w", r.ProductID, err)
	}
	return nil
}

// LastPrice scans the price history for the most recent close journaled for
// the product. A missing file or a product with no rows yields zero, not an
// error; the caller treats zero as "no baseline".
func (j *CSVJournal) LastPrice(productID string) (decimal.Decimal, error) {
	f, err := os.Open(filepath.Join(j.dir, pricesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(pricesHeader)

	var last string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("read price history: %w", err)
		}
		if row[0] == productID {
			last = row[5]
		}
	}
	if last == "" {
		return decimal.Zero, nil
	}

	price, err := decimal.NewFromString(last)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse journaled close %q: %w", last, err)
	}
	return price, nil
}

func (j *CSVJournal) Close() error {
	var firstErr error
	for _, a := range []*appendFile{j.prices, j.buys, j.sells} {
		if err := a.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
