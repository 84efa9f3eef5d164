package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DataLoader loads daily price history for backtesting.
type DataLoader struct{}

// NewDataLoader creates a new data loader.
func NewDataLoader() *DataLoader {
	return &DataLoader{}
}

// LoadFromCSV loads daily bars from a CSV file.
// Expected format: date,open,high,low,close,adjclose,volume
// date is YYYY-MM-DD or RFC3339. Malformed rows are skipped; duplicate dates
// keep the first occurrence. Bars are returned sorted ascending by date.
func (dl *DataLoader) LoadFromCSV(filename string) ([]PriceBar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header if exists
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 1 {
		if _, err := strconv.ParseFloat(header[1], 64); err == nil {
			// First row is data, seek back
			file.Seek(0, 0)
			reader = csv.NewReader(file)
		}
	}

	bars := make([]PriceBar, 0)
	seen := make(map[string]bool)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		if len(record) < 5 {
			continue // Skip invalid records
		}

		bar, err := dl.parseCSVRecord(record)
		if err != nil {
			continue // Skip invalid records
		}

		key := bar.Date.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	return bars, nil
}

// parseCSVRecord parses date,open,high,low,close[,adjclose[,volume]] into a
// PriceBar. A missing adjusted close falls back to the close.
func (dl *DataLoader) parseCSVRecord(record []string) (PriceBar, error) {
	date, err := dl.parseDate(record[0])
	if err != nil {
		return PriceBar{}, err
	}

	open, err := decimal.NewFromString(record[1])
	if err != nil {
		return PriceBar{}, fmt.Errorf("invalid open price: %w", err)
	}
	high, err := decimal.NewFromString(record[2])
	if err != nil {
		return PriceBar{}, fmt.Errorf("invalid high price: %w", err)
	}
	low, err := decimal.NewFromString(record[3])
	if err != nil {
		return PriceBar{}, fmt.Errorf("invalid low price: %w", err)
	}
	close, err := decimal.NewFromString(record[4])
	if err != nil {
		return PriceBar{}, fmt.Errorf("invalid close price: %w", err)
	}

	adjClose := close
	if len(record) > 5 && record[5] != "" {
		if parsed, err := decimal.NewFromString(record[5]); err == nil {
			adjClose = parsed
		}
	}

	volume := decimal.Zero
	if len(record) > 6 && record[6] != "" {
		if parsed, err := decimal.NewFromString(record[6]); err == nil {
			volume = parsed
		}
	}

	return PriceBar{
		Date:     date,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		AdjClose: adjClose,
		Volume:   volume,
	}, nil
}

func (dl *DataLoader) parseDate(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// GenerateSampleData generates a synthetic daily series for testing: a
// deterministic oscillation around the base price.
func (dl *DataLoader) GenerateSampleData(start time.Time, days int, basePrice float64) []PriceBar {
	bars := make([]PriceBar, 0, days)
	price := decimal.NewFromFloat(basePrice)

	for i := 0; i < days; i++ {
		change := decimal.NewFromFloat((float64(i%20) - 10) * 0.005)
		next := price.Add(price.Mul(change))

		bars = append(bars, PriceBar{
			Date:     start.AddDate(0, 0, i),
			Open:     price,
			High:     decimal.Max(price, next).Mul(decimal.NewFromFloat(1.002)),
			Low:      decimal.Min(price, next).Mul(decimal.NewFromFloat(0.998)),
			Close:    next,
			AdjClose: next,
			Volume:   decimal.NewFromInt(int64(100000 + i*100)),
		})
		price = next
	}
	return bars
}
