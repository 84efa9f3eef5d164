package backtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromCSVWithHeader(t *testing.T) {
	path := writeCSV(t, `date,open,high,low,close,adjclose,volume
2024-01-02,100,102,99,101,100.5,1200000
2024-01-03,101,103,100,102,101.4,1100000
`)

	bars, err := NewDataLoader().LoadFromCSV(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.True(t, bars[0].Close.Equal(dec(101)))
	assert.True(t, bars[0].AdjClose.Equal(dec(100.5)))
	assert.True(t, bars[0].Price().Equal(dec(100.5)), "adjusted close takes precedence")
}

func TestLoadFromCSVWithoutHeader(t *testing.T) {
	path := writeCSV(t, `2024-01-02,100,102,99,101
2024-01-03,101,103,100,102
`)

	bars, err := NewDataLoader().LoadFromCSV(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	// No adjclose column: Price falls back to close.
	assert.True(t, bars[0].Price().Equal(dec(101)))
}

func TestLoadFromCSVSkipsMalformedRows(t *testing.T) {
	path := writeCSV(t, `date,open,high,low,close
2024-01-02,100,102,99,101
not-a-date,100,102,99,101
2024-01-03,xx,103,100,102
2024-01-04,101,103,100,102
`)

	bars, err := NewDataLoader().LoadFromCSV(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2, bars[0].Date.Day())
	assert.Equal(t, 4, bars[1].Date.Day())
}

func TestLoadFromCSVDeduplicatesAndSorts(t *testing.T) {
	path := writeCSV(t, `date,open,high,low,close
2024-01-04,104,105,103,104
2024-01-02,100,102,99,101
2024-01-02,999,999,999,999
2024-01-03,101,103,100,102
`)

	bars, err := NewDataLoader().LoadFromCSV(path)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.True(t, bars[0].Date.Before(bars[1].Date))
	assert.True(t, bars[1].Date.Before(bars[2].Date))
	assert.True(t, bars[0].Close.Equal(dec(101)), "first occurrence of a duplicate date wins")
}

func TestLoadFromCSVMissingFile(t *testing.T) {
	_, err := NewDataLoader().LoadFromCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestGenerateSampleData(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := NewDataLoader().GenerateSampleData(start, 60, 100)

	require.Len(t, bars, 60)
	for i, bar := range bars {
		assert.True(t, bar.Valid(), "bar %d must be usable", i)
		if i > 0 {
			assert.True(t, bar.Date.After(bars[i-1].Date))
		}
	}

	// Deterministic: two calls produce identical series.
	again := NewDataLoader().GenerateSampleData(start, 60, 100)
	assert.True(t, bars[59].Close.Equal(again[59].Close))
}
