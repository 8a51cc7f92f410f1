package models

import (
	"fmt"
	"time"
)

// PriceQuote is the latest known price of a ticker
type PriceQuote struct {
	Ticker string    `json:"ticker"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// PricePoint is one historical sample. Series are ordered ascending by Time.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Range selects the window and sampling granularity of a history
type Range string

const (
	Range1D  Range = "1d"
	Range1W  Range = "1w"
	Range1M  Range = "1m"
	Range1Y  Range = "1y"
	RangeAll Range = "all"
)

// ParseRange validates a range name. An empty string defaults to all.
func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case "":
		return RangeAll, nil
	case Range1D, Range1W, Range1M, Range1Y, RangeAll:
		return Range(s), nil
	}
	return "", fmt.Errorf("%w: %q (expected 1d, 1w, 1m, 1y or all)", ErrInvalidRange, s)
}

// Intraday reports whether samples within the range are finer than a day
func (r Range) Intraday() bool {
	return r == Range1D || r == Range1W
}

// Interval is the sampling step used when fetching history for the range
func (r Range) Interval() time.Duration {
	switch r {
	case Range1D:
		return 5 * time.Minute
	case Range1W:
		return 30 * time.Minute
	default:
		return 24 * time.Hour
	}
}

// Lookback is how far before now the range window starts. Zero means the
// window is unbounded (all history since the earliest purchase).
func (r Range) Lookback() time.Duration {
	switch r {
	case Range1D:
		return 24 * time.Hour
	case Range1W:
		return 7 * 24 * time.Hour
	case Range1M:
		return 31 * 24 * time.Hour
	case Range1Y:
		return 366 * 24 * time.Hour
	default:
		return 0
	}
}

// TickerInfo is display metadata for a ticker
type TickerInfo struct {
	Symbol string    `json:"symbol" toml:"symbol"`
	Name   string    `json:"name" toml:"name"`
	Type   AssetType `json:"type" toml:"type"`
}

// TickerDirectory is a lookup table of ticker metadata keyed by symbol
type TickerDirectory map[string]TickerInfo

// NewTickerDirectory indexes infos by normalised symbol
func NewTickerDirectory(infos []TickerInfo) TickerDirectory {
	dir := make(TickerDirectory, len(infos))
	for _, info := range infos {
		sym := NormalizeTicker(info.Symbol)
		if sym == "" {
			continue
		}
		info.Symbol = sym
		dir[sym] = info
	}
	return dir
}

// Lookup returns metadata for ticker. Missing entries yield the ticker as its
// own name and an unknown type.
func (d TickerDirectory) Lookup(ticker string) TickerInfo {
	if info, ok := d[NormalizeTicker(ticker)]; ok {
		if info.Name == "" {
			info.Name = info.Symbol
		}
		if info.Type == "" {
			info.Type = AssetTypeUnknown
		}
		return info
	}
	return TickerInfo{Symbol: ticker, Name: ticker, Type: AssetTypeUnknown}
}
