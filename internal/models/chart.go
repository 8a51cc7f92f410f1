package models

import "time"

// Chart is a normalised market data response for one symbol: instrument
// metadata, the latest regular market price and an ascending close series.
type Chart struct {
	Symbol             string       `json:"symbol"`
	Name               string       `json:"name,omitempty"`
	Currency           string       `json:"currency,omitempty"`
	InstrumentType     string       `json:"instrument_type,omitempty"`
	RegularMarketPrice float64      `json:"regular_market_price"`
	RegularMarketTime  time.Time    `json:"regular_market_time"`
	Points             []PricePoint `json:"points"`
}

// AssetType infers an asset type from the provider's instrument type
func (c *Chart) AssetType() AssetType {
	switch c.InstrumentType {
	case "EQUITY":
		return AssetTypeStock
	case "ETF", "MUTUALFUND":
		return AssetTypeETF
	case "CRYPTOCURRENCY":
		return AssetTypeCrypto
	case "CURRENCY":
		return AssetTypeForex
	case "INDEX":
		return AssetTypeIndex
	case "FUTURE":
		return AssetTypeCommodity
	default:
		return AssetTypeUnknown
	}
}
