// Package models defines data structures for the portfolio tracker
package models

import (
	"math"
	"strings"
	"time"
)

// AssetType classifies a holding for allocation display
type AssetType string

const (
	AssetTypeStock     AssetType = "stock"
	AssetTypeCrypto    AssetType = "crypto"
	AssetTypeETF       AssetType = "etf"
	AssetTypeCommodity AssetType = "commodity"
	AssetTypeBond      AssetType = "bond"
	AssetTypeForex     AssetType = "forex"
	AssetTypeIndex     AssetType = "index"
	AssetTypeMiner     AssetType = "miner"
	AssetTypeUnknown   AssetType = "unknown"
)

// ParseAssetType maps a loosely formatted asset type name onto an AssetType.
// The plural forms "commodities" and "bonds" are accepted. Anything
// unrecognised is reported with ok=false.
func ParseAssetType(s string) (AssetType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock", "stocks", "equity":
		return AssetTypeStock, true
	case "crypto", "cryptocurrency":
		return AssetTypeCrypto, true
	case "etf":
		return AssetTypeETF, true
	case "commodity", "commodities":
		return AssetTypeCommodity, true
	case "bond", "bonds":
		return AssetTypeBond, true
	case "forex", "currency":
		return AssetTypeForex, true
	case "index":
		return AssetTypeIndex, true
	case "miner", "miners":
		return AssetTypeMiner, true
	case "unknown", "":
		return AssetTypeUnknown, true
	default:
		return AssetTypeUnknown, false
	}
}

// Valid reports whether t is one of the known asset types
func (t AssetType) Valid() bool {
	parsed, ok := ParseAssetType(string(t))
	return ok && parsed == t
}

// Portfolio is a named collection of holdings
type Portfolio struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Holding is a position in a single instrument.
//
// Quantity and AvgCost are the canonical valuation basis. A holding entered
// as a starting price plus purchase date is stored as quantity 1 with the
// starting price as its average cost (see NewStartingPriceHolding).
type Holding struct {
	ID           string    `json:"id"`
	PortfolioID  string    `json:"portfolio_id"`
	Ticker       string    `json:"ticker"`
	Name         string    `json:"name,omitempty"`
	AssetType    AssetType `json:"asset_type"`
	Quantity     float64   `json:"quantity"`
	AvgCost      float64   `json:"avg_cost"`
	PurchaseDate time.Time `json:"purchase_date"`
	LastUpdated  time.Time `json:"last_updated"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewStartingPriceHolding builds a single-unit holding whose cost is the
// price paid on purchaseDate.
func NewStartingPriceHolding(portfolioID, ticker string, assetType AssetType, startingPrice float64, purchaseDate time.Time) Holding {
	return Holding{
		PortfolioID:  portfolioID,
		Ticker:       NormalizeTicker(ticker),
		AssetType:    assetType,
		Quantity:     1,
		AvgCost:      startingPrice,
		PurchaseDate: purchaseDate,
	}
}

// Validate checks the stored invariants of a holding. Storage is expected to
// enforce these on write; this is re-checked on read before valuation.
func (h Holding) Validate() error {
	if strings.TrimSpace(h.Ticker) == "" {
		return &HoldingValidationError{HoldingID: h.ID, Field: "ticker", Reason: "must not be empty"}
	}
	if math.IsNaN(h.Quantity) || math.IsInf(h.Quantity, 0) {
		return &HoldingValidationError{HoldingID: h.ID, Field: "quantity", Reason: "must be a finite number"}
	}
	if h.Quantity < 0 {
		return &HoldingValidationError{HoldingID: h.ID, Field: "quantity", Reason: "must not be negative"}
	}
	if math.IsNaN(h.AvgCost) || math.IsInf(h.AvgCost, 0) {
		return &HoldingValidationError{HoldingID: h.ID, Field: "avg_cost", Reason: "must be a finite number"}
	}
	if h.AvgCost < 0 {
		return &HoldingValidationError{HoldingID: h.ID, Field: "avg_cost", Reason: "must not be negative"}
	}
	if !h.AssetType.Valid() {
		return &HoldingValidationError{HoldingID: h.ID, Field: "asset_type", Reason: "unknown asset type " + string(h.AssetType)}
	}
	return nil
}

// NormalizeTicker upper-cases and trims a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
