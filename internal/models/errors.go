package models

import (
	"errors"
	"fmt"
)

var (
	// ErrPortfolioNotFound is returned when a portfolio id does not exist
	ErrPortfolioNotFound = errors.New("portfolio not found")
	// ErrHoldingNotFound is returned when a holding id does not exist
	ErrHoldingNotFound = errors.New("holding not found")
	// ErrInvalidPrice matches any *InvalidPriceError
	ErrInvalidPrice = errors.New("invalid price")
	// ErrPriceUnavailable matches any *PriceUnavailableError
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrHoldingValidation matches any *HoldingValidationError
	ErrHoldingValidation = errors.New("invalid holding")
	// ErrInvalidRange is returned for unrecognised history ranges
	ErrInvalidRange = errors.New("invalid range")
	// ErrInvalidPortfolioName is returned when a portfolio name is blank
	ErrInvalidPortfolioName = errors.New("portfolio name must not be empty")
	// ErrUnknownTicker is returned when the price provider does not recognise a symbol
	ErrUnknownTicker = errors.New("unknown ticker")
	// ErrInsufficientHistory is returned when a history is too short to chart
	ErrInsufficientHistory = errors.New("insufficient history")
)

// InvalidPriceError reports a price that cannot be used for valuation
type InvalidPriceError struct {
	Ticker string
	Price  float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price %v for %s", e.Price, e.Ticker)
}

func (e *InvalidPriceError) Is(target error) bool {
	return target == ErrInvalidPrice
}

// PriceUnavailableError reports that no current price could be obtained for
// a ticker. Err carries the underlying cause when there is one.
type PriceUnavailableError struct {
	Ticker string
	Err    error
}

func (e *PriceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("price unavailable for %s: %v", e.Ticker, e.Err)
	}
	return "price unavailable for " + e.Ticker
}

func (e *PriceUnavailableError) Is(target error) bool {
	return target == ErrPriceUnavailable
}

func (e *PriceUnavailableError) Unwrap() error {
	return e.Err
}

// HoldingValidationError reports a stored holding that violates its invariants
type HoldingValidationError struct {
	HoldingID string
	Field     string
	Reason    string
}

func (e *HoldingValidationError) Error() string {
	if e.HoldingID != "" {
		return fmt.Sprintf("holding %s: %s %s", e.HoldingID, e.Field, e.Reason)
	}
	return fmt.Sprintf("holding: %s %s", e.Field, e.Reason)
}

func (e *HoldingValidationError) Is(target error) bool {
	return target == ErrHoldingValidation
}
