package model

import "fmt"

// VolatilityCategory widens the ATR tolerance for structurally volatile
// instruments. It is a static per-ticker classification, never derived from
// price data.
type VolatilityCategory string

const (
	CategoryStandard VolatilityCategory = "standard"
	CategoryHighVol  VolatilityCategory = "high_vol"
	CategoryMeme     VolatilityCategory = "meme"
	CategoryCrypto   VolatilityCategory = "crypto"
)

// ATRMultiplier returns the divisor applied to raw ATR% before scoring.
func (c VolatilityCategory) ATRMultiplier() float64 {
	switch c {
	case CategoryHighVol:
		return 1.5
	case CategoryMeme:
		return 1.75
	case CategoryCrypto:
		return 2.0
	default:
		return 1.0
	}
}

// ParseCategory validates a category name from configuration.
func ParseCategory(s string) (VolatilityCategory, error) {
	switch VolatilityCategory(s) {
	case CategoryStandard, CategoryHighVol, CategoryMeme, CategoryCrypto:
		return VolatilityCategory(s), nil
	case "":
		return CategoryStandard, nil
	default:
		return "", fmt.Errorf("%w: unknown volatility category %q", ErrInvalidConfiguration, s)
	}
}

// CategoryMap resolves tickers to categories, defaulting to standard.
type CategoryMap map[string]VolatilityCategory

// Lookup returns the category for a ticker.
func (m CategoryMap) Lookup(ticker string) VolatilityCategory {
	if c, ok := m[ticker]; ok {
		return c
	}
	return CategoryStandard
}
