package liquidity

import (
	"fmt"
	"strings"
	"sync"
)

// PriceOracle quotes an asset in fUSD: one unit of asset is worth
// Numerator/Denominator units of fUSD.
type PriceOracle interface {
	PriceOf(asset string) (Rate, error)
}

// StaticOracle serves fixed prices, typically loaded from configuration.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]Rate
}

// NewStaticOracle copies the supplied prices keyed by upper-case symbol.
func NewStaticOracle(prices map[string]Rate) *StaticOracle {
	o := &StaticOracle{prices: make(map[string]Rate, len(prices))}
	for symbol, price := range prices {
		o.prices[strings.ToUpper(strings.TrimSpace(symbol))] = price
	}
	return o
}

// SetPrice replaces the quote for an asset.
func (o *StaticOracle) SetPrice(asset string, price Rate) error {
	if err := price.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.prices == nil {
		o.prices = make(map[string]Rate)
	}
	o.prices[strings.ToUpper(strings.TrimSpace(asset))] = price
	return nil
}

// PriceOf implements PriceOracle.
func (o *StaticOracle) PriceOf(asset string) (Rate, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[strings.ToUpper(strings.TrimSpace(asset))]
	if !ok {
		return Rate{}, fmt.Errorf("%w: no price for %s", ErrOracleUnavailable, asset)
	}
	return price, nil
}

// conversionRate resolves the native→fUSD rate; no oracle means 1:1.
func conversionRate(oracle PriceOracle, asset string) (Rate, error) {
	if oracle == nil {
		return OneRate(), nil
	}
	price, err := oracle.PriceOf(asset)
	if err != nil {
		return Rate{}, err
	}
	if err := price.Validate(); err != nil {
		return Rate{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if price.IsZero() {
		return Rate{}, fmt.Errorf("%w: zero price for %s", ErrOracleUnavailable, asset)
	}
	return price, nil
}
