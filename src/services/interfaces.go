package services

import (
	"context"

	"github.com/username/hartafolio/backend/src/models"
)

// PriceResult holds the outcome of one batch resolution. Rejected means the
// rate limiter refused the batch before any network work; Prices then stays
// empty. Instruments that no strategy could price are simply absent from
// the map.
type PriceResult struct {
	Prices   map[string]models.ResolvedPrice
	Rejected bool
}

// PriceService resolves current market prices for batches of instruments.
type PriceService interface {
	// ResolvePrices resolves the requested stock and crypto identifiers
	// concurrently. The result map is keyed by the identifier exactly as
	// requested. The identity keys rate limiting.
	ResolvePrices(ctx context.Context, stocks, cryptos []string, identity string) (*PriceResult, error)

	// ResolveForHoldings resolves prices for every priceable position in a
	// portfolio (cash has no market price). Internal callers such as the
	// snapshot trigger are not rate limited.
	ResolveForHoldings(ctx context.Context, holdings []models.Position) map[string]models.ResolvedPrice
}
