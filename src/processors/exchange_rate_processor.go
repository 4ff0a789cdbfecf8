package processors

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/hartafolio/backend/src/logger"
	"github.com/username/hartafolio/backend/src/models"
	"github.com/username/hartafolio/backend/src/services"
)

const rateCacheKey = "usd_idr_rate"

// FallbackRateSource marks a rate that came from the hardcoded constant
// because the live source was unreachable. Callers treat it as valid,
// lower-confidence input, not an error.
const FallbackRateSource = "Fallback (Offline)"

type openRateResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// ExchangeRateProvider fetches the current IDR value of 1 USD from a single
// unauthenticated endpoint, caching the result. Any failure degrades to the
// configured fallback constant.
type ExchangeRateProvider struct {
	fetcher   *services.SourceFetcher
	rateCache *cache.Cache
	fallback  float64

	// Overridable for tests.
	BaseURL string
}

func NewExchangeRateProvider(fetcher *services.SourceFetcher, rateCache *cache.Cache, fallback float64) *ExchangeRateProvider {
	return &ExchangeRateProvider{
		fetcher:   fetcher,
		rateCache: rateCache,
		fallback:  fallback,
		BaseURL:   "https://open.er-api.com/v6/latest/USD",
	}
}

// CurrentRate never fails: it returns either the live rate, a cached one,
// or the fallback constant marked as such.
func (p *ExchangeRateProvider) CurrentRate(ctx context.Context) models.ExchangeRate {
	if cached, found := p.rateCache.Get(rateCacheKey); found {
		return cached.(models.ExchangeRate)
	}

	var payload openRateResponse
	err := p.fetcher.FetchJSON(ctx, p.BaseURL, nil, &payload)
	if err == nil && payload.Rates["IDR"] > 0 {
		rate := models.ExchangeRate{
			Rate:      payload.Rates["IDR"],
			Source:    "open.er-api.com",
			Timestamp: time.Now(),
		}
		p.rateCache.Set(rateCacheKey, rate, cache.DefaultExpiration)
		return rate
	}

	if logger.L != nil {
		logger.L.Warn("Live exchange rate unavailable, using fallback constant",
			"fallback", p.fallback, "error", err)
	}
	return models.ExchangeRate{
		Rate:      p.fallback,
		Source:    FallbackRateSource,
		Timestamp: time.Now(),
	}
}
