// backend/src/services/price_service.go
package services

import (
	"context"
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/username/hartafolio/backend/src/logger"
	"github.com/username/hartafolio/backend/src/models"
	"github.com/username/hartafolio/backend/src/security"
	"github.com/username/hartafolio/backend/src/utils"
)

// priceServiceImpl implements PriceService. One instance owns the strategy
// chains, the short-TTL price cache and the per-identity rate limiter.
type priceServiceImpl struct {
	strategies     *strategySet
	limiter        *security.RateLimiter
	priceCache     *cache.Cache
	maxPerCategory int
}

// NewPriceService creates the price resolution service.
func NewPriceService(fetcher *SourceFetcher, limiter *security.RateLimiter, priceCache *cache.Cache, maxPerCategory int) PriceService {
	return &priceServiceImpl{
		strategies:     newStrategySet(fetcher),
		limiter:        limiter,
		priceCache:     priceCache,
		maxPerCategory: maxPerCategory,
	}
}

// stockInstrument interprets a requested stock identifier. A bare symbol is
// a domestic (IDX) equity; a market suffix such as "AAPL:US" marks a foreign
// listing with USD pricing and no lot convention.
func stockInstrument(id string) models.Instrument {
	symbol := id
	market := models.MarketDomestic
	if i := strings.IndexByte(id, ':'); i >= 0 {
		symbol = id[:i]
		if !strings.EqualFold(id[i+1:], "IDX") {
			market = models.MarketForeign
		}
	}
	return models.Instrument{Symbol: symbol, Class: models.AssetStock, Market: market}
}

// dedupeAndCap keeps the first occurrence of each identifier, in request
// order, up to the per-category cap.
func dedupeAndCap(ids []string, cap int) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, utils.MinInt(len(ids), cap))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == cap {
			break
		}
	}
	return out
}

func (s *priceServiceImpl) ResolvePrices(ctx context.Context, stocks, cryptos []string, identity string) (*PriceResult, error) {
	if !s.limiter.Admit(identity) {
		return &PriceResult{Prices: map[string]models.ResolvedPrice{}, Rejected: true}, nil
	}

	instruments := make(map[string]models.Instrument)
	for _, id := range dedupeAndCap(stocks, s.maxPerCategory) {
		instruments[id] = stockInstrument(id)
	}
	for _, id := range dedupeAndCap(cryptos, s.maxPerCategory) {
		instruments[id] = models.Instrument{Symbol: id, Class: models.AssetCrypto}
	}

	return &PriceResult{Prices: s.resolveBatch(ctx, instruments)}, nil
}

func (s *priceServiceImpl) ResolveForHoldings(ctx context.Context, holdings []models.Position) map[string]models.ResolvedPrice {
	instruments := make(map[string]models.Instrument)
	for _, h := range holdings {
		if h.AssetClass == models.AssetCash {
			continue
		}
		if _, ok := instruments[h.InstrumentID]; ok {
			continue
		}
		instruments[h.InstrumentID] = models.Instrument{
			Symbol: h.InstrumentID,
			Class:  h.AssetClass,
			Market: h.Market,
		}
	}
	return s.resolveBatch(ctx, instruments)
}

// resolveBatch fans the resolutions out concurrently. Each instrument runs
// to its own completion or timeout; a failed instrument is absent from the
// result and is not retried within the batch.
func (s *priceServiceImpl) resolveBatch(ctx context.Context, instruments map[string]models.Instrument) map[string]models.ResolvedPrice {
	prices := make(map[string]models.ResolvedPrice, len(instruments))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for key, inst := range instruments {
		wg.Add(1)
		go func(key string, inst models.Instrument) {
			defer wg.Done()
			if rp := s.resolve(ctx, inst); rp != nil {
				mu.Lock()
				prices[key] = *rp
				mu.Unlock()
			}
		}(key, inst)
	}
	wg.Wait()

	return prices
}

// resolve tries the instrument's strategy chain in order, stopping at the
// first usable price. Returns nil when every strategy failed; the caller
// treats absence as "unavailable". The cache key carries the market so a
// domestic and a foreign listing of the same base symbol never share an
// entry.
func (s *priceServiceImpl) resolve(ctx context.Context, inst models.Instrument) *models.ResolvedPrice {
	cacheKey := "price:" + string(inst.Class) + ":" + string(inst.Market) + ":" + inst.Symbol
	if cached, found := s.priceCache.Get(cacheKey); found {
		rp := cached.(models.ResolvedPrice)
		return &rp
	}

	for _, strat := range s.strategies.chainFor(inst) {
		rp, err := strat.fn(ctx, inst.Symbol)
		if err != nil {
			if logger.L != nil {
				logger.L.Debug("Price strategy failed", "strategy", strat.name, "symbol", inst.Symbol, "error", err)
			}
			continue
		}
		if rp != nil {
			s.priceCache.Set(cacheKey, *rp, cache.DefaultExpiration)
			return rp
		}
	}

	if logger.L != nil {
		logger.L.Warn("No strategy resolved a price", "symbol", inst.Symbol, "class", inst.Class)
	}
	return nil
}
