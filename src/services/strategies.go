package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/username/hartafolio/backend/src/models"
	"github.com/username/hartafolio/backend/src/utils"
)

// Each upstream returns a different JSON/HTML shape; every strategy
// normalizes into models.ResolvedPrice so the resolver's output is uniform
// regardless of which strategy won.

// Extraction patterns for the IDX quote page. These track the page's current
// markup and may break silently; the structured endpoints below are the
// load-bearing fallbacks.
var (
	scrapePriceAttrRe  = regexp.MustCompile(`data-last-price="([0-9][0-9.]*)"`)
	scrapePriceClassRe = regexp.MustCompile(`class="YMlKec fxKbKc">[^0-9]*([\d,]+(?:\.\d+)?)`)
	scrapePrevCloseRe  = regexp.MustCompile(`Previous close</div>\s*<div class="[^"]*">[^0-9]*([\d,]+(?:\.\d+)?)`)
	scrapeInlinePctRe  = regexp.MustCompile(`\(([-+]?\d+(?:\.\d+)?)%\)`)
)

// Ticker-to-id translation for the crypto market-data provider. Symbols not
// listed are tried lowercased.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"SOL":   "solana",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"ATOM":  "cosmos",
	"TRX":   "tron",
}

// priceStrategy is one way of obtaining a price for one instrument. A nil
// error with a non-nil price means success; any error means "try the next
// one in the chain".
type priceStrategy struct {
	name string
	fn   func(ctx context.Context, symbol string) (*models.ResolvedPrice, error)
}

// strategySet owns the ordered fallback chains per instrument class. Base
// URLs are fields so tests can point them at local fakes.
type strategySet struct {
	fetcher *SourceFetcher

	scrapeBaseURL string
	quoteBaseURL  string
	chartBaseURL  string
	cryptoBaseURL string
}

func newStrategySet(fetcher *SourceFetcher) *strategySet {
	return &strategySet{
		fetcher:       fetcher,
		scrapeBaseURL: "https://www.google.com/finance/quote",
		quoteBaseURL:  "https://query1.finance.yahoo.com/v7/finance/quote",
		chartBaseURL:  "https://query1.finance.yahoo.com/v8/finance/chart",
		cryptoBaseURL: "https://api.coingecko.com/api/v3",
	}
}

// chainFor returns the strategies to try, in order, for one instrument.
// Crypto never goes through the scrape step; domestic equities try the
// scrape first for freshness, then the same structured fallbacks every
// other class uses.
func (s *strategySet) chainFor(inst models.Instrument) []priceStrategy {
	if inst.Class == models.AssetCrypto {
		return []priceStrategy{
			{name: "crypto markets", fn: s.cryptoMarkets},
			{name: "crypto spot", fn: s.cryptoSpot},
		}
	}

	structured := []priceStrategy{
		{name: "quote endpoint", fn: func(ctx context.Context, sym string) (*models.ResolvedPrice, error) {
			return s.quoteEndpoint(ctx, sym, inst.Class, inst.Market)
		}},
		{name: "chart endpoint", fn: func(ctx context.Context, sym string) (*models.ResolvedPrice, error) {
			return s.chartEndpoint(ctx, sym, inst.Class, inst.Market)
		}},
	}

	if inst.Class == models.AssetStock && inst.Market == models.MarketDomestic {
		return append([]priceStrategy{{name: "IDX scrape", fn: s.scrapeIDXQuote}}, structured...)
	}
	return structured
}

// quoteSymbol maps a bare instrument symbol onto the structured endpoints'
// ticker convention. Domestic equities carry the exchange suffix.
func quoteSymbol(symbol string, market models.Market) string {
	if market == models.MarketDomestic && !strings.Contains(symbol, ".") {
		return symbol + ".JK"
	}
	return symbol
}

// scrapeIDXQuote extracts the displayed price from the quote page and,
// opportunistically, the previous close so the percent change is computed
// locally. A missing previous close falls back to an inline percent pattern,
// then to a change of 0; only a missing price fails the strategy.
func (s *strategySet) scrapeIDXQuote(ctx context.Context, symbol string) (*models.ResolvedPrice, error) {
	pageURL := fmt.Sprintf("%s/%s:IDX", s.scrapeBaseURL, url.PathEscape(symbol))
	body, err := s.fetcher.Fetch(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}
	page := string(body)

	price, ok := extractScrapedNumber(page, scrapePriceAttrRe)
	if !ok {
		price, ok = extractScrapedNumber(page, scrapePriceClassRe)
	}
	if !ok || price <= 0 {
		return nil, fmt.Errorf("no price found on quote page for %s", symbol)
	}

	change := 0.0
	if prev, ok := extractScrapedNumber(page, scrapePrevCloseRe); ok && prev > 0 {
		change = utils.RoundFloat((price-prev)/prev*100, 2)
	} else if m := scrapeInlinePctRe.FindStringSubmatch(page); len(m) == 2 {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			change = pct
		}
	}

	return &models.ResolvedPrice{
		Price:         price,
		Currency:      models.CurrencyIDR,
		ChangePercent: change,
		ChangeWindow:  "1d",
		Source:        "IDX Scrape",
		ResolvedAt:    time.Now(),
	}, nil
}

func extractScrapedNumber(page string, re *regexp.Regexp) (float64, bool) {
	m := re.FindStringSubmatch(page)
	if len(m) != 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

type quoteEndpointResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			Currency                   string  `json:"currency"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// quoteEndpoint reads the structured batch-style quote payload: price,
// currency and percent change come straight from the response.
func (s *strategySet) quoteEndpoint(ctx context.Context, symbol string, class models.AssetClass, market models.Market) (*models.ResolvedPrice, error) {
	addr := fmt.Sprintf("%s?symbols=%s", s.quoteBaseURL, url.QueryEscape(quoteSymbol(symbol, market)))

	var payload quoteEndpointResponse
	if err := s.fetcher.FetchJSON(ctx, addr, nil, &payload); err != nil {
		return nil, err
	}
	if payload.QuoteResponse.Error != nil || len(payload.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("quote endpoint returned no result for %s", symbol)
	}

	result := payload.QuoteResponse.Result[0]
	if result.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("quote endpoint returned zero price for %s", symbol)
	}

	return &models.ResolvedPrice{
		Price:         result.RegularMarketPrice,
		Currency:      normalizeCurrency(result.Currency, class, market),
		ChangePercent: utils.RoundFloat(result.RegularMarketChangePercent, 2),
		ChangeWindow:  "1d",
		Source:        "Quote API",
		ResolvedAt:    time.Now(),
	}, nil
}

// chartEndpoint is the final fallback: a time-series payload from which the
// latest price is extracted, with the change computed manually when a
// previous-close field is present.
func (s *strategySet) chartEndpoint(ctx context.Context, symbol string, class models.AssetClass, market models.Market) (*models.ResolvedPrice, error) {
	addr := fmt.Sprintf("%s/%s", s.chartBaseURL, url.PathEscape(quoteSymbol(symbol, market)))

	var jobj interface{}
	if err := s.fetcher.FetchJSON(ctx, addr, nil, &jobj); err != nil {
		return nil, err
	}

	price, err := jsonPathFloat(jobj, "$.chart.result[0].meta.regularMarketPrice")
	if err != nil || price <= 0 {
		return nil, fmt.Errorf("chart endpoint has no usable price for %s: %v", symbol, err)
	}

	change := 0.0
	if prev, err := jsonPathFloat(jobj, "$.chart.result[0].meta.chartPreviousClose"); err == nil && prev > 0 {
		change = utils.RoundFloat((price-prev)/prev*100, 2)
	}

	currency := ""
	if c, err := jsonPathString(jobj, "$.chart.result[0].meta.currency"); err == nil {
		currency = c
	}

	return &models.ResolvedPrice{
		Price:         price,
		Currency:      normalizeCurrency(currency, class, market),
		ChangePercent: change,
		ChangeWindow:  "1d",
		Source:        "Chart API",
		ResolvedAt:    time.Now(),
	}, nil
}

type coinMarketEntry struct {
	ID             string  `json:"id"`
	CurrentPrice   float64 `json:"current_price"`
	PriceChange24h float64 `json:"price_change_percentage_24h"`
}

// cryptoMarkets queries the market-data provider for price and 24h change.
func (s *strategySet) cryptoMarkets(ctx context.Context, symbol string) (*models.ResolvedPrice, error) {
	id := coinID(symbol)
	addr := fmt.Sprintf("%s/coins/markets?vs_currency=usd&ids=%s", s.cryptoBaseURL, url.QueryEscape(id))

	var entries []coinMarketEntry
	if err := s.fetcher.FetchJSON(ctx, addr, nil, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 || entries[0].CurrentPrice <= 0 {
		return nil, fmt.Errorf("crypto markets endpoint has no data for %s", symbol)
	}

	return &models.ResolvedPrice{
		Price:         entries[0].CurrentPrice,
		Currency:      models.CurrencyUSD,
		ChangePercent: utils.RoundFloat(entries[0].PriceChange24h, 2),
		ChangeWindow:  "24h",
		Source:        "CoinGecko",
		ResolvedAt:    time.Now(),
	}, nil
}

// cryptoSpot is the spot-price-only last resort; change defaults to 0.
func (s *strategySet) cryptoSpot(ctx context.Context, symbol string) (*models.ResolvedPrice, error) {
	id := coinID(symbol)
	addr := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", s.cryptoBaseURL, url.QueryEscape(id))

	var payload map[string]map[string]float64
	if err := s.fetcher.FetchJSON(ctx, addr, nil, &payload); err != nil {
		return nil, err
	}
	price := payload[id]["usd"]
	if price <= 0 {
		return nil, fmt.Errorf("crypto spot endpoint has no price for %s", symbol)
	}

	return &models.ResolvedPrice{
		Price:         price,
		Currency:      models.CurrencyUSD,
		ChangePercent: 0,
		ChangeWindow:  "24h",
		Source:        "CoinGecko Spot",
		ResolvedAt:    time.Now(),
	}, nil
}

func coinID(symbol string) string {
	if id, ok := coinIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// normalizeCurrency maps an upstream currency tag onto the two supported
// currencies. When the tag is missing the default follows the class
// convention: gold and domestic equities are IDR-native, everything else
// quotes in USD.
func normalizeCurrency(raw string, class models.AssetClass, market models.Market) models.Currency {
	switch strings.ToUpper(raw) {
	case "IDR":
		return models.CurrencyIDR
	case "USD":
		return models.CurrencyUSD
	}
	if class == models.AssetGold || market == models.MarketDomestic {
		return models.CurrencyIDR
	}
	return models.CurrencyUSD
}

// jsonPathFloat evaluates a jsonpath expression tolerant of the payload's
// looseness: a single-element list unwraps to its element, and numeric
// strings parse as numbers.
func jsonPathFloat(jobj interface{}, path string) (float64, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, err
	}
	if jlist, ok := jval.([]interface{}); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	switch v := jval.(type) {
	case float64:
		return v, nil
	case string:
		cleaned := strings.ReplaceAll(strings.ReplaceAll(v, ",", ""), " ", "")
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("jsonpath %s: value %q is not a number: %w", path, v, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("jsonpath %s: value %v is neither float nor string", path, jval)
	}
}

func jsonPathString(jobj interface{}, path string) (string, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return "", err
	}
	if jlist, ok := jval.([]interface{}); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	s, ok := jval.(string)
	if !ok {
		return "", fmt.Errorf("jsonpath %s: value %v is not a string", path, jval)
	}
	return s, nil
}
