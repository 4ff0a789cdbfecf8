package models

import "time"

// AssetClass identifies how a position is quantified and priced.
type AssetClass string

const (
	AssetStock  AssetClass = "stock"
	AssetCrypto AssetClass = "crypto"
	AssetGold   AssetClass = "gold"
	AssetCash   AssetClass = "cash"
)

// Market distinguishes pricing conventions for stock positions.
// Domestic (IDX) stocks are quoted in IDR and traded in lots of 100 shares;
// foreign stocks are quoted in USD per share.
type Market string

const (
	MarketDomestic Market = "domestic"
	MarketForeign  Market = "foreign"
)

type Currency string

const (
	CurrencyIDR Currency = "IDR"
	CurrencyUSD Currency = "USD"
)

// Instrument is the resolver's view of one thing to price. The symbol is
// opaque; domestic equities carry no suffix (the market field decides the
// strategy chain), crypto is a bare ticker like "BTC".
type Instrument struct {
	Symbol string     `json:"symbol"`
	Class  AssetClass `json:"class"`
	Market Market     `json:"market,omitempty"`
}

// ResolvedPrice is the normalized output of a resolution cycle, whichever
// upstream strategy produced it. Replaced wholesale on the next cycle,
// never patched.
type ResolvedPrice struct {
	Price         float64   `json:"price"`
	Currency      Currency  `json:"currency"`
	ChangePercent float64   `json:"change"`
	ChangeWindow  string    `json:"changeTime"`
	Source        string    `json:"source"`
	ResolvedAt    time.Time `json:"lastUpdate"`
}

// ExchangeRate is the IDR value of 1 USD. Source is "Fallback (Offline)"
// when the live fetch failed and the hardcoded constant is in use; callers
// treat that as valid, lower-confidence input.
type ExchangeRate struct {
	Rate      float64   `json:"rate"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Position is one holding in the portfolio. Quantity means lots for
// domestic stocks, shares for foreign stocks, coin units for crypto, grams
// for gold, and face value in IDR for cash. AvgCost is per unit in the
// instrument's native pricing currency. The Last* fields are the valuation
// from the most recent pricing cycle, kept so a snapshot can still be taken
// when no live prices are available.
type Position struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	InstrumentID string     `json:"instrumentId"`
	AssetClass   AssetClass `json:"assetClass"`
	Market       Market     `json:"market,omitempty"`
	Quantity     float64    `json:"quantity"`
	AvgCost      float64    `json:"avgCost"`
	LastValueIDR float64    `json:"lastValueIDR"`
	LastValueUSD float64    `json:"lastValueUSD"`
}

// Valuation is derived from scratch on every pricing cycle. When Error is
// set all monetary fields are zero; partial or stale figures are never
// carried under an error.
type Valuation struct {
	ValueIDR     float64 `json:"valueIDR"`
	ValueUSD     float64 `json:"valueUSD"`
	CostBasisIDR float64 `json:"costBasisIDR"`
	GainIDR      float64 `json:"gainIDR"`
	GainUSD      float64 `json:"gainUSD"`
	GainPercent  float64 `json:"gainPercent"`
	PriceUsed    float64 `json:"priceUsed"`
	Error        string  `json:"error,omitempty"`
}

// AssetClassBreakdown is one per-class line of a snapshot.
type AssetClassBreakdown struct {
	AssetClass  AssetClass `json:"assetClass"`
	ValueIDR    float64    `json:"valueIDR"`
	ValueUSD    float64    `json:"valueUSD"`
	InvestedIDR float64    `json:"investedIDR"`
	GainIDR     float64    `json:"gainIDR"`
}

// PortfolioSnapshot is the daily valuation record. TotalInvestedIDR and
// TotalGainIDR never include cash positions; cash contributes to the value
// totals only. Re-snapshotting the same date replaces the whole record.
type PortfolioSnapshot struct {
	UserID           int64                 `json:"userId"`
	Date             string                `json:"date"`
	TotalValueIDR    float64               `json:"totalValueIDR"`
	TotalValueUSD    float64               `json:"totalValueUSD"`
	TotalInvestedIDR float64               `json:"totalInvestedIDR"`
	TotalGainIDR     float64               `json:"totalGainIDR"`
	ExchangeRate     float64               `json:"exchangeRate"`
	Breakdown        []AssetClassBreakdown `json:"breakdown"`
	CreatedAt        time.Time             `json:"createdAt"`
}
