package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/username/hartafolio/backend/src/models"
)

func domesticStock(qtyLots, avgCost float64) models.Position {
	return models.Position{
		InstrumentID: "BBCA",
		AssetClass:   models.AssetStock,
		Market:       models.MarketDomestic,
		Quantity:     qtyLots,
		AvgCost:      avgCost,
	}
}

func TestValue_DomesticStockLots(t *testing.T) {
	// 2 lots of 100 shares at avg 5000, now priced 5500, rate 16000 IDR/USD.
	p := domesticStock(2, 5000)
	price := &models.ResolvedPrice{Price: 5500, Currency: models.CurrencyIDR}

	v := Value(p, price, 16000)

	assert.Equal(t, 1_100_000.0, v.ValueIDR)
	assert.Equal(t, 1_000_000.0, v.CostBasisIDR)
	assert.Equal(t, 100_000.0, v.GainIDR)
	assert.Equal(t, 68.75, v.ValueUSD)
	assert.Equal(t, 6.25, v.GainUSD)
	assert.Equal(t, 10.0, v.GainPercent)
	assert.Equal(t, 5500.0, v.PriceUsed)
	assert.Empty(t, v.Error)
}

func TestValue_CryptoBridgesUSDToIDR(t *testing.T) {
	p := models.Position{
		InstrumentID: "BTC",
		AssetClass:   models.AssetCrypto,
		Quantity:     0.5,
		AvgCost:      60000,
	}
	price := &models.ResolvedPrice{Price: 65000, Currency: models.CurrencyUSD}

	v := Value(p, price, 16000)

	assert.Equal(t, 32500.0, v.ValueUSD)
	assert.Equal(t, 2500.0, v.GainUSD)
	assert.Equal(t, 520_000_000.0, v.ValueIDR)
	assert.Equal(t, 480_000_000.0, v.CostBasisIDR)
	assert.Equal(t, 40_000_000.0, v.GainIDR)
	assert.InDelta(t, 8.33, v.GainPercent, 0.001)
}

func TestValue_NilPriceZeroesEverything(t *testing.T) {
	v := Value(domesticStock(2, 5000), nil, 16000)

	assert.Equal(t, "price unavailable", v.Error)
	assert.Zero(t, v.ValueIDR)
	assert.Zero(t, v.ValueUSD)
	assert.Zero(t, v.CostBasisIDR)
	assert.Zero(t, v.GainIDR)
	assert.Zero(t, v.GainPercent)
	assert.Zero(t, v.PriceUsed)
}

func TestValue_ZeroRateZeroesOnlyOppositeCurrency(t *testing.T) {
	price := &models.ResolvedPrice{Price: 5500, Currency: models.CurrencyIDR}
	v := Value(domesticStock(2, 5000), price, 0)

	assert.Equal(t, "exchange rate unavailable", v.Error)
	assert.Equal(t, 1_100_000.0, v.ValueIDR, "native-currency figures survive a missing rate")
	assert.Equal(t, 100_000.0, v.GainIDR)
	assert.Zero(t, v.ValueUSD)
	assert.Zero(t, v.GainUSD)
}

func TestValue_ZeroCostBasisHasZeroGainPercent(t *testing.T) {
	price := &models.ResolvedPrice{Price: 5500, Currency: models.CurrencyIDR}
	v := Value(domesticStock(2, 0), price, 16000)

	assert.Equal(t, 1_100_000.0, v.ValueIDR)
	assert.Zero(t, v.GainPercent, "free positions report zero percent, not a division error")
}

func TestValue_CashAtFaceValue(t *testing.T) {
	p := models.Position{InstrumentID: "IDR-CASH", AssetClass: models.AssetCash, Quantity: 1_000_000}

	v := Value(p, nil, 16000)

	assert.Equal(t, 1_000_000.0, v.ValueIDR)
	assert.Equal(t, 62.5, v.ValueUSD)
	assert.Zero(t, v.CostBasisIDR, "cash carries no cost basis")
	assert.Zero(t, v.GainIDR)
	assert.Empty(t, v.Error, "cash never needs a price")
}

func TestValue_CashWithZeroRate(t *testing.T) {
	p := models.Position{InstrumentID: "IDR-CASH", AssetClass: models.AssetCash, Quantity: 1_000_000}

	v := Value(p, nil, 0)

	assert.Equal(t, 1_000_000.0, v.ValueIDR)
	assert.Zero(t, v.ValueUSD)
	assert.Equal(t, "exchange rate unavailable", v.Error)
}

func TestValue_GoldPerGram(t *testing.T) {
	p := models.Position{
		InstrumentID: "XAUIDR",
		AssetClass:   models.AssetGold,
		Quantity:     10, // grams, no lot multiplier
		AvgCost:      1_200_000,
	}
	price := &models.ResolvedPrice{Price: 1_350_000, Currency: models.CurrencyIDR}

	v := Value(p, price, 16000)

	assert.Equal(t, 13_500_000.0, v.ValueIDR)
	assert.Equal(t, 12_000_000.0, v.CostBasisIDR)
	assert.Equal(t, 1_500_000.0, v.GainIDR)
	assert.Equal(t, 12.5, v.GainPercent)
}
