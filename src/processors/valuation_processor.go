package processors

import (
	"github.com/shopspring/decimal"
	"github.com/username/hartafolio/backend/src/models"
)

// SharesPerLot is the IDX board lot size: domestic equity quantities are
// held in lots, each of 100 shares.
const SharesPerLot = 100

const (
	errPriceUnavailable = "price unavailable"
	errRateUnavailable  = "exchange rate unavailable"
)

// Value computes the valuation of one position from a resolved price and
// the IDR-per-USD rate. Gains are computed in the instrument's native
// pricing currency first and bridged afterwards; bridging the inputs and
// then subtracting would compound rounding error. IDR amounts round to
// whole rupiah, USD amounts to cents.
//
// A nil price yields a fully zeroed valuation with an error marker; stale
// figures are never substituted here (that degraded mode belongs to the
// aggregator). A zero rate zeroes only the opposite-currency fields.
func Value(p models.Position, price *models.ResolvedPrice, rate float64) models.Valuation {
	if p.AssetClass == models.AssetCash {
		return valueCash(p, rate)
	}

	if price == nil || price.Price <= 0 {
		return models.Valuation{Error: errPriceUnavailable}
	}

	units := decimal.NewFromFloat(p.Quantity)
	if p.AssetClass == models.AssetStock && p.Market == models.MarketDomestic {
		units = units.Mul(decimal.NewFromInt(SharesPerLot))
	}

	valueNative := decimal.NewFromFloat(price.Price).Mul(units)
	costNative := decimal.NewFromFloat(p.AvgCost).Mul(units)
	gainNative := valueNative.Sub(costNative)

	v := models.Valuation{PriceUsed: price.Price}
	if !costNative.IsZero() {
		v.GainPercent = roundUSD(gainNative.Div(costNative).Mul(decimal.NewFromInt(100)))
	}

	rateDec := decimal.NewFromFloat(rate)
	if price.Currency == models.CurrencyIDR {
		v.ValueIDR = roundIDR(valueNative)
		v.CostBasisIDR = roundIDR(costNative)
		v.GainIDR = roundIDR(gainNative)
		if rate > 0 {
			v.ValueUSD = roundUSD(valueNative.Div(rateDec))
			v.GainUSD = roundUSD(gainNative.Div(rateDec))
		} else {
			v.Error = errRateUnavailable
		}
		return v
	}

	v.ValueUSD = roundUSD(valueNative)
	v.GainUSD = roundUSD(gainNative)
	if rate > 0 {
		v.ValueIDR = roundIDR(valueNative.Mul(rateDec))
		v.CostBasisIDR = roundIDR(costNative.Mul(rateDec))
		v.GainIDR = roundIDR(gainNative.Mul(rateDec))
	} else {
		v.Error = errRateUnavailable
	}
	return v
}

// valueCash values a cash position at face value. Cash has no cost basis
// distinct from its value, so it carries no gain and no invested amount.
func valueCash(p models.Position, rate float64) models.Valuation {
	face := decimal.NewFromFloat(p.Quantity)
	v := models.Valuation{ValueIDR: roundIDR(face)}
	if rate > 0 {
		v.ValueUSD = roundUSD(face.Div(decimal.NewFromFloat(rate)))
	} else {
		v.Error = errRateUnavailable
	}
	return v
}

func roundIDR(d decimal.Decimal) float64 {
	f, _ := d.Round(0).Float64()
	return f
}

func roundUSD(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
