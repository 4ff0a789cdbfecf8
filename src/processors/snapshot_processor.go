package processors

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/hartafolio/backend/src/models"
)

// classOrder fixes the breakdown ordering so repeated aggregations of the
// same inputs produce identical snapshots.
var classOrder = []models.AssetClass{
	models.AssetStock,
	models.AssetCrypto,
	models.AssetGold,
	models.AssetCash,
}

// Aggregate rolls a full portfolio plus a price map into one daily
// valuation record. Value totals include every asset class; invested and
// gain totals exclude cash, which has no cost basis distinct from its face
// value and would dilute profit percentages.
//
// An empty price map switches to degraded mode: each holding contributes
// the valuation stored from the last completed pricing cycle instead of
// failing the whole snapshot.
func Aggregate(userID int64, holdings []models.Position, prices map[string]models.ResolvedPrice, rate models.ExchangeRate, date string) models.PortfolioSnapshot {
	type classTotals struct {
		valueIDR, valueUSD, investedIDR, gainIDR decimal.Decimal
		present                                  bool
	}
	totals := make(map[models.AssetClass]*classTotals, len(classOrder))
	for _, c := range classOrder {
		totals[c] = &classTotals{}
	}

	degraded := len(prices) == 0

	for _, h := range holdings {
		var v models.Valuation
		if degraded && h.AssetClass != models.AssetCash {
			v = storedValuation(h, rate.Rate)
		} else {
			var price *models.ResolvedPrice
			if rp, ok := prices[h.InstrumentID]; ok {
				price = &rp
			}
			v = Value(h, price, rate.Rate)
		}

		t := totals[h.AssetClass]
		if t == nil {
			continue
		}
		t.present = true
		t.valueIDR = t.valueIDR.Add(decimal.NewFromFloat(v.ValueIDR))
		t.valueUSD = t.valueUSD.Add(decimal.NewFromFloat(v.ValueUSD))
		if h.AssetClass != models.AssetCash {
			t.investedIDR = t.investedIDR.Add(decimal.NewFromFloat(v.CostBasisIDR))
			t.gainIDR = t.gainIDR.Add(decimal.NewFromFloat(v.GainIDR))
		}
	}

	snap := models.PortfolioSnapshot{
		UserID:       userID,
		Date:         date,
		ExchangeRate: rate.Rate,
		Breakdown:    []models.AssetClassBreakdown{},
		CreatedAt:    time.Now(),
	}

	var totalValueIDR, totalValueUSD, totalInvestedIDR, totalGainIDR decimal.Decimal
	for _, c := range classOrder {
		t := totals[c]
		if !t.present {
			continue
		}
		snap.Breakdown = append(snap.Breakdown, models.AssetClassBreakdown{
			AssetClass:  c,
			ValueIDR:    roundIDR(t.valueIDR),
			ValueUSD:    roundUSD(t.valueUSD),
			InvestedIDR: roundIDR(t.investedIDR),
			GainIDR:     roundIDR(t.gainIDR),
		})
		totalValueIDR = totalValueIDR.Add(t.valueIDR)
		totalValueUSD = totalValueUSD.Add(t.valueUSD)
		totalInvestedIDR = totalInvestedIDR.Add(t.investedIDR)
		totalGainIDR = totalGainIDR.Add(t.gainIDR)
	}

	snap.TotalValueIDR = roundIDR(totalValueIDR)
	snap.TotalValueUSD = roundUSD(totalValueUSD)
	snap.TotalInvestedIDR = roundIDR(totalInvestedIDR)
	snap.TotalGainIDR = roundIDR(totalGainIDR)
	return snap
}

// storedValuation rebuilds a valuation from the fields persisted on the
// holding after the last pricing cycle. The cost basis is still derivable
// without a live price, so invested, gain in both currencies and the gain
// percentage all stay meaningful. Only the USD bridge of an IDR-native cost
// is lost when the rate is unavailable.
func storedValuation(h models.Position, rate float64) models.Valuation {
	units := decimal.NewFromFloat(h.Quantity)
	if h.AssetClass == models.AssetStock && h.Market == models.MarketDomestic {
		units = units.Mul(decimal.NewFromInt(SharesPerLot))
	}
	costNative := decimal.NewFromFloat(h.AvgCost).Mul(units)
	rateDec := decimal.NewFromFloat(rate)

	valueIDR := decimal.NewFromFloat(h.LastValueIDR)
	valueUSD := decimal.NewFromFloat(h.LastValueUSD)
	v := models.Valuation{
		ValueIDR: roundIDR(valueIDR),
		ValueUSD: h.LastValueUSD,
	}

	costIDR := costNative
	if nativeUSD(h) {
		if rate <= 0 {
			costIDR = decimal.Zero
		} else {
			costIDR = costNative.Mul(rateDec)
		}
		v.GainUSD = roundUSD(valueUSD.Sub(costNative))
	} else if rate > 0 {
		v.GainUSD = roundUSD(valueUSD.Sub(costNative.Div(rateDec)))
	}

	v.CostBasisIDR = roundIDR(costIDR)
	v.GainIDR = roundIDR(valueIDR.Sub(costIDR))

	valueNative := valueIDR
	if nativeUSD(h) {
		valueNative = valueUSD
	}
	if !costNative.IsZero() {
		v.GainPercent = roundUSD(valueNative.Sub(costNative).Div(costNative).Mul(decimal.NewFromInt(100)))
	}
	return v
}

// nativeUSD reports whether the position's avg cost is denominated in USD.
func nativeUSD(h models.Position) bool {
	if h.AssetClass == models.AssetCrypto {
		return true
	}
	return h.AssetClass == models.AssetStock && h.Market == models.MarketForeign
}
