package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/hartafolio/backend/src/database"
	"github.com/username/hartafolio/backend/src/models"
)

func testSnapshot(date string, totalIDR float64) models.PortfolioSnapshot {
	return models.PortfolioSnapshot{
		UserID:           1,
		Date:             date,
		TotalValueIDR:    totalIDR,
		TotalValueUSD:    totalIDR / 16000,
		TotalInvestedIDR: totalIDR - 100_000,
		TotalGainIDR:     100_000,
		ExchangeRate:     16000,
		Breakdown: []models.AssetClassBreakdown{
			{AssetClass: models.AssetStock, ValueIDR: totalIDR, InvestedIDR: totalIDR - 100_000, GainIDR: 100_000},
		},
		CreatedAt: time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC),
	}
}

func TestSaveSnapshot_SameDateReplaces(t *testing.T) {
	db := database.InitTestDB()
	defer db.Close()

	require.NoError(t, models.SaveSnapshot(db, testSnapshot("2025-06-01", 1_100_000)))
	require.NoError(t, models.SaveSnapshot(db, testSnapshot("2025-06-01", 1_250_000)))

	n, err := models.CountSnapshots(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "re-snapshotting the same date must replace, not append")

	got, err := models.GetSnapshot(db, 1, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 1_250_000.0, got.TotalValueIDR)
	require.Len(t, got.Breakdown, 1, "the breakdown is replaced wholesale")
	assert.Equal(t, 1_250_000.0, got.Breakdown[0].ValueIDR)
}

func TestSaveSnapshot_DistinctDatesAccumulate(t *testing.T) {
	db := database.InitTestDB()
	defer db.Close()

	require.NoError(t, models.SaveSnapshot(db, testSnapshot("2025-06-01", 1_100_000)))
	require.NoError(t, models.SaveSnapshot(db, testSnapshot("2025-06-02", 1_150_000)))

	n, err := models.CountSnapshots(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGetSnapshot_RoundTrip(t *testing.T) {
	db := database.InitTestDB()
	defer db.Close()

	snap := testSnapshot("2025-06-01", 1_100_000)
	require.NoError(t, models.SaveSnapshot(db, snap))

	got, err := models.GetSnapshot(db, 1, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, snap.TotalValueIDR, got.TotalValueIDR)
	assert.Equal(t, snap.ExchangeRate, got.ExchangeRate)
	assert.Equal(t, snap.Breakdown, got.Breakdown)
	assert.True(t, snap.CreatedAt.Equal(got.CreatedAt))
}

func TestGetSnapshot_NoRow(t *testing.T) {
	db := database.InitTestDB()
	defer db.Close()

	_, err := models.GetSnapshot(db, 1, "2025-06-01")
	assert.Error(t, err)
}

func TestHoldings_RoundTripAndValuationUpdate(t *testing.T) {
	db := database.InitTestDB()
	defer db.Close()

	id, err := models.SaveHolding(db, models.Position{
		UserID:       1,
		InstrumentID: "BBCA",
		AssetClass:   models.AssetStock,
		Market:       models.MarketDomestic,
		Quantity:     2,
		AvgCost:      5000,
	})
	require.NoError(t, err)
	_, err = models.SaveHolding(db, models.Position{
		UserID:       1,
		InstrumentID: "IDR-CASH",
		AssetClass:   models.AssetCash,
		Quantity:     500_000,
	})
	require.NoError(t, err)

	require.NoError(t, models.UpdateHoldingValuation(db, id, 1_100_000, 68.75))

	holdings, err := models.GetHoldings(db, 1)
	require.NoError(t, err)
	require.Len(t, holdings, 2)

	// Ordered by asset class: cash before stock alphabetically.
	assert.Equal(t, "IDR-CASH", holdings[0].InstrumentID)
	assert.Equal(t, "BBCA", holdings[1].InstrumentID)
	assert.Equal(t, 1_100_000.0, holdings[1].LastValueIDR)
	assert.Equal(t, 68.75, holdings[1].LastValueUSD)
	assert.Equal(t, models.MarketDomestic, holdings[1].Market)
}

func TestGetHoldings_ScopedToUser(t *testing.T) {
	db := database.InitTestDB()
	defer db.Close()

	_, err := models.SaveHolding(db, models.Position{UserID: 1, InstrumentID: "BBCA", AssetClass: models.AssetStock, Quantity: 1})
	require.NoError(t, err)
	_, err = models.SaveHolding(db, models.Position{UserID: 2, InstrumentID: "BTC", AssetClass: models.AssetCrypto, Quantity: 0.1})
	require.NoError(t, err)

	holdings, err := models.GetHoldings(db, 1)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "BBCA", holdings[0].InstrumentID)
}
