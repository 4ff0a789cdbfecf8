package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/username/hartafolio/backend/src/logger"
	"github.com/username/hartafolio/backend/src/models"
	"github.com/username/hartafolio/backend/src/processors"
	"github.com/username/hartafolio/backend/src/services"
	"github.com/username/hartafolio/backend/src/utils"
)

type PortfolioHandler struct {
	db           *sql.DB
	priceService services.PriceService
	rates        *processors.ExchangeRateProvider
}

func NewPortfolioHandler(db *sql.DB, priceService services.PriceService, rates *processors.ExchangeRateProvider) *PortfolioHandler {
	return &PortfolioHandler{
		db:           db,
		priceService: priceService,
		rates:        rates,
	}
}

// HandleCaptureSnapshot values the whole portfolio at current prices and
// persists today's snapshot, replacing any earlier capture for the same
// date. When no live price could be resolved at all, the aggregator falls
// back to the valuations stored on each holding rather than failing.
func (h *PortfolioHandler) HandleCaptureSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	holdings, err := models.GetHoldings(h.db, userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("error retrieving holdings for user %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	prices := h.priceService.ResolveForHoldings(r.Context(), holdings)
	rate := h.rates.CurrentRate(r.Context())
	date := time.Now().Format("2006-01-02")

	snap := processors.Aggregate(userID, holdings, prices, rate, date)
	if err := models.SaveSnapshot(h.db, snap); err != nil {
		logger.L.Error("Failed to persist snapshot", "userID", userID, "date", date, "error", err)
		utils.SendJSONError(w, "error saving snapshot", http.StatusInternalServerError)
		return
	}

	// Refresh stored valuations so the next degraded-mode snapshot has
	// something recent to fall back on.
	if len(prices) > 0 {
		for _, holding := range holdings {
			var price *models.ResolvedPrice
			if rp, ok := prices[holding.InstrumentID]; ok {
				price = &rp
			}
			v := processors.Value(holding, price, rate.Rate)
			if v.Error != "" {
				continue
			}
			if err := models.UpdateHoldingValuation(h.db, holding.ID, v.ValueIDR, v.ValueUSD); err != nil {
				logger.L.Warn("Failed to update stored valuation", "holdingID", holding.ID, "error", err)
			}
		}
	}

	utils.SendJSON(w, snap, http.StatusOK)
}

type positionValuation struct {
	models.Position
	Valuation models.Valuation `json:"valuation"`
}

// HandleGetValuation returns a live valuation of every holding plus the
// aggregate totals, without persisting anything.
func (h *PortfolioHandler) HandleGetValuation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	holdings, err := models.GetHoldings(h.db, userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("error retrieving holdings for user %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	prices := h.priceService.ResolveForHoldings(r.Context(), holdings)
	rate := h.rates.CurrentRate(r.Context())

	positions := make([]positionValuation, 0, len(holdings))
	for _, holding := range holdings {
		var price *models.ResolvedPrice
		if rp, ok := prices[holding.InstrumentID]; ok {
			price = &rp
		}
		positions = append(positions, positionValuation{
			Position:  holding,
			Valuation: processors.Value(holding, price, rate.Rate),
		})
	}

	totals := processors.Aggregate(userID, holdings, prices, rate, time.Now().Format("2006-01-02"))
	utils.SendJSON(w, map[string]interface{}{
		"positions":    positions,
		"totals":       totals,
		"exchangeRate": rate,
	}, http.StatusOK)
}

// HandleGetExchangeRate exposes the current (possibly fallback) USD/IDR rate.
func (h *PortfolioHandler) HandleGetExchangeRate(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.rates.CurrentRate(r.Context()), http.StatusOK)
}
