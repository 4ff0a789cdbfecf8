package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/username/hartafolio/backend/src/logger"
	"github.com/username/hartafolio/backend/src/services"
	"github.com/username/hartafolio/backend/src/utils"
)

type PriceHandler struct {
	priceService   services.PriceService
	maxPerCategory int
}

func NewPriceHandler(priceService services.PriceService, maxPerCategory int) *PriceHandler {
	return &PriceHandler{
		priceService:   priceService,
		maxPerCategory: maxPerCategory,
	}
}

type resolvePricesRequest struct {
	Stocks   []string `json:"stocks"`
	Cryptos  []string `json:"cryptos"`
	Identity string   `json:"identity"`
}

// HandleResolvePrices resolves current prices for a batch of stock and
// crypto identifiers. Malformed or oversized input is rejected before any
// network work; a rate-limit rejection carries a machine-readable code and
// retry hint; unresolvable instruments are simply absent from the map.
func (h *PriceHandler) HandleResolvePrices(w http.ResponseWriter, r *http.Request) {
	var req resolvePricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: stocks and cryptos must be arrays of strings", http.StatusBadRequest)
		return
	}
	if len(req.Stocks) > h.maxPerCategory || len(req.Cryptos) > h.maxPerCategory {
		utils.SendJSONError(w,
			fmt.Sprintf("too many instruments requested: at most %d per category", h.maxPerCategory),
			http.StatusBadRequest)
		return
	}

	identity := req.Identity
	if identity == "" {
		identity = GetCallerIdentity(r.Context())
	}

	result, err := h.priceService.ResolvePrices(r.Context(), req.Stocks, req.Cryptos, identity)
	if err != nil {
		logger.L.Error("Batch price resolution failed", "identity", identity, "error", err)
		utils.SendJSON(w, map[string]interface{}{
			"prices":    map[string]interface{}{},
			"timestamp": time.Now().Format(time.RFC3339),
			"message":   "internal error resolving prices",
		}, http.StatusInternalServerError)
		return
	}

	if result.Rejected {
		utils.SendJSON(w, map[string]interface{}{
			"message":    "too many price requests, slow down",
			"retryAfter": 60,
			"error":      "RATE_LIMIT_EXCEEDED",
			"identifier": identity,
		}, http.StatusTooManyRequests)
		return
	}

	requested := len(req.Stocks) + len(req.Cryptos)
	utils.SendJSON(w, map[string]interface{}{
		"prices":    result.Prices,
		"timestamp": time.Now().Format(time.RFC3339),
		"message":   fmt.Sprintf("resolved %d of %d requested instruments", len(result.Prices), requested),
	}, http.StatusOK)
}
