package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/hartafolio/backend/src/logger"
	"github.com/username/hartafolio/backend/src/models"
	"github.com/username/hartafolio/backend/src/services"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// stubPriceService scripts the service layer so handler tests exercise only
// the HTTP surface.
type stubPriceService struct {
	result         *services.PriceResult
	err            error
	lastIdentity   string
	holdingsPrices map[string]models.ResolvedPrice
}

func (s *stubPriceService) ResolvePrices(ctx context.Context, stocks, cryptos []string, identity string) (*services.PriceResult, error) {
	s.lastIdentity = identity
	return s.result, s.err
}

func (s *stubPriceService) ResolveForHoldings(ctx context.Context, holdings []models.Position) map[string]models.ResolvedPrice {
	return s.holdingsPrices
}

func postPrices(h *PriceHandler, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", "/api/prices", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleResolvePrices(w, r)
	return w
}

func TestHandleResolvePrices_OK(t *testing.T) {
	stub := &stubPriceService{result: &services.PriceResult{
		Prices: map[string]models.ResolvedPrice{
			"BBCA": {Price: 5500, Currency: models.CurrencyIDR, Source: "IDX Scrape"},
		},
	}}
	h := NewPriceHandler(stub, 50)

	w := postPrices(h, `{"stocks":["BBCA","MISS"],"cryptos":[],"identity":"user:1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Prices    map[string]models.ResolvedPrice `json:"prices"`
		Timestamp string                          `json:"timestamp"`
		Message   string                          `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Prices, 1)
	assert.Equal(t, 5500.0, resp.Prices["BBCA"].Price)
	assert.NotEmpty(t, resp.Timestamp)
	assert.Equal(t, "resolved 1 of 2 requested instruments", resp.Message)
	assert.Equal(t, "user:1", stub.lastIdentity)
}

func TestHandleResolvePrices_MalformedBody(t *testing.T) {
	h := NewPriceHandler(&stubPriceService{}, 50)

	w := postPrices(h, `{"stocks": "not-an-array"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "stocks and cryptos must be arrays of strings")
}

func TestHandleResolvePrices_OversizedBatch(t *testing.T) {
	h := NewPriceHandler(&stubPriceService{}, 2)

	w := postPrices(h, `{"stocks":["A","B","C"],"identity":"user:1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "at most 2 per category")
}

func TestHandleResolvePrices_RateLimited(t *testing.T) {
	stub := &stubPriceService{result: &services.PriceResult{
		Prices:   map[string]models.ResolvedPrice{},
		Rejected: true,
	}}
	h := NewPriceHandler(stub, 50)

	w := postPrices(h, `{"stocks":["BBCA"],"identity":"user:1"}`)

	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp struct {
		Message    string `json:"message"`
		RetryAfter int    `json:"retryAfter"`
		Error      string `json:"error"`
		Identifier string `json:"identifier"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", resp.Error)
	assert.Equal(t, 60, resp.RetryAfter)
	assert.Equal(t, "user:1", resp.Identifier)
	assert.NotEmpty(t, resp.Message)
}

func TestHandleResolvePrices_ServiceError(t *testing.T) {
	stub := &stubPriceService{err: errors.New("boom")}
	h := NewPriceHandler(stub, 50)

	w := postPrices(h, `{"stocks":["BBCA"],"identity":"user:1"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp struct {
		Prices map[string]models.ResolvedPrice `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Prices, "errors still return the envelope with an empty price map")
}

func TestHandleResolvePrices_IdentityFallsBackToContext(t *testing.T) {
	stub := &stubPriceService{result: &services.PriceResult{Prices: map[string]models.ResolvedPrice{}}}
	h := NewPriceHandler(stub, 50)

	r := httptest.NewRequest("POST", "/api/prices", strings.NewReader(`{"stocks":["BBCA"]}`))
	ctx := context.WithValue(r.Context(), identityContextKey, "10.0.0.7|test-agent")
	w := httptest.NewRecorder()
	h.HandleResolvePrices(w, r.WithContext(ctx))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10.0.0.7|test-agent", stub.lastIdentity)
}
