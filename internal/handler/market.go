// Package handler exposes the market service as a JSON HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openmarkets/totem/internal/chart"
	"github.com/openmarkets/totem/internal/engine"
	"github.com/openmarkets/totem/internal/fees"
	"github.com/openmarkets/totem/internal/lmsr"
	"github.com/openmarkets/totem/internal/model"
	"github.com/openmarkets/totem/internal/service"
)

// MarketHandler handles HTTP requests for prediction markets.
type MarketHandler struct {
	svc    *service.MarketService
	logger *slog.Logger
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(svc *service.MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers market routes.
func (h *MarketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /markets", h.handleListMarkets)
	mux.HandleFunc("POST /markets", h.handleCreateMarket)
	mux.HandleFunc("GET /market/{id}", h.handleMarketDetail)
	mux.HandleFunc("GET /market/{id}/chart", h.handleMarketChart)
	mux.HandleFunc("GET /market/{id}/quote", h.handleGetQuote)
	mux.HandleFunc("POST /market/{id}/buy", h.handleBuy)
	mux.HandleFunc("POST /market/{id}/sell", h.handleSell)
	mux.HandleFunc("POST /market/{id}/liquidity", h.handleAddLiquidity)
	mux.HandleFunc("POST /market/{id}/resolve", h.handleResolve)
	mux.HandleFunc("POST /market/{id}/upkeep", h.handleUpkeep)
	mux.HandleFunc("POST /market/{id}/redeem", h.handleRedeem)
	mux.HandleFunc("POST /market/{id}/claim-fees", h.handleClaimFees)
	mux.HandleFunc("POST /market/{id}/claim-residual", h.handleClaimResidual)
	mux.HandleFunc("POST /market/{id}/finalize-residual", h.handleFinalizeResidual)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

func (h *MarketHandler) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"markets": h.svc.ListMarkets()})
}

func (h *MarketHandler) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMarketRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.CreateMarket(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MarketHandler) handleMarketDetail(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetMarket(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleMarketChart renders the price history as a plain-text ASCII chart.
func (h *MarketHandler) handleMarketChart(w http.ResponseWriter, r *http.Request) {
	points, err := h.svc.PriceHistory(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	height, _ := strconv.Atoi(r.URL.Query().Get("height"))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(chart.RenderPriceChart(points, width, height)))
}

func (h *MarketHandler) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	side, err := model.ParseOutcome(r.URL.Query().Get("side"))
	if err != nil {
		http.Error(w, "Invalid side: must be YES or NO", http.StatusBadRequest)
		return
	}
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	quote, err := h.svc.GetQuote(r.Context(), marketID, side, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *MarketHandler) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req service.BuyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.MarketID = r.PathValue("id")
	rcpt, err := h.svc.Buy(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

func (h *MarketHandler) handleSell(w http.ResponseWriter, r *http.Request) {
	var req service.SellRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.MarketID = r.PathValue("id")
	rcpt, err := h.svc.Sell(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

func (h *MarketHandler) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	var req service.AddLiquidityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.MarketID = r.PathValue("id")
	pos, err := h.svc.AddLiquidity(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (h *MarketHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		YesWins bool `json:"yes_wins"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	marketID := r.PathValue("id")
	if err := h.svc.ResolveManual(r.Context(), marketID, req.YesWins); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"market_id": marketID, "yes_wins": req.YesWins})
}

func (h *MarketHandler) handleUpkeep(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	due, err := h.svc.CheckUpkeep(marketID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !due {
		writeJSON(w, http.StatusOK, map[string]any{"market_id": marketID, "resolved": false, "due": false})
		return
	}
	if err := h.svc.PerformUpkeep(r.Context(), marketID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"market_id": marketID, "resolved": true, "due": true})
}

func (h *MarketHandler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
		Side    string `json:"side"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	side, err := model.ParseOutcome(req.Side)
	if err != nil {
		http.Error(w, "Invalid side: must be YES or NO", http.StatusBadRequest)
		return
	}
	payout, err := h.svc.Redeem(r.Context(), r.PathValue("id"), req.Account, side)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payout": payout})
}

func (h *MarketHandler) handleClaimFees(w http.ResponseWriter, r *http.Request) {
	h.handleClaim(w, r, h.svc.ClaimFees)
}

func (h *MarketHandler) handleClaimResidual(w http.ResponseWriter, r *http.Request) {
	h.handleClaim(w, r, h.svc.ClaimResidual)
}

func (h *MarketHandler) handleClaim(w http.ResponseWriter, r *http.Request, claim func(ctx context.Context, marketID, provider string) (int64, error)) {
	var req struct {
		Provider string `json:"provider"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := claim(r.Context(), r.PathValue("id"), req.Provider)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount": amount})
}

func (h *MarketHandler) handleFinalizeResidual(w http.ResponseWriter, r *http.Request) {
	residual, err := h.svc.FinalizeResidual(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"residual": residual})
}

func (h *MarketHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *MarketHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps engine and validation errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrMarketNotFound),
		errors.Is(err, engine.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidTokenAmount),
		errors.Is(err, service.ErrInvalidExpiry),
		errors.Is(err, model.ErrInvalidOutcome),
		errors.Is(err, model.ErrEmptyQuestion),
		errors.Is(err, model.ErrQuestionTooLong),
		errors.Is(err, model.ErrExpiryInPast),
		errors.Is(err, model.ErrInvalidComparison),
		errors.Is(err, model.ErrInvalidOracleType),
		errors.Is(err, model.ErrMissingFeed),
		errors.Is(err, fees.ErrInvalidBps),
		errors.Is(err, engine.ErrSlippageExceeded),
		errors.Is(err, engine.ErrPriceImpactExceeded),
		errors.Is(err, lmsr.ErrInsufficientOutput),
		errors.Is(err, lmsr.ErrInsufficientSupply):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrMarketNotActive),
		errors.Is(err, engine.ErrMarketNotExpired),
		errors.Is(err, engine.ErrAlreadyResolved),
		errors.Is(err, engine.ErrNotResolved),
		errors.Is(err, engine.ErrNotWinningSide),
		errors.Is(err, engine.ErrNothingToRedeem),
		errors.Is(err, engine.ErrResidualNotReady),
		errors.Is(err, engine.ErrManualNotAllowed),
		errors.Is(err, engine.ErrOracleNotConfigured):
		return http.StatusConflict
	case errors.Is(err, engine.ErrOracleUnavailable),
		errors.Is(err, engine.ErrOracleStale):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
