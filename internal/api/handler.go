package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/mtlprog/sale/internal/access"
	"github.com/mtlprog/sale/internal/domain"
	"github.com/mtlprog/sale/internal/event"
	"github.com/mtlprog/sale/internal/issuance"
	"github.com/mtlprog/sale/internal/pricing"
	"github.com/mtlprog/sale/internal/sale"
)

// Handler provides the HTTP endpoints of the sale service.
type Handler struct {
	coordinator  *sale.Coordinator
	issuer       *issuance.Service
	rates        sale.RateSource
	events       event.Log
	rateDecimals int
}

// NewHandler creates a new API handler.
func NewHandler(coordinator *sale.Coordinator, issuer *issuance.Service, rates sale.RateSource, events event.Log, rateDecimals int) *Handler {
	return &Handler{
		coordinator:  coordinator,
		issuer:       issuer,
		rates:        rates,
		events:       events,
		rateDecimals: rateDecimals,
	}
}

type purchaseStableRequest struct {
	Buyer string `json:"buyer"`
}

// PurchaseStable handles POST /api/v1/purchase/stable.
func (h *Handler) PurchaseStable(w http.ResponseWriter, r *http.Request) {
	var req purchaseStableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Buyer == "" {
		writeError(w, http.StatusBadRequest, "buyer is required")
		return
	}

	receipt, err := h.coordinator.PurchaseWithStableToken(r.Context(), domain.AccountID(req.Buyer))
	if err != nil {
		writePurchaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type purchaseNativeRequest struct {
	Buyer  string `json:"buyer"`
	Amount string `json:"amount"`
}

// PurchaseNative handles POST /api/v1/purchase/native. Amount is the
// attached native payment in minor units.
func (h *Handler) PurchaseNative(w http.ResponseWriter, r *http.Request) {
	var req purchaseNativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Buyer == "" {
		writeError(w, http.StatusBadRequest, "buyer is required")
		return
	}
	sent, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || sent.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative integer")
		return
	}

	receipt, err := h.coordinator.PurchaseWithNative(r.Context(), domain.AccountID(req.Buyer), sent)
	if err != nil {
		writePurchaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// GetRate handles GET /api/v1/rate.
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.rates.LatestRate(r.Context())
	if err != nil {
		slog.Error("failed to fetch oracle rate", "error", err)
		writeError(w, http.StatusBadGateway, "oracle unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"rate":    strconv.FormatInt(int64(rate), 10),
		"display": domain.RateDecimal(rate, h.rateDecimals).String(),
	})
}

// GetQuote handles GET /api/v1/quote.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	required, err := h.coordinator.QuoteRequired(r.Context())
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidRate) {
			writeError(w, http.StatusServiceUnavailable, "oracle rate not usable")
			return
		}
		slog.Error("failed to quote required amount", "error", err)
		writeError(w, http.StatusBadGateway, "oracle unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"required": required.String()})
}

// ListEvents handles GET /api/v1/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 500
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	events, err := h.events.List(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetStatus handles GET /api/v1/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"sold": h.issuer.Sold()}
	if class, ok := h.issuer.Class(); ok {
		status["class"] = class
	}
	if serial, ok := h.issuer.MintedSerial(); ok {
		status["mintedSerial"] = int64(serial)
	}
	writeJSON(w, http.StatusOK, status)
}

type createClassRequest struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Memo   string `json:"memo"`
}

// CreateClass handles POST /api/v1/class.
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "name and symbol are required")
		return
	}

	classID, err := h.issuer.CreateAssetClass(r.Context(), domain.AccountID(req.Caller), req.Name, req.Symbol, req.Memo)
	if err != nil {
		switch {
		case errors.Is(err, access.ErrAccessDenied):
			writeError(w, http.StatusForbidden, "access denied")
		case errors.Is(err, issuance.ErrClassExists):
			writeError(w, http.StatusConflict, "asset class already created")
		case errors.Is(err, issuance.ErrBackendRejected):
			writeError(w, http.StatusBadGateway, "token backend rejected class creation")
		default:
			slog.Error("failed to create asset class", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"classId": string(classID)})
}

// Deposit handles POST /api/v1/deposit: unsolicited native transfers are
// accepted with no state effect.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writePurchaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sale.ErrSoldOut):
		writeError(w, http.StatusConflict, "asset already sold")
	case errors.Is(err, sale.ErrInsufficientPayment):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, pricing.ErrInvalidRate):
		writeError(w, http.StatusServiceUnavailable, "oracle rate not usable")
	case errors.Is(err, sale.ErrPaymentTransferFailed),
		errors.Is(err, sale.ErrRefundFailed):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, issuance.ErrClassNotCreated):
		writeError(w, http.StatusConflict, "sale not open: asset class not created")
	default:
		slog.Error("purchase failed", "error", err)
		writeError(w, http.StatusBadGateway, "purchase failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
