package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/machine"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/vending"
)

// Machine is the subset of *machine.Service the API drives.
type Machine interface {
	MachineID() string
	Status() machine.Status
	ListProducts() []vending.ProductSummary
	AddProduct(ctx context.Context, id int, name string, price, quantity int) (vending.ProductSummary, error)
	ReloadProduct(ctx context.Context, productID, quantity int) (vending.ProductSummary, error)
	InsertMoney(ctx context.Context, denomination int) (int, error)
	Purchase(ctx context.Context, productID int) (vending.Sale, error)
	DispenseChange(ctx context.Context) (vending.Coins, error)
	ValidDenominations() []int
	DenominationCounts() vending.Coins
	ReloadCurrency(ctx context.Context, denomination, count int) (vending.Coins, error)
}

type SalesLister interface {
	ListSales(ctx context.Context, machineID string, limit int) ([]machine.SaleRecord, error)
}

type Handler struct {
	machine Machine
	sales   SalesLister
	logger  *zap.Logger
}

// NewHandler builds the API handler. sales may be nil when no journal is
// configured; the sales route is then not mounted.
func NewHandler(m Machine, sales SalesLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{machine: m, sales: sales, logger: logger}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) GetMachine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.machine.Status())
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.machine.ListProducts())
}

type addProductRequest struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.machine.AddProduct(r.Context(), req.ID, req.Name, req.Price, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type reloadProductRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) ReloadProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(chi.URLParam(r, "productId"))
	if err != nil {
		writeErrorBody(w, r, http.StatusBadRequest, "bad_request", "productId must be an integer", nil)
		return
	}
	var req reloadProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.machine.ReloadProduct(r.Context(), productID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type insertMoneyRequest struct {
	Denomination int `json:"denomination"`
}

type balanceResponse struct {
	Balance int `json:"balance"`
}

func (h *Handler) InsertMoney(w http.ResponseWriter, r *http.Request) {
	var req insertMoneyRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.machine.InsertMoney(r.Context(), req.Denomination)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

type purchaseRequest struct {
	ProductID int `json:"productId"`
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	sale, err := h.machine.Purchase(r.Context(), req.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

type changeResponse struct {
	Amount int           `json:"amount"`
	Coins  vending.Coins `json:"coins"`
}

func (h *Handler) DispenseChange(w http.ResponseWriter, r *http.Request) {
	coins, err := h.machine.DispenseChange(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changeResponse{Amount: coins.Value(), Coins: coins})
}

type denominationsResponse struct {
	Denominations []int         `json:"denominations"`
	Counts        vending.Coins `json:"counts"`
}

func (h *Handler) GetDenominations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, denominationsResponse{
		Denominations: h.machine.ValidDenominations(),
		Counts:        h.machine.DenominationCounts(),
	})
}

type reloadCurrencyRequest struct {
	Denomination int `json:"denomination"`
	Count        int `json:"count"`
}

func (h *Handler) ReloadCurrency(w http.ResponseWriter, r *http.Request) {
	var req reloadCurrencyRequest
	if !h.decode(w, r, &req) {
		return
	}
	counts, err := h.machine.ReloadCurrency(r.Context(), req.Denomination, req.Count)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, denominationsResponse{
		Denominations: h.machine.ValidDenominations(),
		Counts:        counts,
	})
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErrorBody(w, r, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	sales, err := h.sales.ListSales(r.Context(), h.machine.MachineID(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

// maxBodyBytes caps request bodies; every request type is a few small fields.
const maxBodyBytes = 1 << 20

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorBody(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large", nil)
			return false
		}
		writeErrorBody(w, r, http.StatusBadRequest, "bad_request", "malformed JSON body", nil)
		return false
	}
	return true
}

type errorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	Shortfall     *int   `json:"shortfall,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", machine.CorrelationID(r.Context())),
			zap.Error(err),
		)
		msg = "internal error"
	}

	var shortfall *int
	var ibe *vending.InsufficientBalanceError
	if errors.As(err, &ibe) {
		n := ibe.Shortfall()
		shortfall = &n
	}
	writeErrorBody(w, r, status, code, msg, shortfall)
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, code, msg string, shortfall *int) {
	writeJSON(w, status, errorResponse{
		Error:         msg,
		Code:          code,
		Shortfall:     shortfall,
		CorrelationID: machine.CorrelationID(r.Context()),
	})
}

// classify maps machine errors onto HTTP status codes. ErrInvalidDenomination
// is checked before ErrValidation since it carries its own status.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, vending.ErrInvalidDenomination):
		return http.StatusUnprocessableEntity, "invalid_denomination"
	case errors.Is(err, vending.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, vending.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, vending.ErrDuplicateID):
		return http.StatusConflict, "duplicate_id"
	case errors.Is(err, vending.ErrCapacity):
		return http.StatusConflict, "capacity_exceeded"
	case errors.Is(err, vending.ErrOutOfStock):
		return http.StatusConflict, "out_of_stock"
	case errors.Is(err, vending.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, vending.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, vending.ErrInsufficientReserve):
		return http.StatusServiceUnavailable, "insufficient_reserve"
	case errors.Is(err, vending.ErrExactChangeUnavailable):
		return http.StatusServiceUnavailable, "exact_change_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
