package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/keystone-erp/keystone-erp/internal/platform/httpx"
)

// Handler wires stock ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers HTTP routes for the stock module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handlePostMovement)
	r.Post("/vouchers/{voucherType}/{voucherNo}/cancel", h.handleCancel)
	r.Get("/balances", h.handleBalances)
	r.Get("/ledger", h.handleLedger)
}

type movementRequest struct {
	Purpose       string  `json:"purpose" validate:"required,oneof=Receipt Issue Transfer"`
	ItemCode      string  `json:"item_code" validate:"required"`
	Qty           float64 `json:"qty" validate:"required,gt=0"`
	Rate          float64 `json:"rate" validate:"gte=0"`
	Warehouse     string  `json:"warehouse"`
	FromWarehouse string  `json:"from_warehouse"`
	ToWarehouse   string  `json:"to_warehouse"`
	VoucherType   string  `json:"voucher_type" validate:"required"`
	VoucherNo     string  `json:"voucher_no" validate:"required"`
	PostingDate   string  `json:"posting_date" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) handlePostMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	postingDate, _ := time.Parse("2006-01-02", req.PostingDate)
	entries, err := h.service.Post(r.Context(), MovementInput{
		Purpose:       Purpose(req.Purpose),
		ItemCode:      req.ItemCode,
		Qty:           req.Qty,
		Rate:          req.Rate,
		Warehouse:     req.Warehouse,
		FromWarehouse: req.FromWarehouse,
		ToWarehouse:   req.ToWarehouse,
		VoucherType:   req.VoucherType,
		VoucherNo:     req.VoucherNo,
		PostingDate:   postingDate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entries)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.CancelEntries(r.Context(), chi.URLParam(r, "voucherType"), chi.URLParam(r, "voucherNo"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entries)
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.Balances(r.Context(), filterFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	entries, page, err := h.service.LedgerPage(r.Context(), filterFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"pagination": page,
	})
}

func filterFromQuery(r *http.Request) LedgerFilter {
	filter := LedgerFilter{
		ItemCode:  r.URL.Query().Get("item_code"),
		Warehouse: r.URL.Query().Get("warehouse"),
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		filter.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil {
		filter.PerPage = v
	}
	return filter
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidRate), errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Movement Rejected", err.Error())
	case errors.Is(err, ErrVoucherNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyCancelled):
		httpx.Problem(w, http.StatusConflict, "Already Cancelled", err.Error())
	default:
		h.logger.Error("stock handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
