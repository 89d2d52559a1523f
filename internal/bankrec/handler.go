package bankrec

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/keystone-erp/keystone-erp/internal/platform/httpx"
)

// Handler wires reconciliation endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers HTTP routes for the reconciliation module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions", h.handleUnreconciled)
	r.Get("/transactions/{id}/candidates", h.handleCandidates)
	r.Post("/transactions/{id}/confirm", h.handleConfirm)
}

func (h *Handler) handleUnreconciled(w http.ResponseWriter, r *http.Request) {
	var bankAccountID *int64
	if raw := r.URL.Query().Get("bank_account_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			bankAccountID = &id
		}
	}
	txns, err := h.service.Unreconciled(r.Context(), bankAccountID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

func (h *Handler) handleCandidates(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Transaction", "transaction id must be numeric")
		return
	}
	candidates, err := h.service.MatchCandidates(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, candidates)
}

type confirmRequest struct {
	VoucherType   string  `json:"voucher_type" validate:"required"`
	VoucherID     int64   `json:"voucher_id" validate:"required"`
	VoucherNo     string  `json:"voucher_no" validate:"required"`
	MatchedAmount float64 `json:"matched_amount" validate:"required"`
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Transaction", "transaction id must be numeric")
		return
	}
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	link, err := h.service.ConfirmMatch(r.Context(), ConfirmInput{
		TransactionID: id,
		VoucherType:   req.VoucherType,
		VoucherID:     req.VoucherID,
		VoucherNo:     req.VoucherNo,
		MatchedAmount: req.MatchedAmount,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, link)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyReconciled):
		httpx.Problem(w, http.StatusConflict, "Already Reconciled", err.Error())
	default:
		h.logger.Error("bankrec handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
