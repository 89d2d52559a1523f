package payments

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

// Handler wires payment ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers HTTP routes for the payments module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.handleRecordEntry)
	r.Post("/vouchers/{voucherType}/{voucherNo}/cancel", h.handleCancel)
	r.Get("/outstanding", h.handleOutstanding)
	r.Get("/reports/aging", h.handleAging)
}

type recordEntryRequest struct {
	AccountType      string  `json:"account_type" validate:"required,oneof=Receivable Payable"`
	Party            string  `json:"party" validate:"required"`
	PostingDate      string  `json:"posting_date" validate:"required,datetime=2006-01-02"`
	VoucherType      string  `json:"voucher_type" validate:"required"`
	VoucherNo        string  `json:"voucher_no" validate:"required"`
	AgainstVoucherNo string  `json:"against_voucher_no"`
	Amount           float64 `json:"amount" validate:"required"`
	ReferenceNo      string  `json:"reference_no"`
	CompanyID        *int64  `json:"company_id"`
}

func (h *Handler) handleRecordEntry(w http.ResponseWriter, r *http.Request) {
	var req recordEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	postingDate, _ := time.Parse("2006-01-02", req.PostingDate)
	entry, err := h.service.RecordEntry(r.Context(), RecordInput{
		AccountType:      AccountType(req.AccountType),
		Party:            req.Party,
		PostingDate:      postingDate,
		VoucherType:      req.VoucherType,
		VoucherNo:        req.VoucherNo,
		AgainstVoucherNo: req.AgainstVoucherNo,
		Amount:           req.Amount,
		ReferenceNo:      req.ReferenceNo,
		CompanyID:        req.CompanyID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.CancelEntries(r.Context(),
		chi.URLParam(r, "voucherType"), chi.URLParam(r, "voucherNo"),
		parseOptionalID(r.URL.Query().Get("company_id")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entries)
}

func (h *Handler) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	party := r.URL.Query().Get("party")
	if party == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "party is required")
		return
	}
	companyID := parseOptionalID(r.URL.Query().Get("company_id"))
	if voucher := r.URL.Query().Get("voucher_no"); voucher != "" {
		sum, err := h.service.Outstanding(r.Context(), party, voucher, companyID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"party": party, "voucher_no": voucher, "outstanding": sum})
		return
	}
	var accountType *AccountType
	if raw := r.URL.Query().Get("account_type"); raw != "" {
		at := AccountType(raw)
		accountType = &at
	}
	sum, err := h.service.PartyOutstanding(r.Context(), party, accountType, companyID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"party": party, "outstanding": sum})
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.AgingReport(r.Context(), parseOptionalID(r.URL.Query().Get("company_id")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrZeroAmount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Entry Rejected", err.Error())
	case errors.Is(err, ErrVoucherNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyCancelled):
		httpx.Problem(w, http.StatusConflict, "Already Cancelled", err.Error())
	default:
		h.logger.Error("payments handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseOptionalID(raw string) *int64 {
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
