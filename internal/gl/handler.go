package gl

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/keystone-erp/keystone-erp/internal/gl/reports"
	"github.com/keystone-erp/keystone-erp/internal/platform/httpx"
)

// Handler wires general ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.handleListAccounts)
	r.Get("/accounts/{id}/balance", h.handleAccountBalance)
	r.Get("/roles/{role}/account", h.handleRoleAccount)
	r.Post("/entries", h.handlePostEntries)
	r.Post("/vouchers/{voucherType}/{voucherNo}/reverse", h.handleReverse)
	r.Get("/reports/trial-balance", h.handleTrialBalance)
	r.Get("/reports/profit-loss", h.handleProfitLoss)
	r.Get("/reports/balance-sheet", h.handleBalanceSheet)
}

type movementRequest struct {
	Account   string  `json:"account" validate:"required"`
	Debit     float64 `json:"debit" validate:"gte=0"`
	Credit    float64 `json:"credit" validate:"gte=0"`
	PartyType string  `json:"party_type"`
	Party     string  `json:"party"`
	Against   string  `json:"against"`
}

type postEntriesRequest struct {
	VoucherType string            `json:"voucher_type" validate:"required"`
	VoucherNo   string            `json:"voucher_no" validate:"required"`
	PostingDate string            `json:"posting_date" validate:"required,datetime=2006-01-02"`
	CompanyID   *int64            `json:"company_id"`
	Movements   []movementRequest `json:"movements" validate:"required,min=1,dive"`
}

func (h *Handler) handlePostEntries(w http.ResponseWriter, r *http.Request) {
	var req postEntriesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	postingDate, _ := time.Parse("2006-01-02", req.PostingDate)
	input := PostingInput{
		VoucherType: req.VoucherType,
		VoucherNo:   req.VoucherNo,
		PostingDate: postingDate,
		CompanyID:   req.CompanyID,
	}
	for _, mv := range req.Movements {
		input.Movements = append(input.Movements, Movement{
			Account:   mv.Account,
			Debit:     mv.Debit,
			Credit:    mv.Credit,
			PartyType: mv.PartyType,
			Party:     mv.Party,
			Against:   mv.Against,
		})
	}
	entries, err := h.service.PostEntries(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entries)
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	voucherType := chi.URLParam(r, "voucherType")
	voucherNo := chi.URLParam(r, "voucherNo")
	companyID := parseOptionalID(r.URL.Query().Get("company_id"))
	entries, err := h.service.ReverseEntries(r.Context(), voucherType, voucherNo, companyID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entries)
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) handleRoleAccount(w http.ResponseWriter, r *http.Request) {
	role := AccountRole(strings.ToUpper(chi.URLParam(r, "role")))
	companyID := parseOptionalID(r.URL.Query().Get("company_id"))
	account, err := h.service.RoleAccount(r.Context(), companyID, role)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Account", "account id must be numeric")
		return
	}
	q := BalanceQuery{
		AccountID: accountID,
		FromDate:  parseOptionalDate(r.URL.Query().Get("from")),
		ToDate:    parseOptionalDate(r.URL.Query().Get("to")),
		CompanyID: parseOptionalID(r.URL.Query().Get("company_id")),
	}
	balance, err := h.service.AccountBalance(r.Context(), q)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	rows, err := h.accountRows(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports.BuildTrialBalance(rows))
}

func (h *Handler) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	rows, err := h.accountRows(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports.BuildProfitAndLoss(rows))
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	rows, err := h.accountRows(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports.BuildBalanceSheet(rows))
}

func (h *Handler) accountRows(r *http.Request) ([]reports.AccountRow, error) {
	totals, err := h.service.AccountTotals(r.Context(),
		parseOptionalDate(r.URL.Query().Get("from")),
		parseOptionalDate(r.URL.Query().Get("to")),
		parseOptionalID(r.URL.Query().Get("company_id")))
	if err != nil {
		return nil, err
	}
	rows := make([]reports.AccountRow, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, reports.AccountRow{
			AccountID: t.AccountID,
			Name:      t.Name,
			RootType:  string(t.RootType),
			Debit:     t.Debit,
			Credit:    t.Credit,
		})
	}
	return rows, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnbalancedEntry), errors.Is(err, ErrGroupAccount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Posting Rejected", err.Error())
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrVoucherNotFound), errors.Is(err, ErrRoleNotMapped):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyCancelled):
		httpx.Problem(w, http.StatusConflict, "Already Cancelled", err.Error())
	default:
		h.logger.Error("gl handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseOptionalDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &date
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
