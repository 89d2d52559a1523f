package vouchers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/keystone-erp/keystone-erp/internal/gl"
	"github.com/keystone-erp/keystone-erp/internal/lifecycle"
	"github.com/keystone-erp/keystone-erp/internal/payments"
	"github.com/keystone-erp/keystone-erp/internal/platform/httpx"
	"github.com/keystone-erp/keystone-erp/internal/shared"
	"github.com/keystone-erp/keystone-erp/internal/stock"
)

// Handler wires voucher coordination endpoints.
type Handler struct {
	logger      *slog.Logger
	coordinator *Coordinator
	validator   *validator.Validate
	idempotency *shared.IdempotencyStore
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, coordinator *Coordinator) *Handler {
	return &Handler{logger: logger, coordinator: coordinator, validator: validator.New()}
}

// WithIdempotency enables Idempotency-Key deduplication on submit.
func (h *Handler) WithIdempotency(store *shared.IdempotencyStore) {
	h.idempotency = store
}

// MountRoutes registers HTTP routes for the voucher module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleSubmit)
	r.Get("/", h.handleList)
	r.Get("/{doctype}/{name}", h.handleGet)
	r.Post("/{doctype}/{name}/cancel", h.handleCancel)
}

type glMovementRequest struct {
	Account   string  `json:"account" validate:"required"`
	Debit     float64 `json:"debit" validate:"gte=0"`
	Credit    float64 `json:"credit" validate:"gte=0"`
	PartyType string  `json:"party_type"`
	Party     string  `json:"party"`
	Against   string  `json:"against"`
}

type stockMovementRequest struct {
	Purpose       string  `json:"purpose" validate:"required,oneof=Receipt Issue Transfer"`
	ItemCode      string  `json:"item_code" validate:"required"`
	Qty           float64 `json:"qty" validate:"required,gt=0"`
	Rate          float64 `json:"rate" validate:"gte=0"`
	Warehouse     string  `json:"warehouse"`
	FromWarehouse string  `json:"from_warehouse"`
	ToWarehouse   string  `json:"to_warehouse"`
}

type paymentEffectRequest struct {
	AccountType      string  `json:"account_type" validate:"required,oneof=Receivable Payable"`
	Party            string  `json:"party" validate:"required"`
	Amount           float64 `json:"amount" validate:"required"`
	AgainstVoucherNo string  `json:"against_voucher_no"`
	ReferenceNo      string  `json:"reference_no"`
}

type submitRequest struct {
	Doctype        string                 `json:"doctype" validate:"required"`
	PostingDate    string                 `json:"posting_date" validate:"required,datetime=2006-01-02"`
	CompanyID      *int64                 `json:"company_id"`
	Movements      []glMovementRequest    `json:"movements" validate:"dive"`
	StockMovements []stockMovementRequest `json:"stock_movements" validate:"dive"`
	PaymentEffects []paymentEffectRequest `json:"payment_effects" validate:"dive"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	postingDate, _ := time.Parse("2006-01-02", req.PostingDate)
	input := SubmitInput{
		Doctype:     req.Doctype,
		PostingDate: postingDate,
		CompanyID:   req.CompanyID,
		ActorID:     shared.ActorID(r.Context()),
	}
	for _, mv := range req.Movements {
		input.Movements = append(input.Movements, gl.Movement{
			Account:   mv.Account,
			Debit:     mv.Debit,
			Credit:    mv.Credit,
			PartyType: mv.PartyType,
			Party:     mv.Party,
			Against:   mv.Against,
		})
	}
	for _, mv := range req.StockMovements {
		input.StockMovements = append(input.StockMovements, StockMovement{
			Purpose:       stock.Purpose(mv.Purpose),
			ItemCode:      mv.ItemCode,
			Qty:           mv.Qty,
			Rate:          mv.Rate,
			Warehouse:     mv.Warehouse,
			FromWarehouse: mv.FromWarehouse,
			ToWarehouse:   mv.ToWarehouse,
		})
	}
	for _, pe := range req.PaymentEffects {
		input.PaymentEffects = append(input.PaymentEffects, PaymentEffect{
			AccountType:      payments.AccountType(pe.AccountType),
			Party:            pe.Party,
			Amount:           pe.Amount,
			AgainstVoucherNo: pe.AgainstVoucherNo,
			ReferenceNo:      pe.ReferenceNo,
		})
	}
	idemKey := r.Header.Get("Idempotency-Key")
	if h.idempotency != nil && idemKey != "" {
		if err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "vouchers"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
				return
			}
			h.respondError(w, err)
			return
		}
	}
	doc, err := h.coordinator.Submit(r.Context(), input)
	if err != nil {
		if h.idempotency != nil && idemKey != "" {
			if delErr := h.idempotency.Delete(r.Context(), idemKey, "vouchers"); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	doc, err := h.coordinator.Cancel(r.Context(),
		chi.URLParam(r, "doctype"), chi.URLParam(r, "name"), shared.ActorID(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.coordinator.Get(r.Context(), chi.URLParam(r, "doctype"), chi.URLParam(r, "name"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var status *lifecycle.DocStatus
	if raw := r.URL.Query().Get("docstatus"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			s := lifecycle.DocStatus(v)
			status = &s
		}
	}
	docs, err := h.coordinator.List(r.Context(), r.URL.Query().Get("doctype"), status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrDocumentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, gl.ErrUnbalancedEntry), errors.Is(err, gl.ErrGroupAccount),
		errors.Is(err, stock.ErrInvalidQuantity), errors.Is(err, stock.ErrInvalidRate),
		errors.Is(err, stock.ErrNegativeStock), errors.Is(err, payments.ErrZeroAmount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Posting Rejected", err.Error())
	case errors.Is(err, gl.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("vouchers handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
