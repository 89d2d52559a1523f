package budget

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

// Handler wires budget endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers HTTP routes for the budget module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleOverview)
	r.Get("/{id}/variance", h.handleVariance)
}

type distributionRequest struct {
	Month      int     `json:"month" validate:"min=1,max=12"`
	Allocation float64 `json:"allocation" validate:"gte=0"`
}

type createRequest struct {
	Name          string                `json:"name" validate:"required"`
	AccountID     int64                 `json:"account_id" validate:"required"`
	CompanyID     *int64                `json:"company_id"`
	StartDate     string                `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string                `json:"end_date" validate:"required,datetime=2006-01-02"`
	Amount        float64               `json:"amount" validate:"gte=0"`
	Distributions []distributionRequest `json:"distributions" validate:"dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)
	input := CreateInput{
		Name:      req.Name,
		AccountID: req.AccountID,
		CompanyID: req.CompanyID,
		StartDate: start,
		EndDate:   end,
		Amount:    req.Amount,
	}
	for _, d := range req.Distributions {
		input.Distributions = append(input.Distributions, DistributionInput{Month: d.Month, Allocation: d.Allocation})
	}
	b, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	variances, err := h.service.Overview(r.Context(),
		parseOptionalID(r.URL.Query().Get("company_id")),
		parseOptionalDate(r.URL.Query().Get("as_of")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, variances)
}

func (h *Handler) handleVariance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Budget", "budget id must be numeric")
		return
	}
	variance, err := h.service.VarianceFor(r.Context(), id, parseOptionalDate(r.URL.Query().Get("as_of")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, variance)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBudgetNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrDistributionMismatch):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Budget", err.Error())
	default:
		h.logger.Error("budget handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseOptionalDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return date
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
