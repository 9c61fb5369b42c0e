package payroll

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hr/meridian-hr/internal/authz"
	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

// Handler manages payroll endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	guard    authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), guard: guard}
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermPayrollRead))
		r.Get("/runs", h.listRuns)
		r.Get("/runs/{runID}", h.getRun)
		r.Get("/runs/{runID}/payslips", h.listPayslips)
		r.Get("/employees/{employeeID}/salary", h.getSalary)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermPayrollWrite))
		r.Post("/runs", h.startRun)
		r.Put("/employees/{employeeID}/salary", h.setSalary)
	})
}

type setSalaryRequest struct {
	BaseCents      int64  `json:"base_cents" validate:"required,gt=0"`
	AllowanceCents int64  `json:"allowance_cents" validate:"gte=0"`
	DeductionCents int64  `json:"deduction_cents" validate:"gte=0"`
	Currency       string `json:"currency" validate:"omitempty,len=3,uppercase"`
	EffectiveFrom  string `json:"effective_from" validate:"omitempty,datetime=2006-01-02"`
}

type startRunRequest struct {
	Period string `json:"period" validate:"required"`
}

type runResponse struct {
	Run      Run       `json:"run"`
	Payslips []Payslip `json:"payslips,omitempty"`
}

func (h *Handler) setSalary(w http.ResponseWriter, r *http.Request) {
	var req setSalaryRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := SetSalaryInput{
		EmployeeID:     chi.URLParam(r, "employeeID"),
		BaseCents:      req.BaseCents,
		AllowanceCents: req.AllowanceCents,
		DeductionCents: req.DeductionCents,
		Currency:       req.Currency,
	}
	if req.EffectiveFrom != "" {
		from, err := time.Parse("2006-01-02", req.EffectiveFrom)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid effective_from", httpx.ErrValidation))
			return
		}
		input.EffectiveFrom = from
	}
	record, err := h.service.SetSalary(r.Context(), h.actor(r), input)
	if err != nil {
		h.fail(w, "set salary", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) getSalary(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetSalary(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		h.fail(w, "get salary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	run, slips, err := h.service.StartRun(r.Context(), h.actor(r), req.Period)
	if err != nil {
		if errors.Is(err, ErrInvalidPeriod) {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
			return
		}
		h.fail(w, "start payroll run", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, runResponse{Run: run, Payslips: slips})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.service.ListRuns(r.Context())
	if err != nil {
		h.fail(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	httpx.JSON(w, http.StatusOK, runs)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, "get run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, runResponse{Run: run})
}

func (h *Handler) listPayslips(w http.ResponseWriter, r *http.Request) {
	slips, err := h.service.ListPayslips(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, "list payslips", err)
		return
	}
	if slips == nil {
		slips = []Payslip{}
	}
	httpx.JSON(w, http.StatusOK, slips)
}

func (h *Handler) actor(r *http.Request) string {
	if claims := token.ClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID()
	}
	return ""
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return fmt.Errorf("%w: invalid request body", httpx.ErrValidation)
	}
	if err := h.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
