package employee

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hr/meridian-hr/internal/authz"
	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

// Handler manages HR endpoints.
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

// MountRoutes registers HR routes guarded by the employee and
// department permissions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/departments", func(r chi.Router) {
		r.With(h.guard.RequirePermission(shared.PermDepartmentRead)).Get("/", h.listDepartments)
		r.With(h.guard.RequirePermission(shared.PermDepartmentRead)).Get("/{departmentID}/positions", h.listPositions)
		r.With(h.guard.RequirePermission(shared.PermDepartmentWrite)).Post("/", h.createDepartment)
		r.With(h.guard.RequirePermission(shared.PermDepartmentWrite)).Post("/{departmentID}/positions", h.createPosition)
	})
	r.Route("/employees", func(r chi.Router) {
		r.With(h.guard.RequirePermission(shared.PermEmployeeRead)).Get("/", h.listEmployees)
		r.With(h.guard.RequirePermission(shared.PermEmployeeRead)).Get("/{employeeID}", h.getEmployee)
		r.With(h.guard.RequirePermission(shared.PermEmployeeWrite)).Post("/", h.hire)
		r.With(h.guard.RequirePermission(shared.PermEmployeeWrite)).Patch("/{employeeID}", h.updateEmployee)
		r.With(h.guard.RequirePermission(shared.PermEmployeeWrite)).Post("/{employeeID}/terminate", h.terminate)
	})
}

type createDepartmentRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=128"`
	Description string `json:"description" validate:"max=255"`
}

type createPositionRequest struct {
	Title string `json:"title" validate:"required,min=2,max=128"`
}

type hireRequest struct {
	UserID       string `json:"user_id"`
	FirstName    string `json:"first_name" validate:"required,max=64"`
	LastName     string `json:"last_name" validate:"required,max=64"`
	Email        string `json:"email" validate:"required,email"`
	DepartmentID string `json:"department_id" validate:"required"`
	PositionID   string `json:"position_id" validate:"required"`
	HiredAt      string `json:"hired_at" validate:"omitempty,datetime=2006-01-02"`
}

type updateEmployeeRequest struct {
	FirstName    *string `json:"first_name" validate:"omitempty,max=64"`
	LastName     *string `json:"last_name" validate:"omitempty,max=64"`
	Email        *string `json:"email" validate:"omitempty,email"`
	DepartmentID *string `json:"department_id"`
	PositionID   *string `json:"position_id"`
	Status       *string `json:"status" validate:"omitempty,oneof=active on_leave"`
}

type listEmployeesResponse struct {
	Employees  []Employee        `json:"employees"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	deps, err := h.service.ListDepartments(r.Context())
	if err != nil {
		h.fail(w, "list departments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, deps)
}

func (h *Handler) createDepartment(w http.ResponseWriter, r *http.Request) {
	var req createDepartmentRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	dep, err := h.service.CreateDepartment(r.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(w, "create department", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, dep)
}

func (h *Handler) listPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.ListPositions(r.Context(), chi.URLParam(r, "departmentID"))
	if err != nil {
		h.fail(w, "list positions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, positions)
}

func (h *Handler) createPosition(w http.ResponseWriter, r *http.Request) {
	var req createPositionRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	pos, err := h.service.CreatePosition(r.Context(), chi.URLParam(r, "departmentID"), req.Title)
	if err != nil {
		h.fail(w, "create position", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pos)
}

func (h *Handler) hire(w http.ResponseWriter, r *http.Request) {
	var req hireRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := HireInput{
		UserID:       req.UserID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
		PositionID:   req.PositionID,
	}
	if req.HiredAt != "" {
		hiredAt, err := time.Parse("2006-01-02", req.HiredAt)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid hired_at", httpx.ErrValidation))
			return
		}
		input.HiredAt = hiredAt
	}
	emp, err := h.service.Hire(r.Context(), h.actor(r), input)
	if err != nil {
		h.fail(w, "hire employee", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, emp)
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	employees, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.fail(w, "list employees", err)
		return
	}
	if employees == nil {
		employees = []Employee{}
	}
	httpx.JSON(w, http.StatusOK, listEmployeesResponse{Employees: employees, Pagination: pagination})
}

func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.service.Get(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		h.fail(w, "get employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, emp)
}

func (h *Handler) updateEmployee(w http.ResponseWriter, r *http.Request) {
	var req updateEmployeeRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	emp, err := h.service.Update(r.Context(), h.actor(r), chi.URLParam(r, "employeeID"), UpdateInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
		PositionID:   req.PositionID,
		Status:       req.Status,
	})
	if err != nil {
		h.fail(w, "update employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, emp)
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request) {
	emp, err := h.service.Terminate(r.Context(), h.actor(r), chi.URLParam(r, "employeeID"))
	if err != nil {
		h.fail(w, "terminate employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, emp)
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
