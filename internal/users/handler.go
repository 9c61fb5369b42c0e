package users

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hr/meridian-hr/internal/authz"
	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

// Handler manages account endpoints.
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

// MountSignUp registers the public self-service registration route.
func (h *Handler) MountSignUp(r chi.Router) {
	r.Post("/sign-up", h.signUp)
}

// MountRoutes registers the authenticated account routes. Reading other
// accounts needs user:read; creating and deactivating are superuser
// operations. A principal can always read and update itself.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermUserRead))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireSuperuser())
		r.Post("/", h.createUser)
		r.Post("/{userID}/deactivate", h.deactivateUser)
	})
	r.Get("/{userID}", h.getUser)
	r.Patch("/{userID}", h.updateUser)
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	IsSuperuser bool   `json:"is_superuser"`
}

type updateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

type listUsersResponse struct {
	Users      []User            `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.SignUp(r.Context(), CreateUserInput{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		h.fail(w, "sign up", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Create(r.Context(), CreateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		IsSuperuser: req.IsSuperuser,
	})
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	users, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.JSON(w, http.StatusOK, listUsersResponse{Users: users, Pagination: pagination})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.selfOr(r, userID, shared.PermUserRead); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.selfOr(r, userID, shared.PermUserWrite); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateUserRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Update(r.Context(), h.actor(r), userID, UpdateUserInput{Email: req.Email, Password: req.Password})
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context(), h.actor(r), chi.URLParam(r, "userID")); err != nil {
		h.fail(w, "deactivate user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// selfOr allows the principal itself, otherwise requires the permission.
func (h *Handler) selfOr(r *http.Request, userID, perm string) error {
	claims := token.ClaimsFromContext(r.Context())
	if claims == nil {
		return token.ErrMalformed
	}
	if claims.UserID() == userID {
		return nil
	}
	return authz.Check(claims, perm)
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
