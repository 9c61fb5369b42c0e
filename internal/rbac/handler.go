package rbac

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hr/meridian-hr/internal/authz"
	"github.com/meridian-hr/meridian-hr/internal/platform/httpx"
	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

// Handler exposes the permission graph administration API.
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

// MountRoutes registers graph administration routes. Mutations are
// restricted to superusers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Use(h.guard.RequireSuperuser())
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Get("/{roleID}", h.getRole)
		r.Delete("/{roleID}", h.deleteRole)
		r.Post("/{roleID}/permissions/{permissionID}", h.grantPermission)
		r.Delete("/{roleID}/permissions/{permissionID}", h.revokePermission)
	})
	r.Route("/permissions", func(r chi.Router) {
		r.Use(h.guard.RequireSuperuser())
		r.Get("/", h.listPermissions)
		r.Post("/", h.createPermission)
	})
}

// MountUserRoutes registers the user-scoped graph routes. Mounted inside
// the /users subtree so they share the {userID} namespace with the
// account handler. Assignment is a superuser operation; reading a
// principal's resolved view needs user:read.
func (h *Handler) MountUserRoutes(r chi.Router) {
	admin := h.guard.RequireSuperuser()
	r.With(admin).Post("/{userID}/roles/{roleID}", h.assignRole)
	r.With(admin).Delete("/{userID}/roles/{roleID}", h.removeRole)

	read := h.guard.RequirePermission(shared.PermUserRead)
	r.With(read).Get("/{userID}/roles", h.listUserRoles)
	r.With(read).Get("/{userID}/permissions", h.resolvePermissions)
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
}

type createPermissionRequest struct {
	Resource    string `json:"resource" validate:"required,min=2,max=64,excludes=:"`
	Action      string `json:"action" validate:"required,min=2,max=64,excludes=:"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), CreateRoleInput{Name: req.Name, Description: req.Description})
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), h.actor(r), chi.URLParam(r, "roleID")); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), CreatePermissionInput{Resource: req.Resource, Action: req.Action, Description: req.Description})
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	permissionID := chi.URLParam(r, "permissionID")
	if err := h.service.GrantPermission(r.Context(), h.actor(r), roleID, permissionID); err != nil {
		h.fail(w, "grant permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	permissionID := chi.URLParam(r, "permissionID")
	if err := h.service.RevokePermission(r.Context(), h.actor(r), roleID, permissionID); err != nil {
		h.fail(w, "revoke permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	roleID := chi.URLParam(r, "roleID")
	if err := h.service.AssignRole(r.Context(), h.actor(r), userID, roleID); err != nil {
		h.fail(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	roleID := chi.URLParam(r, "roleID")
	if err := h.service.RemoveRole(r.Context(), h.actor(r), userID, roleID); err != nil {
		h.fail(w, "remove role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUserRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListUserRoles(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, "list user roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) resolvePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ResolvePermissions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, "resolve permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]string{"permissions": perms})
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

func (h *Handler) actor(r *http.Request) string {
	if claims := token.ClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID()
	}
	return ""
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
