package users

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/caltrack/caltrack/internal/platform/httpx"
	"github.com/caltrack/caltrack/internal/rbac"
	"github.com/caltrack/caltrack/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: shared.NewValidator()}
}

// GuestRoutes lists the unauthenticated registration endpoint.
func (h *Handler) GuestRoutes() []rbac.Route {
	return []rbac.Route{
		{Method: http.MethodPost, Pattern: "/new", Handler: h.register},
	}
}

// Routes lists the user management endpoints with their allow-lists.
func (h *Handler) Routes() []rbac.Route {
	return []rbac.Route{
		{Method: http.MethodPost, Pattern: "/", Roles: rbac.Require(rbac.RoleAdmin), Handler: h.createUser},
		{Method: http.MethodGet, Pattern: "/", Roles: rbac.Require(rbac.RoleUserManager, rbac.RoleAdmin), Handler: h.listUsers},
		{Method: http.MethodGet, Pattern: "/{id}", Roles: rbac.Require(rbac.RoleUserManager, rbac.RoleAdmin), Handler: h.getUser},
		{Method: http.MethodPut, Pattern: "/{id}", Roles: rbac.Require(rbac.RoleSelf, rbac.RoleAdmin), Handler: h.updateUser},
		{Method: http.MethodDelete, Pattern: "/{id}", Roles: rbac.Require(rbac.RoleAdmin), Handler: h.deleteUser},
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "register user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.CreateWithPrivileges(r.Context(), actor, req)
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	res, err := h.service.UpdateUser(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	res, err := h.service.DeleteUser(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.RespondError(w, shared.ValidationError(err))
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := rbac.PathParam(r, rbac.RouteUserParam)
	if err := h.validator.Var(id, "required,uuid"); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: id must be a UUID", httpx.ErrValidation))
		return "", false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
