package meals

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/caltrack/caltrack/internal/platform/httpx"
	"github.com/caltrack/caltrack/internal/rbac"
	"github.com/caltrack/caltrack/internal/shared"
)

// Handler exposes meal endpoints nested under a user.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: shared.NewValidator()}
}

// Routes lists the meal endpoints relative to the users prefix. Owners,
// user managers and administrators may manage meals.
func (h *Handler) Routes() []rbac.Route {
	roles := rbac.Require(rbac.RoleSelf, rbac.RoleUserManager, rbac.RoleAdmin)
	return []rbac.Route{
		{Method: http.MethodPost, Pattern: "/{id}/meals", Roles: roles, Handler: h.addMeal},
		{Method: http.MethodGet, Pattern: "/{id}/meals", Roles: roles, Handler: h.listMeals},
		{Method: http.MethodGet, Pattern: "/{id}/meals/summary", Roles: roles, Handler: h.summary},
		{Method: http.MethodPut, Pattern: "/{id}/meals/{mealId}", Roles: roles, Handler: h.updateMeal},
		{Method: http.MethodDelete, Pattern: "/{id}/meals/{mealId}", Roles: roles, Handler: h.deleteMeal},
	}
}

func (h *Handler) addMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.param(w, r, rbac.RouteUserParam)
	if !ok {
		return
	}
	var req MealRequest
	if !h.decode(w, r, &req) {
		return
	}
	meal, err := h.service.AddMeal(r.Context(), userID, req)
	if err != nil {
		h.fail(w, "add meal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, meal)
}

func (h *Handler) listMeals(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.param(w, r, rbac.RouteUserParam)
	if !ok {
		return
	}
	var window Window
	var err error
	if window.From, err = queryMillis(r, "from"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if window.To, err = queryMillis(r, "to"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	meals, err := h.service.ListMeals(r.Context(), userID, window)
	if err != nil {
		h.fail(w, "list meals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, meals)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.param(w, r, rbac.RouteUserParam)
	if !ok {
		return
	}
	from, to := h.service.DefaultWindow()
	if v, err := queryMillis(r, "from"); err != nil {
		httpx.RespondError(w, err)
		return
	} else if v != nil {
		from = *v
	}
	if v, err := queryMillis(r, "to"); err != nil {
		httpx.RespondError(w, err)
		return
	} else if v != nil {
		to = *v
	}
	if from > to {
		httpx.RespondError(w, fmt.Errorf("%w: from must not be after to", httpx.ErrValidation))
		return
	}
	summary, err := h.service.Summary(r.Context(), userID, from, to)
	if err != nil {
		h.fail(w, "meal summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) updateMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.param(w, r, rbac.RouteUserParam)
	if !ok {
		return
	}
	mealID, ok := h.param(w, r, "mealId")
	if !ok {
		return
	}
	var req MealRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.UpdateMeal(r.Context(), userID, mealID, req)
	if err != nil {
		h.fail(w, "update meal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) deleteMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.param(w, r, rbac.RouteUserParam)
	if !ok {
		return
	}
	mealID, ok := h.param(w, r, "mealId")
	if !ok {
		return
	}
	res, err := h.service.DeleteMeal(r.Context(), userID, mealID)
	if err != nil {
		h.fail(w, "delete meal", err)
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

func (h *Handler) param(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := rbac.PathParam(r, name)
	if err := h.validator.Var(value, "required,uuid"); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s must be a UUID", httpx.ErrValidation, name))
		return "", false
	}
	return value, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func queryMillis(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be epoch milliseconds", httpx.ErrValidation, name)
	}
	return &v, nil
}
