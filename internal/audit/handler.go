package audit

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/caltrack/caltrack/internal/platform/httpx"
	"github.com/caltrack/caltrack/internal/rbac"
)

// Handler exposes the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes lists the administrator-only audit endpoints.
func (h *Handler) Routes() []rbac.Route {
	return []rbac.Route{
		{Method: http.MethodGet, Pattern: "/", Roles: rbac.Require(rbac.RoleAdmin), Handler: h.timeline},
	}
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("audit timeline", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func parseFilters(q url.Values) (TimelineFilters, error) {
	filters := TimelineFilters{
		Actor:    q.Get("actor"),
		Entity:   q.Get("entity"),
		EntityID: q.Get("entityId"),
		Action:   q.Get("action"),
	}
	var err error
	if filters.From, err = parseTime(q, "from"); err != nil {
		return TimelineFilters{}, err
	}
	if filters.To, err = parseTime(q, "to"); err != nil {
		return TimelineFilters{}, err
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return TimelineFilters{}, fmt.Errorf("%w: from must not be after to", httpx.ErrValidation)
	}
	if filters.Page, err = parseInt(q, "page"); err != nil {
		return TimelineFilters{}, err
	}
	if filters.PageSize, err = parseInt(q, "pageSize"); err != nil {
		return TimelineFilters{}, err
	}
	return filters, nil
}

func parseTime(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", httpx.ErrValidation, name)
	}
	return t, nil
}

func parseInt(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", httpx.ErrValidation, name)
	}
	return v, nil
}
