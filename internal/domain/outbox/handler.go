package outbox

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ghanaemr/nhie-sync/internal/platform/auth"
	"github.com/ghanaemr/nhie-sync/pkg/pagination"
)

// Handler exposes the dead-letter queue and the submission metrics used by
// the facility dashboard.
type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	view := auth.RequireRole("admin", "physician", "nurse")
	manage := auth.RequireRole("admin")

	api.GET("/nhie/metrics", h.GetMetrics, view)
	api.GET("/nhie/dlq", h.ListDLQ, view)
	api.POST("/nhie/dlq/:id/requeue", h.RequeueDLQ, manage)
}

func (h *Handler) GetMetrics(c echo.Context) error {
	m, err := h.repo.Metrics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "metrics query failed")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListDLQ(c echo.Context) error {
	p := pagination.FromContext(c)
	entries, total, err := h.repo.ListDeadLetters(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "dead-letter query failed")
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, p.Limit, p.Offset))
}

func (h *Handler) RequeueDLQ(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}

	entry, err := h.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "entry not found")
	}
	if entry.Status != StatusDLQ {
		return echo.NewHTTPError(http.StatusConflict, "entry is not in the dead-letter queue")
	}

	if err := h.repo.Requeue(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "requeue failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id.String(), "status": StatusFailed})
}
