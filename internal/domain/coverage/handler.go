package coverage

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ghanaemr/nhie-sync/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "physician", "nurse")
	api.GET("/nhie/coverage", h.CheckCoverage, role)
}

func (h *Handler) CheckCoverage(c echo.Context) error {
	nhis := c.QueryParam("nhis")
	if nhis == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "nhis query parameter required")
	}
	refresh, _ := strconv.ParseBool(c.QueryParam("refresh"))

	res, err := h.svc.CheckCoverage(c.Request().Context(), nhis, refresh)
	if err != nil {
		var valErr *ValidationError
		if errors.As(err, &valErr) {
			return echo.NewHTTPError(http.StatusBadRequest, valErr.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "coverage check failed")
	}
	return c.JSON(http.StatusOK, res)
}
