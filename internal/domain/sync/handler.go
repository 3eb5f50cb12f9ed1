package sync

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ghanaemr/nhie-sync/internal/platform/auth"
	"github.com/ghanaemr/nhie-sync/internal/platform/fhir"
	"github.com/ghanaemr/nhie-sync/internal/platform/nhie"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "physician", "nurse")

	api.POST("/nhie/patients/:id/sync", h.SyncPatient, role)
	api.POST("/nhie/encounters/:id/sync", h.SyncEncounter, role)
}

type syncResponse struct {
	ExternalID string `json:"external_id"`
	Result     string `json:"result"`
}

func (h *Handler) SyncPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	res, err := h.svc.SyncPatient(c.Request().Context(), id)
	if err != nil {
		return syncError(err)
	}
	return c.JSON(http.StatusOK, syncResponse{ExternalID: res.ExternalID, Result: res.Kind.String()})
}

func (h *Handler) SyncEncounter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}

	res, err := h.svc.SyncEncounter(c.Request().Context(), id)
	if err != nil {
		return syncError(err)
	}
	return c.JSON(http.StatusOK, syncResponse{ExternalID: res.ExternalID, Result: res.Kind.String()})
}

// syncError maps orchestrator errors onto HTTP statuses for the synchronous
// caller. Retryable failures surface as 502 so clients know the scheduler
// will keep trying.
func syncError(err error) error {
	var notFound *RecordNotFoundError
	if errors.As(err, &notFound) {
		return echo.NewHTTPError(http.StatusNotFound, notFound.Error())
	}

	var mapErr *fhir.MappingError
	if errors.As(err, &mapErr) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, mapErr.Error())
	}

	var rejection *nhie.RemoteRejection
	if errors.As(err, &rejection) {
		if rejection.Retryable() {
			return echo.NewHTTPError(http.StatusBadGateway, rejection.Error())
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, rejection.Error())
	}

	if nhie.Retryable(err) {
		return echo.NewHTTPError(http.StatusBadGateway, "exchange unreachable, submission will be retried")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "sync failed")
}
