package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ghanaemr/nhie-sync/internal/platform/nhie"
)

func TestHandler_SyncPatient(t *testing.T) {
	p := testPatient()
	patients := newFakePatients(p)
	client := &fakeClient{outcomes: []*nhie.Outcome{
		outcomeFor(201, `{"resourceType":"Patient","id":"p-1"}`, "p-1"),
	}}
	svc, _ := newTestService(patients, client)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.SyncPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp syncResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.ExternalID != "p-1" || resp.Result != "created" {
		t.Errorf("response = %+v, want p-1 created", resp)
	}
}

func TestHandler_SyncPatient_NotFound(t *testing.T) {
	svc, _ := newTestService(newFakePatients(), &fakeClient{})
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.SyncPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_SyncPatient_MappingFailure(t *testing.T) {
	p := testPatient()
	p.GhanaCard = ""
	svc, _ := newTestService(newFakePatients(p), &fakeClient{})
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.SyncPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_SyncPatient_RetryableFailure(t *testing.T) {
	p := testPatient()
	client := &fakeClient{outcomes: []*nhie.Outcome{
		outcomeFor(503, `{"resourceType":"OperationOutcome"}`, ""),
	}}
	svc, _ := newTestService(newFakePatients(p), client)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.SyncPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for a retryable failure, got %v", err)
	}
}

func TestHandler_SyncPatient_BadID(t *testing.T) {
	svc, _ := newTestService(newFakePatients(), &fakeClient{})
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.SyncPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
