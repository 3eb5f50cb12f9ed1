package nhie

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ghanaemr/nhie-sync/internal/platform/fhir"
)

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"mock mode", Config{Mode: "mock"}, "http://nhie-mock:8080/fhir"},
		{"sandbox mode", Config{Mode: "sandbox"}, "https://nhie-sandbox.moh.gov.gh/fhir"},
		{"production mode", Config{Mode: "production"}, "https://nhie.moh.gov.gh/fhir"},
		{"empty defaults to mock", Config{}, "http://nhie-mock:8080/fhir"},
		{"unknown falls back to mock", Config{Mode: "staging"}, "http://nhie-mock:8080/fhir"},
		{"override wins", Config{Mode: "production", BaseURLOverride: "http://localhost:9090/fhir"}, "http://localhost:9090/fhir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.cfg, zerolog.Nop())
			if c.BaseURL() != tt.want {
				t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), tt.want)
			}
		})
	}
}

func TestSubmitConditionalCreate(t *testing.T) {
	var gotPath, gotIfNoneExist, gotContentType, gotAuth string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIfNoneExist = r.Header.Get("If-None-Exist")
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Location", srv.URL+"/Patient/p-1/_history/1")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"resourceType":"Patient","id":"p-1"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURLOverride: srv.URL}, zerolog.Nop())
	out, err := c.Submit(context.Background(), "Patient", []byte(`{"resourceType":"Patient"}`), "GHA-123456784-8")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if gotPath != "/Patient" {
		t.Errorf("path = %q, want /Patient", gotPath)
	}
	want := "identifier=http://moh.gov.gh/fhir/identifier/ghana-card|GHA-123456784-8"
	if gotIfNoneExist != want {
		t.Errorf("If-None-Exist = %q, want %q", gotIfNoneExist, want)
	}
	if gotContentType != "application/fhir+json" {
		t.Errorf("Content-Type = %q, want application/fhir+json", gotContentType)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want none when OAuth disabled", gotAuth)
	}
	if !out.Success {
		t.Errorf("outcome not successful: %+v", out)
	}
	if out.ResourceID != "p-1" {
		t.Errorf("ResourceID = %q, want p-1 from Location header", out.ResourceID)
	}
}

func TestSubmitSendsBearerTokenWhenOAuthEnabled(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"resourceType":"Patient","id":"p-1"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURLOverride: srv.URL, OAuthEnabled: true, OAuthTokenURL: srv.URL, OAuthClientID: "id", OAuthClientSecret: "secret"}, zerolog.Nop())
	c.TokenSource().Seed("seeded-token", time.Now().Add(time.Hour))

	if _, err := c.Submit(context.Background(), "Patient", []byte(`{}`), ""); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if gotAuth != "Bearer seeded-token" {
		t.Errorf("Authorization = %q, want Bearer seeded-token", gotAuth)
	}
}

func TestSubmitClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"validation rejection", 422, false},
		{"conflict", 409, false},
		{"server error", 500, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"resourceType":"OperationOutcome"}`))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURLOverride: srv.URL}, zerolog.Nop())
			out, err := c.Submit(context.Background(), "Patient", []byte(`{}`), "")
			if err != nil {
				t.Fatalf("Submit() error: %v", err)
			}
			if out.Success {
				t.Errorf("status %d reported as success", tt.status)
			}
			if out.Retryable != tt.retryable {
				t.Errorf("status %d retryable = %v, want %v", tt.status, out.Retryable, tt.retryable)
			}
		})
	}
}

func TestSubmitSurfacesRejectionDiagnostics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"business-rule","diagnostics":"birthDate is in the future"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURLOverride: srv.URL}, zerolog.Nop())
	out, err := c.Submit(context.Background(), "Patient", []byte(`{}`), "")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if !strings.Contains(out.ErrorMessage, "birthDate is in the future") {
		t.Errorf("error message %q does not carry the exchange diagnostics", out.ErrorMessage)
	}
	if !strings.Contains(out.ErrorMessage, "business rule violation") {
		t.Errorf("error message %q lost the taxonomy message", out.ErrorMessage)
	}
}

func TestSubmitTransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // force connection refused

	c := NewClient(Config{BaseURLOverride: srv.URL}, zerolog.Nop())
	_, err := c.Submit(context.Background(), "Patient", []byte(`{}`), "")
	if err == nil {
		t.Fatal("Submit() to closed server expected error")
	}
	if !Retryable(err) {
		t.Errorf("transport failure should be retryable, got %v", err)
	}
}

func TestFetchAndSearch(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"resourceType":"Bundle","total":0}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURLOverride: srv.URL}, zerolog.Nop())

	if _, err := c.Fetch(context.Background(), "Encounter", "e-42"); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if gotPath != "/Encounter/e-42" {
		t.Errorf("Fetch path = %q, want /Encounter/e-42", gotPath)
	}

	if _, err := c.Search(context.Background(), "Patient", fhir.GhanaCardSystem, "GHA-123456784-8"); err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if !strings.Contains(gotQuery, "identifier=") {
		t.Errorf("Search query = %q, missing identifier parameter", gotQuery)
	}

	if _, err := c.CheckEligibility(context.Background(), "0123456789"); err != nil {
		t.Fatalf("CheckEligibility() error: %v", err)
	}
	if gotPath != "/Coverage" {
		t.Errorf("CheckEligibility path = %q, want /Coverage", gotPath)
	}
	if !strings.Contains(gotQuery, "beneficiary.identifier=") {
		t.Errorf("CheckEligibility query = %q, missing beneficiary.identifier", gotQuery)
	}
}
