// Package nhie is the HTTP client for the Ghana National Health Information
// Exchange FHIR API: endpoint selection by environment mode, OAuth2
// client-credentials token caching with proactive refresh, conditional
// creates via If-None-Exist, and classification of every response into a
// fixed retryable/terminal taxonomy.
package nhie

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/ghanaemr/nhie-sync/internal/platform/fhir"
	"github.com/ghanaemr/nhie-sync/internal/platform/mask"
)

const fhirMediaType = "application/fhir+json"

// Base URLs per environment mode.
const (
	mockBaseURL       = "http://nhie-mock:8080/fhir"
	sandboxBaseURL    = "https://nhie-sandbox.moh.gov.gh/fhir"
	productionBaseURL = "https://nhie.moh.gov.gh/fhir"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 60 * time.Second
)

// Config selects the exchange endpoint and credentials.
type Config struct {
	// Mode is mock, sandbox, or production. Unknown modes fall back to mock
	// with a warning.
	Mode string
	// BaseURLOverride wins over Mode when set.
	BaseURLOverride string

	OAuthEnabled      bool
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Client performs calls against the NHIE FHIR API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenSource
	logger     zerolog.Logger
}

// NewClient builds a client from config. The token source is nil when OAuth
// is disabled (mock mode), in which case no Authorization header is sent.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = DefaultConnectTimeout
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = DefaultReadTimeout
	}

	httpClient := &http.Client{
		Timeout: read,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connect}).DialContext,
		},
	}

	c := &Client{
		baseURL:    resolveBaseURL(cfg, logger),
		httpClient: httpClient,
		logger:     logger,
	}
	if cfg.OAuthEnabled {
		c.tokens = NewTokenSource(cfg.OAuthTokenURL, cfg.OAuthClientID, cfg.OAuthClientSecret, httpClient, logger)
	}
	return c
}

func resolveBaseURL(cfg Config, logger zerolog.Logger) string {
	if cfg.BaseURLOverride != "" {
		return cfg.BaseURLOverride
	}
	switch cfg.Mode {
	case "mock", "":
		return mockBaseURL
	case "sandbox":
		return sandboxBaseURL
	case "production":
		return productionBaseURL
	default:
		logger.Warn().Str("mode", cfg.Mode).Msg("invalid NHIE mode, defaulting to mock")
		return mockBaseURL
	}
}

// BaseURL returns the resolved exchange base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// TokenSource exposes the token cache, for tests and wiring.
func (c *Client) TokenSource() *TokenSource { return c.tokens }

// Submit POSTs a canonical FHIR document to the resource-specific path.
// businessKey, when non-empty, is sent as an If-None-Exist conditional-create
// precondition so resubmission of an already-created resource returns the
// existing one instead of a duplicate.
func (c *Client) Submit(ctx context.Context, resourceType string, document []byte, businessKey string) (*Outcome, error) {
	u := c.baseURL + "/" + resourceType

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(document))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", fhirMediaType)
	req.Header.Set("Accept", fhirMediaType)

	if businessKey != "" {
		ifNoneExist := "identifier=" + fhir.GhanaCardSystem + "|" + businessKey
		req.Header.Set("If-None-Exist", ifNoneExist)
		c.logger.Debug().Str("if_none_exist", mask.URL(ifNoneExist)).Msg("conditional create")
	}

	c.logger.Info().Str("method", http.MethodPost).Str("url", mask.URL(u)).Msg("submitting resource to NHIE")
	return c.do(ctx, req)
}

// Fetch GETs a resource by its exchange id.
func (c *Client) Fetch(ctx context.Context, resourceType, externalID string) (*Outcome, error) {
	u := c.baseURL + "/" + resourceType + "/" + url.PathEscape(externalID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", fhirMediaType)

	c.logger.Info().Str("method", http.MethodGet).Str("url", mask.URL(u)).Msg("fetching resource from NHIE")
	return c.do(ctx, req)
}

// Search queries a resource type by an identifier token (system|value).
func (c *Client) Search(ctx context.Context, resourceType, system, value string) (*Outcome, error) {
	u := c.baseURL + "/" + resourceType + "?identifier=" + url.QueryEscape(system+"|"+value)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", fhirMediaType)

	c.logger.Info().Str("method", http.MethodGet).Str("url", mask.URL(u)).Msg("searching NHIE")
	return c.do(ctx, req)
}

// CheckEligibility queries NHIS coverage for the given membership number.
func (c *Client) CheckEligibility(ctx context.Context, nhisNumber string) (*Outcome, error) {
	u := c.baseURL + "/Coverage?beneficiary.identifier=" + url.QueryEscape(fhir.NHISSystem+"|"+nhisNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", fhirMediaType)

	c.logger.Info().Str("method", http.MethodGet).Str("url", mask.URL(u)).Msg("checking NHIS coverage")
	return c.do(ctx, req)
}

// do attaches credentials, executes the request, and classifies the
// response. Transport failures come back as TransportError; every HTTP
// status, success or not, is returned as an Outcome.
func (c *Client) do(ctx context.Context, req *http.Request) (*Outcome, error) {
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}

	success, retryable, message := Classify(resp.StatusCode)
	out := &Outcome{
		StatusCode:   resp.StatusCode,
		Body:         string(body),
		Success:      success,
		Retryable:    retryable,
		ErrorMessage: message,
	}

	if resp.StatusCode == http.StatusCreated {
		out.ResourceID = ResourceIDFromLocation(resp.Header.Get("Location"))
	}

	if !success {
		if diag := out.Diagnostics(); diag != "" {
			out.ErrorMessage = message + ": " + diag
		}
	}

	evt := c.logger.Info()
	if !success {
		evt = c.logger.Warn()
	}
	evt.
		Str("method", req.Method).
		Str("url", mask.URL(req.URL.String())).
		Int("status", resp.StatusCode).
		Bool("retryable", retryable).
		Msg("NHIE response")

	return out, nil
}
