package nhie

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ghanaemr/nhie-sync/internal/platform/fhir"
)

// Outcome is the classified result of an exchange call. Non-2xx statuses are
// reported here rather than as transport errors so the orchestrator can
// pattern-match on the status (409 reconciliation, retryable vs terminal).
type Outcome struct {
	StatusCode   int
	Body         string
	Success      bool
	Retryable    bool
	ErrorMessage string
	// ResourceID is the exchange-assigned id taken from the Location header
	// on a 201. For other statuses callers fall back to ParseResourceID.
	ResourceID string
}

// Classify applies the fixed NHIE response taxonomy:
//
//	200 success (already existed)   201 success (created)
//	401 auth failure      retryable    403 forbidden        terminal
//	404 not found         terminal     409 duplicate        terminal (reconciled)
//	422 rule violation    terminal     429 rate limited     retryable
//	5xx server error      retryable    other                terminal
func Classify(statusCode int) (success, retryable bool, message string) {
	switch {
	case statusCode == 200 || statusCode == 201:
		return true, false, ""
	case statusCode == 401:
		return false, true, "authentication failed, token may be expired"
	case statusCode == 403:
		return false, false, "forbidden, check OAuth scopes and permissions"
	case statusCode == 404:
		return false, false, "resource not found in NHIE"
	case statusCode == 409:
		return false, false, "duplicate resource, business key already registered"
	case statusCode == 422:
		return false, false, "business rule violation, check FHIR resource validity"
	case statusCode == 429:
		return false, true, "rate limited by NHIE"
	case statusCode >= 500 && statusCode < 600:
		return false, true, "NHIE server error"
	default:
		return false, false, fmt.Sprintf("unexpected HTTP status %d", statusCode)
	}
}

// ResourceIDFromLocation extracts the resource id from a FHIR Location
// header ("http://nhie.../Patient/123" or ".../Patient/123/_history/1").
func ResourceIDFromLocation(location string) string {
	if location == "" {
		return ""
	}
	parts := strings.Split(strings.TrimSuffix(location, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "_history" && i >= 1 {
			// id precedes the _history segment
			return parts[i-1]
		}
	}
	return parts[len(parts)-1]
}

// ParseResourceID extracts the top-level "id" element from a FHIR JSON body.
// Used as the fallback when no Location header is present (200 responses,
// 409 OperationOutcome bodies that echo the existing resource).
func ParseResourceID(body string) string {
	if body == "" {
		return ""
	}
	var doc fhir.Resource
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return ""
	}
	return doc.ID
}

// Diagnostics extracts the first issue diagnostics when the body is an
// OperationOutcome, which is what the exchange sends on rejections. Empty
// when the body is absent or not an OperationOutcome.
func (o *Outcome) Diagnostics() string {
	if o.Body == "" {
		return ""
	}
	var oo fhir.OperationOutcome
	if err := json.Unmarshal([]byte(o.Body), &oo); err != nil {
		return ""
	}
	if oo.ResourceType != "OperationOutcome" {
		return ""
	}
	for _, issue := range oo.Issue {
		if issue.Diagnostics != "" {
			return issue.Diagnostics
		}
	}
	return ""
}

// ExtractResourceID resolves the external id with the defined fallback
// order: transport metadata (Location header) first, then the body.
func (o *Outcome) ExtractResourceID() string {
	if o.ResourceID != "" {
		return o.ResourceID
	}
	return ParseResourceID(o.Body)
}
