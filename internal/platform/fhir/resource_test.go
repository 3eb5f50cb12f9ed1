package fhir

import (
	"encoding/json"
	"testing"
)

func TestFormatReference(t *testing.T) {
	if got := FormatReference("Patient", "abc-123"); got != "Patient/abc-123" {
		t.Errorf("FormatReference = %q, want Patient/abc-123", got)
	}
}

func TestResourceDecodesExchangeBody(t *testing.T) {
	body := `{"resourceType":"Patient","id":"nhie-42","meta":{"versionId":"1"},"active":true}`

	var r Resource
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ResourceType != "Patient" || r.ID != "nhie-42" {
		t.Errorf("decoded %+v, want Patient/nhie-42", r)
	}
	if r.Meta == nil || r.Meta.VersionID != "1" {
		t.Errorf("meta = %+v, want versionId 1", r.Meta)
	}
}

func TestOperationOutcomeDecodesIssues(t *testing.T) {
	body := `{
		"resourceType": "OperationOutcome",
		"issue": [{
			"severity": "error",
			"code": "business-rule",
			"diagnostics": "identifier system not recognised"
		}]
	}`

	var oo OperationOutcome
	if err := json.Unmarshal([]byte(body), &oo); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(oo.Issue) != 1 {
		t.Fatalf("issues = %d, want 1", len(oo.Issue))
	}
	if oo.Issue[0].Diagnostics != "identifier system not recognised" {
		t.Errorf("diagnostics = %q", oo.Issue[0].Diagnostics)
	}
}

func TestReferenceOmitsEmptyIdentifier(t *testing.T) {
	data, err := json.Marshal(Reference{Reference: "Patient/1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"reference":"Patient/1"}` {
		t.Errorf("serialized reference = %s", data)
	}

	withID := Reference{
		Reference:  "Patient/1",
		Identifier: &Identifier{System: GhanaCardSystem, Value: "GHA-123456784-8"},
	}
	data, err = json.Marshal(withID)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var parsed Reference
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Identifier == nil || parsed.Identifier.Value != "GHA-123456784-8" {
		t.Errorf("identifier = %+v", parsed.Identifier)
	}
}
