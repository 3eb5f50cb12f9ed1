package fhir

import "fmt"

// MappingError reports a local record that cannot be converted to a
// canonical document, typically because a required identifier or relation
// is missing. It is terminal: retrying the same record cannot succeed
// until the record itself is corrected.
type MappingError struct {
	ResourceType string
	LocalID      string
	Reason       string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("cannot map %s %s: %s", e.ResourceType, e.LocalID, e.Reason)
}

func (e *MappingError) Retryable() bool { return false }
