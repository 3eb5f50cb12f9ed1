package fhir

import "encoding/json"

// Canonical serializes a resource document to its canonical byte form.
// encoding/json emits map keys in sorted order, so equal documents always
// produce identical bytes. Transaction-log idempotency depends on that:
// the submission payload hashed and replayed for a resource must be
// byte-for-byte stable across process restarts.
func Canonical(doc map[string]interface{}) ([]byte, error) {
	return json.Marshal(doc)
}
