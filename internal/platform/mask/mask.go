// Package mask redacts patient identifiers and demographic details from
// payloads before they are persisted to the transaction log or written to
// application logs. Masking never blocks the primary sync flow: any failure
// degrades to a fixed placeholder rather than letting unmasked data through.
package mask

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Placeholder is substituted whenever masking itself fails. It is always safe
// to persist.
const Placeholder = "[masking-failed]"

var (
	// Ghana Card: GHA-123456789-0 -> GHA-1234****-*
	ghanaCardRe = regexp.MustCompile(`(GHA-\d{4})\d{5}-\d`)
	// NHIS and similar 10-digit identifiers: 0123456789 -> 0123******
	nhisRe = regexp.MustCompile(`(\d{4})\d{6}`)

	ghanaCardExact = regexp.MustCompile(`^GHA-\d{9}-\d$`)
	nhisExact      = regexp.MustCompile(`^\d{10}$`)
)

// Fields whose string values are masked wherever they appear in a FHIR
// payload. Scoped to known identifier, name, and contact elements so that
// resource types, status codes, and system URIs survive intact.
var sensitiveFields = map[string]bool{
	"value":  true, // identifier.value, telecom.value
	"family": true,
	"given":  true,
	"text":   true, // name.text, address.text
	"line":   true,
	"city":   true,
}

// Body masks a JSON request or response body. The document is parsed and
// known identifier/name/contact fields are redacted; if the body is not
// valid JSON the Ghana Card and NHIS patterns are still substituted over the
// raw text. Body never panics and never returns unmasked input on failure.
func Body(body string) (masked string) {
	defer func() {
		if r := recover(); r != nil {
			masked = Placeholder
		}
	}()

	if body == "" {
		return body
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(body), &doc); err == nil {
		maskValue(doc, false)
		out, err := json.Marshal(doc)
		if err != nil {
			return Placeholder
		}
		return maskPatterns(string(out))
	}

	// Not JSON: regex substitution is still total over arbitrary text.
	return maskPatterns(body)
}

// Identifier masks a free-standing identifier for log and audit messages.
// Ghana Cards keep the GHA prefix and first four digits, NHIS numbers keep
// the first four digits, anything else longer than six characters keeps a
// four-character prefix.
func Identifier(id string) string {
	switch {
	case id == "":
		return "***"
	case ghanaCardExact.MatchString(id):
		return id[:8] + "****-*"
	case nhisExact.MatchString(id):
		return id[:4] + "******"
	case len(id) > 6:
		return id[:4] + "***"
	default:
		return "***"
	}
}

// URL masks identifiers embedded in request URLs (search parameters carry
// Ghana Card and NHIS values).
func URL(u string) string {
	return maskPatterns(u)
}

func maskPatterns(s string) string {
	s = ghanaCardRe.ReplaceAllString(s, "${1}****-*")
	s = nhisRe.ReplaceAllString(s, "${1}******")
	return s
}

// maskValue walks a decoded JSON document in place. sensitive marks that the
// current subtree hangs off one of the sensitive field names (arrays under
// "given" or "line" carry plain strings).
func maskValue(v interface{}, sensitive bool) {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			if s, ok := child.(string); ok && sensitiveFields[k] {
				node[k] = maskString(s)
				continue
			}
			maskValue(child, sensitiveFields[k])
		}
	case []interface{}:
		for i, child := range node {
			if s, ok := child.(string); ok && sensitive {
				node[i] = maskString(s)
				continue
			}
			maskValue(child, sensitive)
		}
	}
}

// maskString redacts a single sensitive value, keeping the first and last
// characters of words of three or more characters so that records remain
// recognizable in triage views.
func maskString(s string) string {
	if ghanaCardExact.MatchString(s) || nhisExact.MatchString(s) {
		return Identifier(s)
	}
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) >= 3 {
			words[i] = w[:1] + strings.Repeat("*", len(w)-2) + w[len(w)-1:]
		}
	}
	return strings.Join(words, " ")
}
