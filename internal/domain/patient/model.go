package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/ghanaemr/nhie-sync/internal/platform/fhir"
	"github.com/ghanaemr/nhie-sync/internal/platform/validation"
)

// Patient maps to the patients table. Demographics are captured at
// registration; NHIEResourceID is the national-exchange identity link,
// written back after a successful submission.
type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	GhanaCard      string     `db:"ghana_card" json:"ghana_card"`
	NHISNumber     *string    `db:"nhis_number" json:"nhis_number,omitempty"`
	FolderNumber   *string    `db:"folder_number" json:"folder_number,omitempty"`
	FamilyName     string     `db:"family_name" json:"family_name"`
	GivenName      string     `db:"given_name" json:"given_name"`
	MiddleName     *string    `db:"middle_name" json:"middle_name,omitempty"`
	Gender         string     `db:"gender" json:"gender"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	AddressLine1   *string    `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2   *string    `db:"address_line2" json:"address_line2,omitempty"`
	City           *string    `db:"city" json:"city,omitempty"`
	District       *string    `db:"district" json:"district,omitempty"`
	Region         *string    `db:"region" json:"region,omitempty"`
	Country        *string    `db:"country" json:"country,omitempty"`
	NHIEResourceID *string    `db:"nhie_resource_id" json:"nhie_resource_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ToFHIR converts the record into a canonical FHIR R4 Patient document.
// The mapping is pure: identical record state always produces the same map,
// and serializing it with fhir.Canonical yields byte-identical output.
// Absent optional fields are omitted; fields with canonical defaults
// (gender, country) are always emitted so the document is stable under
// idempotent comparison by the exchange. The Ghana Card is checked
// against its national format and emitted normalized, so formatting
// variants in the record produce the same identifier token.
func (p *Patient) ToFHIR() (map[string]interface{}, error) {
	if p.GhanaCard == "" {
		return nil, &fhir.MappingError{ResourceType: "Patient", LocalID: p.ID.String(), Reason: "missing Ghana Card identifier"}
	}
	card := validation.NormalizeGhanaCard(p.GhanaCard)
	if !validation.ValidGhanaCard(card) {
		return nil, &fhir.MappingError{ResourceType: "Patient", LocalID: p.ID.String(), Reason: "invalid Ghana Card number"}
	}

	identifiers := []fhir.Identifier{
		{System: fhir.GhanaCardSystem, Value: card},
	}
	if p.NHISNumber != nil && *p.NHISNumber != "" {
		identifiers = append(identifiers, fhir.Identifier{System: fhir.NHISSystem, Value: *p.NHISNumber})
	}
	if p.FolderNumber != nil && *p.FolderNumber != "" {
		identifiers = append(identifiers, fhir.Identifier{System: fhir.FolderNumberSystem, Value: *p.FolderNumber})
	}

	name := fhir.HumanName{
		Use:    "official",
		Family: p.FamilyName,
	}
	if p.GivenName != "" {
		name.Given = append(name.Given, p.GivenName)
	}
	if p.MiddleName != nil && *p.MiddleName != "" {
		name.Given = append(name.Given, *p.MiddleName)
	}

	result := map[string]interface{}{
		"resourceType": "Patient",
		"identifier":   identifiers,
		"name":         []fhir.HumanName{name},
		"gender":       mapGender(p.Gender),
	}

	if p.BirthDate != nil {
		result["birthDate"] = p.BirthDate.Format("2006-01-02")
	}

	if p.Phone != nil && *p.Phone != "" {
		result["telecom"] = []fhir.ContactPoint{
			{System: "phone", Value: *p.Phone, Use: "mobile"},
		}
	}

	if addr := p.fhirAddress(); addr != nil {
		result["address"] = []fhir.Address{*addr}
	}

	return result, nil
}

// mapGender normalizes the single-letter registration code to the FHIR
// administrative-gender value set. Anything unrecognized maps to unknown,
// never omitted.
func mapGender(code string) string {
	switch code {
	case "M", "m":
		return "male"
	case "F", "f":
		return "female"
	case "O", "o":
		return "other"
	default:
		return "unknown"
	}
}

func (p *Patient) fhirAddress() *fhir.Address {
	if p.AddressLine1 == nil && p.AddressLine2 == nil && p.City == nil &&
		p.District == nil && p.Region == nil && p.Country == nil {
		return nil
	}

	addr := fhir.Address{Use: "home", Country: "GH"}
	if p.AddressLine1 != nil && *p.AddressLine1 != "" {
		addr.Line = append(addr.Line, *p.AddressLine1)
	}
	if p.AddressLine2 != nil && *p.AddressLine2 != "" {
		addr.Line = append(addr.Line, *p.AddressLine2)
	}
	if p.City != nil {
		addr.City = *p.City
	}
	if p.District != nil {
		addr.District = *p.District
	}
	if p.Region != nil {
		addr.State = *p.Region
	}
	if p.Country != nil && *p.Country != "" {
		addr.Country = *p.Country
	}
	return &addr
}
