package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/ghanaemr/nhie-sync/internal/platform/fhir"
)

// Encounter maps to the encounters table. An outpatient visit recorded at
// triage or consultation; DiagnosisCode carries the ICD-10 code selected
// by the clinician, when one was recorded.
type Encounter struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterType    string     `db:"encounter_type" json:"encounter_type"`
	Status           string     `db:"status" json:"status"`
	StartedAt        time.Time  `db:"started_at" json:"started_at"`
	EndedAt          *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	DiagnosisCode    *string    `db:"diagnosis_code" json:"diagnosis_code,omitempty"`
	DiagnosisDisplay *string    `db:"diagnosis_display" json:"diagnosis_display,omitempty"`
	NHIEResourceID   *string    `db:"nhie_resource_id" json:"nhie_resource_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`

	// PatientGhanaCard is joined from the patients table so the subject
	// reference can carry the national identifier.
	PatientGhanaCard string `db:"ghana_card" json:"-"`
}

// ToFHIR converts the record into a canonical FHIR R4 Encounter document.
// Pure and deterministic over record state. Defaults are fixed: status
// finished, class AMB, type OPD. The subject reference always carries the
// logical Patient reference and, when known, the Ghana Card identifier.
func (e *Encounter) ToFHIR() (map[string]interface{}, error) {
	if e.PatientID == uuid.Nil {
		return nil, &fhir.MappingError{ResourceType: "Encounter", LocalID: e.ID.String(), Reason: "missing patient link"}
	}

	subject := fhir.Reference{
		Reference: fhir.FormatReference("Patient", e.PatientID.String()),
	}
	if e.PatientGhanaCard != "" {
		subject.Identifier = &fhir.Identifier{System: fhir.GhanaCardSystem, Value: e.PatientGhanaCard}
	}

	result := map[string]interface{}{
		"resourceType": "Encounter",
		"identifier": []fhir.Identifier{
			{System: fhir.EncounterSystem, Value: e.ID.String()},
		},
		"status": mapStatus(e.Status),
		"class": fhir.Coding{
			System:  fhir.ActCodeSystem,
			Code:    "AMB",
			Display: "ambulatory",
		},
		"type": []fhir.CodeableConcept{
			{Coding: []fhir.Coding{{
				System:  fhir.EncounterTypeSystem,
				Code:    encounterTypeCode(e.EncounterType),
				Display: encounterTypeDisplay(e.EncounterType),
			}}},
		},
		"subject": subject,
	}

	start := e.StartedAt.UTC()
	period := fhir.Period{Start: &start}
	if e.EndedAt != nil {
		end := e.EndedAt.UTC()
		period.End = &end
	}
	result["period"] = period

	if e.DiagnosisCode != nil && *e.DiagnosisCode != "" {
		coding := fhir.Coding{System: fhir.ICD10System, Code: *e.DiagnosisCode}
		if e.DiagnosisDisplay != nil {
			coding.Display = *e.DiagnosisDisplay
		}
		result["reasonCode"] = []fhir.CodeableConcept{{Coding: []fhir.Coding{coding}}}
	}

	return result, nil
}

// mapStatus normalizes the local status to the FHIR encounter-status value
// set. Local records have no live status tracking, so anything unrecognized
// defaults to finished.
func mapStatus(status string) string {
	switch status {
	case "planned", "in-progress", "finished", "cancelled":
		return status
	default:
		return "finished"
	}
}

func encounterTypeCode(t string) string {
	if t == "" {
		return "OPD"
	}
	return t
}

func encounterTypeDisplay(t string) string {
	switch t {
	case "", "OPD":
		return "Outpatient Department"
	case "TRIAGE":
		return "Triage"
	case "CONSULT":
		return "Consultation"
	default:
		return t
	}
}
