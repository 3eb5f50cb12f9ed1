package fhir

// Canonical Ghana MOH identifier system URIs. These are fixed by the
// national exchange and must never change.
const (
	GhanaCardSystem    = "http://moh.gov.gh/fhir/identifier/ghana-card"
	NHISSystem         = "http://moh.gov.gh/fhir/identifier/nhis"
	FolderNumberSystem = "http://moh.gov.gh/fhir/identifier/folder-number"

	EncounterSystem     = "http://moh.gov.gh/fhir/identifier/encounter"
	EncounterTypeSystem = "http://moh.gov.gh/fhir/encounter-type"

	ActCodeSystem = "http://terminology.hl7.org/CodeSystem/v3-ActCode"
	ICD10System   = "http://hl7.org/fhir/sid/icd-10"
)
