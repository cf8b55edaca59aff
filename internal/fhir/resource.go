package fhir

import "time"

// Code systems
const (
	SystemICD10CM           = "http://hl7.org/fhir/sid/icd-10-cm"
	SystemRxNorm            = "http://www.nlm.nih.gov/research/umls/rxnorm"
	SystemLOINC             = "http://loinc.org"
	SystemConditionClinical = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemConditionVerify   = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
	SystemObservationCat    = "http://terminology.hl7.org/CodeSystem/observation-category"
)

// Bundle represents a FHIR Bundle resource
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string      `json:"fullUrl,omitempty"`
	Resource interface{} `json:"resource"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type HumanName struct {
	Text string `json:"text,omitempty"`
}

type Patient struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Name         []HumanName  `json:"name,omitempty"`
	Gender       string       `json:"gender,omitempty"`
	BirthDate    string       `json:"birthDate,omitempty"`
}

type Condition struct {
	ResourceType       string           `json:"resourceType"`
	ID                 string           `json:"id"`
	ClinicalStatus     *CodeableConcept `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept `json:"verificationStatus,omitempty"`
	Code               CodeableConcept  `json:"code"`
	Subject            *Reference       `json:"subject,omitempty"`
	Note               []Annotation     `json:"note,omitempty"`
}

type Annotation struct {
	Text string `json:"text"`
}

type Dosage struct {
	Text string `json:"text,omitempty"`
}

type MedicationRequest struct {
	ResourceType              string          `json:"resourceType"`
	ID                        string          `json:"id"`
	Status                    string          `json:"status"`
	Intent                    string          `json:"intent"`
	MedicationCodeableConcept CodeableConcept `json:"medicationCodeableConcept"`
	Subject                   *Reference      `json:"subject,omitempty"`
	DosageInstruction         []Dosage        `json:"dosageInstruction,omitempty"`
}

type Observation struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Category     []CodeableConcept `json:"category,omitempty"`
	Code         CodeableConcept   `json:"code"`
	Subject      *Reference        `json:"subject,omitempty"`
	ValueString  string            `json:"valueString,omitempty"`
}
