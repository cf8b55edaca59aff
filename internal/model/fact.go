package model

import "time"

// FactKind distinguishes the two codable fact types
type FactKind string

const (
	FactKindCondition  FactKind = "condition"  // Coded against ICD-10-CM
	FactKindMedication FactKind = "medication" // Coded against RxNorm
)

// Confidence is the trust tier assigned during reconciliation
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ClinicalFact is one reconciled condition or medication
type ClinicalFact struct {
	Name          string     `json:"name"`
	Kind          FactKind   `json:"kind"`
	SuggestedCode *string    `json:"suggested_code,omitempty"` // From the draft generator
	ValidatedCode *string    `json:"validated_code,omitempty"` // From the external lookup
	Confidence    Confidence `json:"confidence"`
	Reasoning     string     `json:"reasoning,omitempty"`

	Status    string `json:"status,omitempty"` // Conditions: active, resolved, ...
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Route     string `json:"route,omitempty"`
}

// Patient holds demographics found in a note
type Patient struct {
	ID          string `json:"patient_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// VitalSigns holds the vitals recorded in a note, as written
type VitalSigns struct {
	BloodPressure    string `json:"blood_pressure,omitempty"`
	HeartRate        string `json:"heart_rate,omitempty"`
	Temperature      string `json:"temperature,omitempty"`
	RespiratoryRate  string `json:"respiratory_rate,omitempty"`
	OxygenSaturation string `json:"oxygen_saturation,omitempty"`
}

// IsEmpty reports whether no vital was recorded
func (v VitalSigns) IsEmpty() bool {
	return v == VitalSigns{}
}

// ExtractionResult is the reconciled bundle for one document
type ExtractionResult struct {
	DocumentID    int            `json:"document_id"`
	DocumentTitle string         `json:"document_title"`
	Facts         []ClinicalFact `json:"facts"`
	Patient       *Patient       `json:"patient,omitempty"`
	Vitals        VitalSigns     `json:"vitals"`
	ExtractedAt   time.Time      `json:"extracted_at"`
}

// Conditions returns the condition facts in original order
func (r ExtractionResult) Conditions() []ClinicalFact {
	return r.factsOfKind(FactKindCondition)
}

// Medications returns the medication facts in original order
func (r ExtractionResult) Medications() []ClinicalFact {
	return r.factsOfKind(FactKindMedication)
}

func (r ExtractionResult) factsOfKind(kind FactKind) []ClinicalFact {
	var out []ClinicalFact
	for _, f := range r.Facts {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// ExtractionFailure marks a document whose extraction failed
type ExtractionFailure struct {
	DocumentID    int    `json:"document_id"`
	DocumentTitle string `json:"document_title,omitempty"`
	Reason        string `json:"reason"`
}

// ExtractionBatch is the partial-success envelope for a set of documents.
// Results and Failures each keep the order of the requested document set
type ExtractionBatch struct {
	Results  []ExtractionResult  `json:"results"`
	Failures []ExtractionFailure `json:"failures,omitempty"`
}

// HasFailures reports whether any document failed
func (b ExtractionBatch) HasFailures() bool {
	return len(b.Failures) > 0
}

// StringPtr returns a pointer to s, or nil when s is blank
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or ""
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
