// Package fhir maps reconciled extraction results onto FHIR R4 resources.
// The mapping is pure: identifiers are derived from the document and the
// position of each fact, so the same result always yields the same bundle
package fhir

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/ppiankov/chartcode/internal/model"
)

// vitalCode pairs a LOINC code with the vital it encodes
type vitalCode struct {
	code    string
	display string
	value   func(model.VitalSigns) string
}

var vitalCodes = []vitalCode{
	{"85354-9", "Blood pressure panel", func(v model.VitalSigns) string { return v.BloodPressure }},
	{"8867-4", "Heart rate", func(v model.VitalSigns) string { return v.HeartRate }},
	{"8310-5", "Body temperature", func(v model.VitalSigns) string { return v.Temperature }},
	{"9279-1", "Respiratory rate", func(v model.VitalSigns) string { return v.RespiratoryRate }},
	{"2708-6", "Oxygen saturation in Arterial blood", func(v model.VitalSigns) string { return v.OxygenSaturation }},
}

// Build creates a collection bundle for one document
func Build(r model.ExtractionResult) *Bundle {
	b := &Bundle{
		ResourceType: "Bundle",
		ID:           fmt.Sprintf("document-%d", r.DocumentID),
		Type:         "collection",
	}
	if !r.ExtractedAt.IsZero() {
		ts := r.ExtractedAt.UTC()
		b.Timestamp = &ts
	}

	var subject *Reference
	if p := r.Patient; p != nil {
		patient := buildPatient(r.DocumentID, p)
		subject = &Reference{Reference: "Patient/" + patient.ID, Display: p.Name}
		b.add(r.DocumentID, patient.ResourceType, patient.ID, patient)
	}

	for i, f := range r.Conditions() {
		c := buildCondition(r.DocumentID, i, f, subject)
		b.add(r.DocumentID, c.ResourceType, c.ID, c)
	}
	for i, f := range r.Medications() {
		m := buildMedication(r.DocumentID, i, f, subject)
		b.add(r.DocumentID, m.ResourceType, m.ID, m)
	}
	for _, vc := range vitalCodes {
		value := strings.TrimSpace(vc.value(r.Vitals))
		if value == "" {
			continue
		}
		o := &Observation{
			ResourceType: "Observation",
			ID:           fmt.Sprintf("obs-%d-%s", r.DocumentID, vc.code),
			Status:       "final",
			Category: []CodeableConcept{{
				Coding: []Coding{{System: SystemObservationCat, Code: "vital-signs", Display: "Vital Signs"}},
			}},
			Code: CodeableConcept{
				Coding: []Coding{{System: SystemLOINC, Code: vc.code, Display: vc.display}},
				Text:   vc.display,
			},
			Subject:     subject,
			ValueString: value,
		}
		b.add(r.DocumentID, o.ResourceType, o.ID, o)
	}

	return b
}

func (b *Bundle) add(docID int, resourceType, id string, resource interface{}) {
	name := fmt.Sprintf("chartcode/document/%d/%s/%s", docID, resourceType, id)
	b.Entry = append(b.Entry, BundleEntry{
		FullURL:  "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String(),
		Resource: resource,
	})
}

func buildPatient(docID int, p *model.Patient) *Patient {
	id := p.ID
	if id == "" {
		id = fmt.Sprintf("patient-%d", docID)
	}
	patient := &Patient{
		ResourceType: "Patient",
		ID:           id,
		Gender:       normalizeGender(p.Gender),
		BirthDate:    p.DateOfBirth,
	}
	if p.ID != "" {
		patient.Identifier = []Identifier{{Value: p.ID}}
	}
	if p.Name != "" {
		patient.Name = []HumanName{{Text: p.Name}}
	}
	return patient
}

// normalizeGender maps free text onto the FHIR administrative-gender codes
func normalizeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "":
		return ""
	case "m", "male", "man":
		return "male"
	case "f", "female", "woman":
		return "female"
	case "other":
		return "other"
	default:
		return "unknown"
	}
}

// bestCode prefers the validated code over the suggested one
func bestCode(f model.ClinicalFact) string {
	if f.ValidatedCode != nil {
		return *f.ValidatedCode
	}
	return model.Deref(f.SuggestedCode)
}

func buildCondition(docID, idx int, f model.ClinicalFact, subject *Reference) *Condition {
	clinical := "active"
	if s := strings.ToLower(f.Status); strings.Contains(s, "resolved") || strings.Contains(s, "inactive") {
		clinical = "resolved"
	}
	verification := "provisional"
	if f.ValidatedCode != nil {
		verification = "confirmed"
	}

	c := &Condition{
		ResourceType: "Condition",
		ID:           fmt.Sprintf("condition-%d-%d", docID, idx+1),
		ClinicalStatus: &CodeableConcept{
			Coding: []Coding{{System: SystemConditionClinical, Code: clinical}},
		},
		VerificationStatus: &CodeableConcept{
			Coding: []Coding{{System: SystemConditionVerify, Code: verification}},
		},
		Code:    CodeableConcept{Text: f.Name},
		Subject: subject,
	}
	if code := bestCode(f); code != "" {
		c.Code.Coding = []Coding{{System: SystemICD10CM, Code: code, Display: f.Name}}
	}
	if f.Reasoning != "" {
		c.Note = []Annotation{{Text: f.Reasoning}}
	}
	return c
}

func buildMedication(docID, idx int, f model.ClinicalFact, subject *Reference) *MedicationRequest {
	m := &MedicationRequest{
		ResourceType:              "MedicationRequest",
		ID:                        fmt.Sprintf("medication-%d-%d", docID, idx+1),
		Status:                    "active",
		Intent:                    "order",
		MedicationCodeableConcept: CodeableConcept{Text: f.Name},
		Subject:                   subject,
	}
	if code := bestCode(f); code != "" {
		m.MedicationCodeableConcept.Coding = []Coding{{System: SystemRxNorm, Code: code, Display: f.Name}}
	}

	var parts []string
	for _, p := range []string{f.Dosage, f.Frequency, f.Route} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		m.DosageInstruction = []Dosage{{Text: strings.Join(parts, " ")}}
	}
	return m
}

// Marshal renders one bundle per result as indented JSON. A single result
// yields a bare bundle; several yield a JSON array
func Marshal(results []model.ExtractionResult) (string, error) {
	var v interface{}
	if len(results) == 1 {
		v = Build(results[0])
	} else {
		bundles := make([]*Bundle, len(results))
		for i, r := range results {
			bundles[i] = Build(r)
		}
		v = bundles
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "marshal fhir bundle")
	}
	return string(out), nil
}
