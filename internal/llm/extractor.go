package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/chartcode/internal/model"
)

const extractionSystemPrompt = `You are a clinical documentation specialist. Extract structured data from the medical note.

Extract:
1. Patient demographics (name, date of birth, gender, patient ID)
2. Vital signs (BP, HR, temperature, respiratory rate, O2 saturation)
3. Conditions/diagnoses (name, status, suggested_icd10_code)
4. Medications (name, dosage, frequency, route, suggested_rxnorm_code)

For conditions, assign the most appropriate ICD-10-CM code based on clinical reasoning:
- Routine encounters use Z codes (e.g., Z00.00 for a general adult exam)
- Family history uses Z8x codes (e.g., Z83.42 for family history of hyperlipidemia)
- Screening findings use the matching code (e.g., E66.3 for overweight)
Give a one-sentence code_reasoning for every code you assign.

Return ONLY valid JSON matching this schema:
{
  "patient": {"name": "...", "date_of_birth": "YYYY-MM-DD", "gender": "...", "patient_id": "..."},
  "vital_signs": {"blood_pressure": "...", "heart_rate": "...", "temperature": "...", "respiratory_rate": "...", "oxygen_saturation": "..."},
  "conditions": [{"name": "...", "status": "...", "suggested_icd10_code": "...", "code_reasoning": "..."}],
  "medications": [{"name": "...", "dosage": "...", "frequency": "...", "route": "...", "suggested_rxnorm_code": "...", "code_reasoning": "..."}]
}

If information is not present in the note, omit the field or use null or an empty array.`

// Extractor turns a note into a RawDraft with a single completion call
type Extractor struct {
	provider Provider
}

// NewExtractor creates an extractor over the given provider
func NewExtractor(provider Provider) *Extractor {
	return &Extractor{provider: provider}
}

// Extract asks the model for a structured draft of the note. It is called
// once per document and never retried
func (e *Extractor) Extract(ctx context.Context, text string) (*model.RawDraft, error) {
	if e.provider == nil {
		return nil, eris.New("llm provider not configured")
	}

	resp, err := e.provider.Complete(ctx, CompletionRequest{
		System: extractionSystemPrompt,
		Prompt: "Medical Note:\n\n" + text,
		JSON:   true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "draft completion")
	}

	return ParseDraft(resp.Text)
}

// draftPayload mirrors the JSON schema in the extraction prompt
type draftPayload struct {
	Patient     *model.Patient `json:"patient"`
	VitalSigns  draftVitals    `json:"vital_signs"`
	Conditions  []draftEntry   `json:"conditions"`
	Medications []draftEntry   `json:"medications"`
}

type draftVitals struct {
	BloodPressure    looseString `json:"blood_pressure"`
	HeartRate        looseString `json:"heart_rate"`
	Temperature      looseString `json:"temperature"`
	RespiratoryRate  looseString `json:"respiratory_rate"`
	OxygenSaturation looseString `json:"oxygen_saturation"`
}

type draftEntry struct {
	Name      string      `json:"name"`
	Status    string      `json:"status"`
	Dosage    looseString `json:"dosage"`
	Frequency string      `json:"frequency"`
	Route     string      `json:"route"`
	ICD10     looseString `json:"suggested_icd10_code"`
	RxNorm    looseString `json:"suggested_rxnorm_code"`
	RxNormAlt looseString `json:"rxnorm_code"`
	Reasoning string      `json:"code_reasoning"`
}

// looseString accepts JSON strings, numbers and null
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*s = looseString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*s = looseString(n.String())
	return nil
}

func (s looseString) ptr() *string {
	return model.StringPtr(strings.TrimSpace(string(s)))
}

// ParseDraft decodes a completion into a RawDraft. Conditions come first,
// then medications, each in the order the model listed them. Entries
// without a name are dropped
func ParseDraft(text string) (*model.RawDraft, error) {
	body := StripFences(text)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var payload draftPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, eris.Wrap(err, "model returned invalid JSON")
	}

	draft := &model.RawDraft{
		Patient: payload.Patient,
		Vitals: model.VitalSigns{
			BloodPressure:    string(payload.VitalSigns.BloodPressure),
			HeartRate:        string(payload.VitalSigns.HeartRate),
			Temperature:      string(payload.VitalSigns.Temperature),
			RespiratoryRate:  string(payload.VitalSigns.RespiratoryRate),
			OxygenSaturation: string(payload.VitalSigns.OxygenSaturation),
		},
	}
	if draft.Patient != nil && *draft.Patient == (model.Patient{}) {
		draft.Patient = nil
	}

	for _, c := range payload.Conditions {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		draft.Facts = append(draft.Facts, model.DraftFact{
			Name:          name,
			Kind:          model.FactKindCondition,
			SuggestedCode: c.ICD10.ptr(),
			Reasoning:     strings.TrimSpace(c.Reasoning),
			Status:        strings.TrimSpace(c.Status),
		})
	}
	for _, m := range payload.Medications {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			continue
		}
		code := m.RxNorm.ptr()
		if code == nil {
			code = m.RxNormAlt.ptr()
		}
		draft.Facts = append(draft.Facts, model.DraftFact{
			Name:          name,
			Kind:          model.FactKindMedication,
			SuggestedCode: code,
			Reasoning:     strings.TrimSpace(m.Reasoning),
			Dosage:        strings.TrimSpace(string(m.Dosage)),
			Frequency:     strings.TrimSpace(m.Frequency),
			Route:         strings.TrimSpace(m.Route),
		})
	}

	return draft, nil
}
