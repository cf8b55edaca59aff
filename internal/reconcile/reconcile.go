// Package reconcile merges a model-suggested code with an externally
// validated code and assigns a confidence tier
package reconcile

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/ppiankov/chartcode/internal/model"
)

// Reconcile produces the final fact for a draft fact and its lookup result.
// It is total over the four (suggested, validated) presence states:
//
//	both, equal     -> high
//	both, different -> medium, both codes recorded in Reasoning
//	suggested only  -> medium
//	validated only  -> high
//	neither         -> low, fact kept
func Reconcile(draft model.DraftFact, validated string, found bool) model.ClinicalFact {
	fact := model.ClinicalFact{
		Name:          draft.Name,
		Kind:          draft.Kind,
		SuggestedCode: cleanCode(draft.SuggestedCode),
		Status:        draft.Status,
		Dosage:        draft.Dosage,
		Frequency:     draft.Frequency,
		Route:         draft.Route,
	}
	if found {
		fact.ValidatedCode = model.StringPtr(strings.TrimSpace(validated))
	}

	suggested := fact.SuggestedCode
	confirmed := fact.ValidatedCode

	switch {
	case suggested != nil && confirmed != nil && CodesEqual(*suggested, *confirmed):
		fact.Confidence = model.ConfidenceHigh
		fact.Reasoning = joinReasoning(draft.Reasoning, "suggested code confirmed by lookup")

	case suggested != nil && confirmed != nil:
		fact.Confidence = model.ConfidenceMedium
		fact.Reasoning = joinReasoning(draft.Reasoning,
			fmt.Sprintf("codes disagree: suggested %s, validated %s; review required", *suggested, *confirmed))

	case suggested != nil:
		fact.Confidence = model.ConfidenceMedium
		fact.Reasoning = joinReasoning(draft.Reasoning, "model inference only, no validated code found")

	case confirmed != nil:
		fact.Confidence = model.ConfidenceHigh
		fact.Reasoning = joinReasoning(draft.Reasoning, "code from lookup, no suggested code")

	default:
		fact.Confidence = model.ConfidenceLow
		fact.Reasoning = joinReasoning(draft.Reasoning, "no code could be assigned")
	}

	return fact
}

// CodesEqual compares two codes ignoring case, surrounding space and
// trailing punctuation ("e66.3." equals "E66.3")
func CodesEqual(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Normalize folds case and strips whitespace and trailing punctuation
func Normalize(code string) string {
	// Casers are stateful, so one per call
	code = strings.TrimSpace(cases.Fold().String(code))
	return strings.TrimRightFunc(code, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// cleanCode treats blank and placeholder codes as absent
func cleanCode(code *string) *string {
	if code == nil {
		return nil
	}
	c := strings.TrimSpace(*code)
	switch strings.ToLower(c) {
	case "", "n/a", "na", "none", "null", "unknown":
		return nil
	}
	return &c
}

func joinReasoning(drafted, note string) string {
	drafted = strings.TrimSpace(drafted)
	if drafted == "" {
		return note
	}
	return strings.TrimRight(drafted, ".") + ". " + note
}
