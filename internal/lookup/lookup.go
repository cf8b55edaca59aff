// Package lookup resolves clinical terms to codes through the NLM RxNorm
// and Clinical Tables ICD-10-CM services.
//
// A lookup has three outcomes: a code, NotFound (found == false, err == nil)
// or an error. The decorators in this package turn errors into NotFound so
// that a missing validated code never aborts extraction
package lookup

import (
	"context"

	"github.com/ppiankov/chartcode/internal/model"
)

// Code systems
const (
	SystemRxNorm = "rxnorm"
	SystemICD10  = "icd10"
)

// Service looks up a code for a term in one code system
type Service interface {
	// System names the code system (SystemRxNorm, SystemICD10)
	System() string

	// Lookup returns the code for term. found is false with a nil error
	// when the service answered but had no match.
	Lookup(ctx context.Context, term string) (code string, found bool, err error)
}

// Set holds one service per fact kind
type Set struct {
	Condition  Service
	Medication Service
}

// For returns the service for kind, or nil when none is configured
func (s Set) For(kind model.FactKind) Service {
	switch kind {
	case model.FactKindCondition:
		return s.Condition
	case model.FactKindMedication:
		return s.Medication
	default:
		return nil
	}
}

// SystemFor names the code system used for kind
func SystemFor(kind model.FactKind) string {
	if kind == model.FactKindMedication {
		return SystemRxNorm
	}
	return SystemICD10
}
