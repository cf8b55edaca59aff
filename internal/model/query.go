package model

// Intent is what the user wants done with the resolved documents
type Intent int

const (
	IntentGeneralQuestion Intent = iota // Routed to the retrieval collaborator
	IntentExtractCodes
	IntentSummarize
	IntentToFHIR
	IntentVitals
)

func (i Intent) String() string {
	switch i {
	case IntentExtractCodes:
		return "extract_codes"
	case IntentSummarize:
		return "summarize"
	case IntentToFHIR:
		return "to_fhir"
	case IntentVitals:
		return "vitals"
	default:
		return "general_question"
	}
}

// NeedsDocuments reports whether the intent operates on a document set
func (i Intent) NeedsDocuments() bool {
	return i != IntentGeneralQuestion
}

// Format selects the rendered representation
type Format int

const (
	FormatUnspecified Format = iota // Use session context
	FormatTable
	FormatCSV
	FormatList
)

func (f Format) String() string {
	switch f {
	case FormatTable:
		return "table"
	case FormatCSV:
		return "csv"
	case FormatList:
		return "list"
	default:
		return "unspecified"
	}
}

// ParseFormat maps a format name to a Format; unknown names are unspecified
func ParseFormat(s string) Format {
	switch s {
	case "table":
		return FormatTable
	case "csv":
		return FormatCSV
	case "list", "detailed":
		return FormatList
	default:
		return FormatUnspecified
	}
}

// ParsedQuery is the interpreted form of one utterance
type ParsedQuery struct {
	DocumentIDs []int // Ordered, insertion order preserved
	Intent      Intent
	Format      Format
}
