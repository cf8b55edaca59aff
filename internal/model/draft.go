package model

// DraftFact is an unreconciled fact as produced by the draft generator
type DraftFact struct {
	Name          string
	Kind          FactKind
	SuggestedCode *string
	Reasoning     string

	Status    string
	Dosage    string
	Frequency string
	Route     string
}

// RawDraft is the best-effort structured draft for one note
type RawDraft struct {
	Patient *Patient
	Vitals  VitalSigns
	Facts   []DraftFact // Conditions first, then medications, in generator order
}
