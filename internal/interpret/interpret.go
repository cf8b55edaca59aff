// Package interpret turns a free-text utterance into a document set, an
// intent and an output format
package interpret

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ppiankov/chartcode/internal/model"
)

// Context is the session state the interpreter may fall back on. The
// interpreter never modifies it
type Context struct {
	LastDocuments []int
	// LastIntent is the last document intent. Follow-ups that only change
	// the format or point back at the set repeat it.
	LastIntent model.Intent
	LastFormat model.Format
	// AllDocuments lists every stored document ID. May be nil.
	AllDocuments func() []int
}

// AmbiguousQueryError is returned when the intent needs documents and
// none could be resolved from the utterance or the session
type AmbiguousQueryError struct {
	Intent model.Intent
	Reason string
}

func (e *AmbiguousQueryError) Error() string {
	return fmt.Sprintf("ambiguous %s query: %s", e.Intent, e.Reason)
}

var (
	idRe = regexp.MustCompile(`(?i)(?:\b(?:documents?|docs?|patients?|cases?|notes?)\s*#?\s*|#)(\d+(?:\s*(?:,\s*(?:and\s+)?|and\s+|&\s*)\d+)*)`)

	numberRe = regexp.MustCompile(`\d+`)

	allDocsRe = regexp.MustCompile(`(?i)\b(?:all|every)\s+(?:of\s+)?(?:the\s+|my\s+)?(?:documents?|docs?|patients?|notes?|cases?)\b|\beverything\b`)

	// Explicit continuation markers always refer back to the last set.
	continuationRe = regexp.MustCompile(`(?i)\b(?:export|same|again|previous)\b|\bthis\s+(?:document|patient)\b`)

	// Pronouns only count as continuation when there is a set to refer to.
	pronounRe = regexp.MustCompile(`(?i)\b(?:that|those|these|them|it)\b`)

	formatRe = regexp.MustCompile(`(?i)\b(table|csv|list|detailed)\b`)

	// Words allowed around a format keyword in a bare format request.
	fillerWords = map[string]bool{
		"as": true, "in": true, "to": true, "a": true, "an": true, "the": true,
		"format": true, "please": true, "show": true, "me": true, "give": true,
		"now": true, "instead": true, "output": true, "convert": true, "switch": true,
		"can": true, "you": true, "make": true, "view": true, "display": true, "into": true,
	}
)

// intentRule maps a predicate to an intent. Rules are evaluated in order
type intentRule struct {
	intent model.Intent
	match  func(text string, referenced bool) bool
}

var (
	fhirRe      = regexp.MustCompile(`(?i)\bfhir\b`)
	vitalsRe    = regexp.MustCompile(`(?i)\bvitals?\b|\bvital\s+signs\b|\bblood\s+pressure\b|\bheart\s+rate\b|\bbp\b|\btemperature\b|\brespiratory\s+rate\b|\boxygen\s+saturation\b|\bspo2\b`)
	summarizeRe = regexp.MustCompile(`(?i)\bsummar(?:y|ies|ize|ise|izing|ising)\b|\boverview\b`)
	codesRe     = regexp.MustCompile(`(?i)\bicd[\s-]?10\b|\brxnorm\b|\bcodes?\b|\bcoding\b|\bdiagnos[ie]s\b|\bbilling\b|\bextract\b`)
)

var intentRules = []intentRule{
	{model.IntentToFHIR, func(t string, _ bool) bool { return fhirRe.MatchString(t) }},
	{model.IntentVitals, func(t string, _ bool) bool { return vitalsRe.MatchString(t) }},
	{model.IntentSummarize, func(t string, _ bool) bool { return summarizeRe.MatchString(t) }},
	{model.IntentExtractCodes, func(t string, referenced bool) bool { return referenced || codesRe.MatchString(t) }},
}

// Interpret parses an utterance. It fails only when the intent needs a
// document set and none can be resolved
func Interpret(utterance string, ctx Context) (model.ParsedQuery, error) {
	text := strings.TrimSpace(utterance)

	ids := ExtractIDs(text)
	all := allDocsRe.MatchString(text)
	explicit := explicitFormat(text)
	continuation := continuationRe.MatchString(text) ||
		isBareFormatRequest(text, explicit) ||
		(len(ctx.LastDocuments) > 0 && pronounRe.MatchString(text))

	intent := detectIntent(text, len(ids) > 0 || all || continuation)
	if continuation && repeatable(ctx.LastIntent) && detectIntent(text, false) == model.IntentGeneralQuestion {
		intent = ctx.LastIntent
	}
	q := model.ParsedQuery{Intent: intent}

	carried := false
	switch {
	case len(ids) > 0:
		q.DocumentIDs = ids
	case all:
		if ctx.AllDocuments != nil {
			q.DocumentIDs = slices.Clone(ctx.AllDocuments())
		}
	case intent.NeedsDocuments() && len(ctx.LastDocuments) > 0:
		// Continuation marker, or a document intent with no explicit set.
		q.DocumentIDs = slices.Clone(ctx.LastDocuments)
		carried = true
	}

	if !intent.NeedsDocuments() {
		return q, nil
	}
	if len(q.DocumentIDs) == 0 {
		reason := "no documents were named and there is no previous selection"
		if all {
			reason = "there are no stored documents"
		}
		return model.ParsedQuery{Intent: intent}, &AmbiguousQueryError{Intent: intent, Reason: reason}
	}

	switch {
	case explicit != model.FormatUnspecified:
		q.Format = explicit
	case carried && ctx.LastFormat != model.FormatUnspecified:
		q.Format = ctx.LastFormat
	case len(q.DocumentIDs) > 1:
		q.Format = model.FormatTable
	default:
		q.Format = model.FormatList
	}

	return q, nil
}

// ExtractIDs returns the document IDs named in text, deduplicated, in
// order of first mention
func ExtractIDs(text string) []int {
	var ids []int
	for _, m := range idRe.FindAllStringSubmatch(text, -1) {
		for _, n := range numberRe.FindAllString(m[1], -1) {
			id, err := strconv.Atoi(n)
			if err != nil || slices.Contains(ids, id) {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}

func detectIntent(text string, referenced bool) model.Intent {
	for _, r := range intentRules {
		if r.match(text, referenced) {
			return r.intent
		}
	}
	return model.IntentGeneralQuestion
}

// repeatable reports intents whose output depends on the format
func repeatable(i model.Intent) bool {
	return i == model.IntentExtractCodes || i == model.IntentVitals
}

// explicitFormat returns the last format keyword in text
func explicitFormat(text string) model.Format {
	matches := formatRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return model.FormatUnspecified
	}
	return model.ParseFormat(strings.ToLower(matches[len(matches)-1]))
}

// isBareFormatRequest reports utterances like "as csv" or "show it as a
// table, please" that only change the format
func isBareFormatRequest(text string, format model.Format) bool {
	if format == model.FormatUnspecified {
		return false
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, w := range words {
		if fillerWords[w] || model.ParseFormat(w) != model.FormatUnspecified {
			continue
		}
		return false
	}
	return true
}
