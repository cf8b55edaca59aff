// Package retrieve finds note passages relevant to an open question
package retrieve

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/ppiankov/chartcode/internal/llm"
	"github.com/ppiankov/chartcode/internal/model"
)

// DocumentSource is the read side of the document store
type DocumentSource interface {
	Get(ctx context.Context, id int) (*model.Document, error)
	AllIDs(ctx context.Context) ([]int, error)
}

const (
	defaultLimit  = 3
	defaultWindow = 3 // sentences per passage
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "did": true, "do": true, "does": true, "for": true,
	"from": true, "has": true, "have": true, "how": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"was": true, "were": true, "what": true, "when": true, "which": true,
	"who": true, "why": true, "with": true, "any": true, "there": true,
	"patient": true, "patients": true, "document": true, "documents": true,
}

// Retriever ranks passages by how many distinct question terms they share
type Retriever struct {
	docs   DocumentSource
	window int
}

// New creates a keyword retriever over docs
func New(docs DocumentSource) *Retriever {
	return &Retriever{docs: docs, window: defaultWindow}
}

type scored struct {
	passage llm.Passage
	score   int
	pos     int
}

// Retrieve returns up to limit passages, best first. Passages that share no
// term with the question are never returned
func (r *Retriever) Retrieve(ctx context.Context, question string, limit int) ([]llm.Passage, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	terms := Terms(question)
	if len(terms) == 0 {
		return nil, nil
	}

	ids, err := r.docs.AllIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list documents")
	}

	var candidates []scored
	for _, id := range ids {
		doc, err := r.docs.Get(ctx, id)
		if err != nil {
			zap.L().Warn("skipping document during retrieval", zap.Int("document_id", id), zap.Error(err))
			continue
		}
		for i, chunk := range chunk(splitSentences(doc.Content), r.window) {
			score := overlap(terms, Terms(chunk))
			if score == 0 {
				continue
			}
			candidates = append(candidates, scored{
				passage: llm.Passage{DocumentID: doc.ID, Title: doc.Title, Text: chunk},
				score:   score,
				pos:     i,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.passage.DocumentID != b.passage.DocumentID {
			return a.passage.DocumentID < b.passage.DocumentID
		}
		return a.pos < b.pos
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]llm.Passage, len(candidates))
	for i, c := range candidates {
		out[i] = c.passage
	}
	return out, nil
}

// Terms returns the distinct case-folded content words of text, in order of
// first appearance
func Terms(text string) []string {
	folded := cases.Fold().String(text)
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(words))
	var terms []string
	for _, w := range words {
		if len(w) < 2 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

func overlap(query, passage []string) int {
	set := make(map[string]bool, len(passage))
	for _, t := range passage {
		set[t] = true
	}
	n := 0
	for _, t := range query {
		if set[t] {
			n++
		}
	}
	return n
}

// splitSentences breaks a note into sentences. Line breaks end a sentence
// too since notes are often written one finding per line
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Abbreviations and decimals are not followed by whitespace
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				flush()
			}
		}
	}
	flush()

	return sentences
}

// chunk groups consecutive sentences into passages of at most size sentences
func chunk(sentences []string, size int) []string {
	if size <= 0 {
		size = 1
	}
	var out []string
	for i := 0; i < len(sentences); i += size {
		end := min(i+size, len(sentences))
		out = append(out, strings.Join(sentences[i:end], " "))
	}
	return out
}
