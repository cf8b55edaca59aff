package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chartcode/internal/docstore"
	"github.com/ppiankov/chartcode/internal/llm"
	"github.com/ppiankov/chartcode/internal/model"
	"github.com/ppiankov/chartcode/internal/session"
)

type fakeExtractor struct {
	calls atomic.Int32
	fail  map[int]bool

	mu   sync.Mutex
	runs map[int]int // extraction attempts per document
}

func (f *fakeExtractor) Run(_ context.Context, ids []int) model.ExtractionBatch {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == nil {
		f.runs = make(map[int]int)
	}
	var batch model.ExtractionBatch
	for _, id := range ids {
		f.runs[id]++
		if f.fail[id] {
			batch.Failures = append(batch.Failures, model.ExtractionFailure{
				DocumentID: id,
				Reason:     "structured extraction failed: boom",
			})
			continue
		}
		code := "E66.3"
		batch.Results = append(batch.Results, model.ExtractionResult{
			DocumentID:    id,
			DocumentTitle: titles[id],
			Facts: []model.ClinicalFact{{
				Name:          "Overweight",
				Kind:          model.FactKindCondition,
				SuggestedCode: &code,
				ValidatedCode: &code,
				Confidence:    model.ConfidenceHigh,
			}},
			Vitals: model.VitalSigns{BloodPressure: "120/80"},
		})
	}
	return batch
}

type fakeSummarizer struct{ err error }

func (f fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "Summary of: " + text, nil
}

type fakeRetriever struct{ passages []llm.Passage }

func (f fakeRetriever) Retrieve(context.Context, string, int) ([]llm.Passage, error) {
	return f.passages, nil
}

type fakeAnswerer struct{ got []llm.Passage }

func (f *fakeAnswerer) Answer(_ context.Context, q string, p []llm.Passage) (string, error) {
	f.got = p
	return "Answer to " + q, nil
}

var titles = map[int]string{1: "Obesity consult", 2: "Wellness visit", 3: "Diabetes follow-up"}

func newService(t *testing.T, ex *fakeExtractor, opts Options) (*Service, docstore.Store) {
	t.Helper()
	store := docstore.NewMemory()
	for id := 1; id <= 3; id++ {
		require.NoError(t, store.Put(context.Background(), &model.Document{ID: id, Title: titles[id], Content: "note " + titles[id]}))
	}
	return NewService(store, session.NewStore(0, time.Minute), ex, opts), store
}

func TestHandle_CacheHitSkipsExtraction(t *testing.T) {
	ex := &fakeExtractor{}
	svc, _ := newService(t, ex, Options{})
	ctx := context.Background()

	out := svc.Handle(ctx, "s1", "codes for doc 1, 2, and 3")
	assert.True(t, strings.HasPrefix(out, "| Case | Document Title |"), out)
	assert.Contains(t, out, "Diabetes follow-up")
	assert.EqualValues(t, 1, ex.calls.Load())

	out = svc.Handle(ctx, "s1", "export to csv")
	assert.True(t, strings.HasPrefix(out, "Case,Document Title,Fact,Type"), out)
	assert.Contains(t, out, "Obesity consult")
	assert.EqualValues(t, 1, ex.calls.Load(), "format change must not re-run extraction")

	// Another session has its own cache.
	svc.Handle(ctx, "s2", "codes for doc 1, 2, and 3")
	assert.EqualValues(t, 2, ex.calls.Load())
}

func TestHandle_Ambiguous(t *testing.T) {
	ex := &fakeExtractor{}
	svc, _ := newService(t, ex, Options{})

	out := svc.Handle(context.Background(), "s1", "what codes apply?")
	assert.Contains(t, out, "Available document IDs: 1, 2, 3")
	assert.Zero(t, ex.calls.Load())
}

func TestHandle_AmbiguousEmptyStore(t *testing.T) {
	svc := NewService(docstore.NewMemory(), session.NewStore(0, time.Minute), &fakeExtractor{}, Options{})

	out := svc.Handle(context.Background(), "s1", "codes please")
	assert.Contains(t, out, "no stored documents")
}

func TestHandle_PartialFailure(t *testing.T) {
	ex := &fakeExtractor{fail: map[int]bool{2: true}}
	svc, _ := newService(t, ex, Options{})
	ctx := context.Background()

	out := svc.Handle(ctx, "s1", "codes for doc 1, 2, and 3")
	assert.Contains(t, out, "Obesity consult")
	assert.Contains(t, out, "Diabetes follow-up")
	assert.Contains(t, out, "> Could not process Document 2: structured extraction failed: boom")

	// Only the failed document is retried; 1 and 3 come from the cache.
	out = svc.Handle(ctx, "s1", "as a list")
	assert.Contains(t, out, "Obesity consult")
	assert.Contains(t, out, "> Could not process Document 2")
	assert.EqualValues(t, 2, ex.calls.Load())
	assert.Equal(t, map[int]int{1: 1, 2: 2, 3: 1}, ex.runs)

	// Once document 2 recovers the batch is complete and fully cached.
	ex.mu.Lock()
	ex.fail = nil
	ex.mu.Unlock()
	out = svc.Handle(ctx, "s1", "as a table")
	assert.Contains(t, out, "Wellness visit")
	assert.NotContains(t, out, "Could not process")
	svc.Handle(ctx, "s1", "as csv")
	assert.Equal(t, map[int]int{1: 1, 2: 3, 3: 1}, ex.runs)
}

func TestHandle_AllFailed(t *testing.T) {
	ex := &fakeExtractor{fail: map[int]bool{1: true}}
	svc, _ := newService(t, ex, Options{})

	out := svc.Handle(context.Background(), "s1", "codes for document 1")
	assert.Equal(t, "> Could not process Document 1: structured extraction failed: boom", out)
}

func TestHandle_Vitals(t *testing.T) {
	ex := &fakeExtractor{}
	svc, _ := newService(t, ex, Options{})
	ctx := context.Background()

	out := svc.Handle(ctx, "s1", "vitals for document 1")
	assert.Contains(t, out, "## Obesity consult")
	assert.Contains(t, out, "- Blood Pressure: 120/80")

	// Shares the cached batch with code extraction.
	svc.Handle(ctx, "s1", "codes for document 1")
	assert.EqualValues(t, 1, ex.calls.Load())
}

func TestHandle_FormatChangeKeepsVitalsIntent(t *testing.T) {
	ex := &fakeExtractor{}
	svc, _ := newService(t, ex, Options{})
	ctx := context.Background()

	svc.Handle(ctx, "s1", "vitals for doc 1")
	out := svc.Handle(ctx, "s1", "as csv")
	assert.True(t, strings.HasPrefix(out, "Case,Document Title,Blood Pressure"), out)

	out = svc.Handle(ctx, "s1", "codes as csv")
	assert.True(t, strings.HasPrefix(out, "Case,Document Title,Fact,Type"), out)
	assert.EqualValues(t, 1, ex.calls.Load())
}

func TestHandle_FHIR(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{}, Options{})

	out := svc.Handle(context.Background(), "s1", "fhir for doc 1")
	assert.Contains(t, out, `"resourceType": "Bundle"`)
	assert.Contains(t, out, `"code": "E66.3"`)
}

func TestHandle_Summarize(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{}, Options{Summarizer: fakeSummarizer{}})

	out := svc.Handle(context.Background(), "s1", "summarize document 2 and doc 9")
	assert.Contains(t, out, "## Wellness visit")
	assert.Contains(t, out, "Summary of: note Wellness visit")
	assert.Contains(t, out, "> Could not process Document 9: document not found")
}

func TestHandle_SummarizeFailure(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{}, Options{Summarizer: fakeSummarizer{err: errors.New("rate limited")}})

	out := svc.Handle(context.Background(), "s1", "summarize document 2")
	assert.Equal(t, "> Could not process Wellness visit: summary failed: rate limited", out)
}

func TestHandle_SummarizeDisabled(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{}, Options{})

	out := svc.Handle(context.Background(), "s1", "summarize document 2")
	assert.Contains(t, out, "LLM provider")
}

func TestHandle_GeneralQuestion(t *testing.T) {
	answerer := &fakeAnswerer{}
	passages := []llm.Passage{{DocumentID: 3, Title: "Diabetes follow-up", Text: "Continue metformin."}}
	svc, _ := newService(t, &fakeExtractor{}, Options{Retriever: fakeRetriever{passages}, Answerer: answerer})

	out := svc.Handle(context.Background(), "s1", "who takes metformin?")
	assert.Equal(t, "Answer to who takes metformin?", out)
	assert.Equal(t, passages, answerer.got)
}

func TestHandle_GeneralQuestionWithoutCollaborators(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{}, Options{})

	out := svc.Handle(context.Background(), "s1", "who takes metformin?")
	assert.Contains(t, out, "codes for document 1")
}

func TestHandle_Blank(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{}, Options{})
	assert.NotEmpty(t, svc.Handle(context.Background(), "s1", "   "))
}

func TestReset(t *testing.T) {
	ex := &fakeExtractor{}
	svc, _ := newService(t, ex, Options{})
	ctx := context.Background()

	svc.Handle(ctx, "s1", "codes for doc 1, 2, and 3")
	svc.Reset("s1")

	out := svc.Handle(ctx, "s1", "export to csv")
	assert.Contains(t, out, "Which documents do you mean?")
}

func TestPutDocumentInvalidates(t *testing.T) {
	ex := &fakeExtractor{}
	svc, store := newService(t, ex, Options{})
	ctx := context.Background()

	svc.Handle(ctx, "s1", "codes for doc 1")
	require.NoError(t, svc.PutDocument(ctx, &model.Document{ID: 1, Title: "Obesity consult", Content: "revised"}))

	svc.Handle(ctx, "s1", "codes for doc 1")
	assert.EqualValues(t, 2, ex.calls.Load())

	require.NoError(t, svc.DeleteDocument(ctx, 1))
	_, err := store.Get(ctx, 1)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	err = svc.DeleteDocument(ctx, 1)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
