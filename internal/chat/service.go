// Package chat is the conversational entry point. It ties the interpreter,
// the session cache, the extraction orchestrator and the renderers together
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/chartcode/internal/docstore"
	"github.com/ppiankov/chartcode/internal/fhir"
	"github.com/ppiankov/chartcode/internal/interpret"
	"github.com/ppiankov/chartcode/internal/llm"
	"github.com/ppiankov/chartcode/internal/model"
	"github.com/ppiankov/chartcode/internal/render"
	"github.com/ppiankov/chartcode/internal/session"
)

// Extractor runs extraction for a document set
type Extractor interface {
	Run(ctx context.Context, ids []int) model.ExtractionBatch
}

// Summarizer summarizes one note
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Retriever finds passages for an open question
type Retriever interface {
	Retrieve(ctx context.Context, question string, limit int) ([]llm.Passage, error)
}

// Answerer answers a question from passages
type Answerer interface {
	Answer(ctx context.Context, question string, passages []llm.Passage) (string, error)
}

// Options holds the optional collaborators. A nil collaborator disables the
// intent that needs it
type Options struct {
	Summarizer Summarizer
	Retriever  Retriever
	Answerer   Answerer
	Passages   int // passages handed to the answerer
}

// Service answers utterances within a session
type Service struct {
	docs       docstore.Store
	sessions   *session.Store
	extractor  Extractor
	summarizer Summarizer
	retriever  Retriever
	answerer   Answerer
	passages   int
}

// NewService creates a chat service
func NewService(docs docstore.Store, sessions *session.Store, extractor Extractor, opts Options) *Service {
	if opts.Passages <= 0 {
		opts.Passages = 3
	}
	return &Service{
		docs:       docs,
		sessions:   sessions,
		extractor:  extractor,
		summarizer: opts.Summarizer,
		retriever:  opts.Retriever,
		answerer:   opts.Answerer,
		passages:   opts.Passages,
	}
}

// Handle answers one utterance. It never fails: every error becomes a
// message for the user
func (s *Service) Handle(ctx context.Context, sessionID, utterance string) string {
	logger := zap.L().With(zap.String("session_id", sessionID))

	if strings.TrimSpace(utterance) == "" {
		return "Please ask a question or name the documents you want coded."
	}

	// 1. Interpret against session context
	snap := s.sessions.Snapshot(sessionID)
	q, err := interpret.Interpret(utterance, interpret.Context{
		LastDocuments: snap.LastDocuments,
		LastIntent:    snap.LastIntent,
		LastFormat:    snap.LastFormat,
		AllDocuments:  func() []int { return s.allIDs(ctx) },
	})
	var ambiguous *interpret.AmbiguousQueryError
	if errors.As(err, &ambiguous) {
		logger.Debug("ambiguous query", zap.String("intent", ambiguous.Intent.String()), zap.String("reason", ambiguous.Reason))
		return s.clarify(ctx)
	}

	logger.Debug("query interpreted",
		zap.String("intent", q.Intent.String()),
		zap.Ints("document_ids", q.DocumentIDs),
		zap.String("format", q.Format.String()))

	// 2. Dispatch by intent
	switch q.Intent {
	case model.IntentExtractCodes:
		batch := s.extraction(ctx, sessionID, q.DocumentIDs)
		s.sessions.Remember(sessionID, q.DocumentIDs, q.Intent, q.Format)
		return withFailures(render.Render(batch.Results, q.Format), batch)

	case model.IntentVitals:
		batch := s.extraction(ctx, sessionID, q.DocumentIDs)
		s.sessions.Remember(sessionID, q.DocumentIDs, q.Intent, q.Format)
		return withFailures(render.Vitals(batch.Results, q.Format), batch)

	case model.IntentToFHIR:
		batch := s.extraction(ctx, sessionID, q.DocumentIDs)
		s.sessions.Remember(sessionID, q.DocumentIDs, q.Intent, model.FormatUnspecified)
		if len(batch.Results) == 0 {
			return withFailures(render.NoData, batch)
		}
		out, err := fhir.Marshal(batch.Results)
		if err != nil {
			logger.Error("fhir marshal failed", zap.Error(err))
			return "Could not build the FHIR bundle."
		}
		return withFailures("```json\n"+out+"\n```", batch)

	case model.IntentSummarize:
		s.sessions.Remember(sessionID, q.DocumentIDs, q.Intent, model.FormatUnspecified)
		return s.summarize(ctx, q.DocumentIDs)

	default:
		return s.answer(ctx, utterance)
	}
}

// Reset drops the session's context and cached batches
func (s *Service) Reset(sessionID string) {
	s.sessions.Invalidate(sessionID)
}

// PutDocument stores doc and drops any cached batch that covers it
func (s *Service) PutDocument(ctx context.Context, doc *model.Document) error {
	if err := s.docs.Put(ctx, doc); err != nil {
		return eris.Wrap(err, "store document")
	}
	s.sessions.InvalidateDocument(doc.ID)
	return nil
}

// DeleteDocument removes a document and drops any cached batch that covers it
func (s *Service) DeleteDocument(ctx context.Context, id int) error {
	if err := s.docs.Delete(ctx, id); err != nil {
		return eris.Wrapf(err, "delete document %d", id)
	}
	s.sessions.InvalidateDocument(id)
	return nil
}

func (s *Service) extraction(ctx context.Context, sessionID string, ids []int) model.ExtractionBatch {
	batch, hit := s.sessions.Load(ctx, sessionID, ids, func(ctx context.Context, pending []int) model.ExtractionBatch {
		return s.extractor.Run(ctx, pending)
	})
	zap.L().Debug("extraction batch",
		zap.String("session_id", sessionID),
		zap.Ints("document_ids", ids),
		zap.Bool("cache_hit", hit))
	return batch
}

func (s *Service) summarize(ctx context.Context, ids []int) string {
	if s.summarizer == nil {
		return "Summaries need an LLM provider. Set llm.provider in the config."
	}

	var items []render.Summary
	var failures []model.ExtractionFailure
	for _, id := range ids {
		doc, err := s.docs.Get(ctx, id)
		if err != nil {
			failures = append(failures, model.ExtractionFailure{DocumentID: id, Reason: "document not found"})
			continue
		}
		text, err := s.summarizer.Summarize(ctx, doc.Content)
		if err != nil {
			zap.L().Warn("summary failed", zap.Int("document_id", id), zap.Error(err))
			failures = append(failures, model.ExtractionFailure{
				DocumentID:    id,
				DocumentTitle: doc.Title,
				Reason:        "summary failed: " + err.Error(),
			})
			continue
		}
		items = append(items, render.Summary{DocumentID: id, Title: doc.Title, Text: text})
	}

	notices := render.Failures(failures)
	switch {
	case len(items) == 0 && notices != "":
		return notices
	case notices != "":
		return render.Summaries(items) + "\n\n" + notices
	default:
		return render.Summaries(items)
	}
}

func (s *Service) answer(ctx context.Context, question string) string {
	if s.retriever == nil || s.answerer == nil {
		return "I can extract codes, vitals, summaries or FHIR bundles for stored documents. " +
			"Try \"codes for document 1\"."
	}

	passages, err := s.retriever.Retrieve(ctx, question, s.passages)
	if err != nil {
		zap.L().Warn("retrieval failed", zap.Error(err))
		return "Could not search the stored documents."
	}
	text, err := s.answerer.Answer(ctx, question, passages)
	if err != nil {
		zap.L().Warn("answer failed", zap.Error(err))
		return "Could not answer the question right now."
	}
	return strings.TrimSpace(text)
}

func (s *Service) clarify(ctx context.Context) string {
	ids := s.allIDs(ctx)
	if len(ids) == 0 {
		return "Which documents do you mean? There are no stored documents yet."
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("Which documents do you mean? Available document IDs: %s. "+
		"For example: \"codes for document %d\".", strings.Join(names, ", "), ids[0])
}

func (s *Service) allIDs(ctx context.Context) []int {
	ids, err := s.docs.AllIDs(ctx)
	if err != nil {
		zap.L().Warn("list documents failed", zap.Error(err))
		return nil
	}
	return ids
}

// withFailures appends failure notices. When nothing succeeded only the
// notices are shown
func withFailures(body string, batch model.ExtractionBatch) string {
	if !batch.HasFailures() {
		return body
	}
	notices := render.Failures(batch.Failures)
	if len(batch.Results) == 0 {
		return notices
	}
	return body + "\n\n" + notices
}
