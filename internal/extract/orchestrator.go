// Package extract runs per-document structured extraction, enriches every
// fact with an external code lookup and reconciles the two code sources
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/chartcode/internal/docstore"
	"github.com/ppiankov/chartcode/internal/lookup"
	"github.com/ppiankov/chartcode/internal/model"
	"github.com/ppiankov/chartcode/internal/reconcile"
	"github.com/ppiankov/chartcode/internal/worker"
)

// ErrExtractionFailed marks a document that produced no result
var ErrExtractionFailed = eris.New("extraction failed")

// DraftGenerator produces a structured draft from note text
type DraftGenerator interface {
	Extract(ctx context.Context, text string) (*model.RawDraft, error)
}

// DocumentSource fetches notes by ID
type DocumentSource interface {
	Get(ctx context.Context, id int) (*model.Document, error)
}

// Options bounds orchestrator concurrency
type Options struct {
	DocumentWorkers int
	FactFanout      int
	FactTimeout     time.Duration
}

// OptionsFromConfig converts the extraction config section
func OptionsFromConfig(c model.ExtractionConfig) Options {
	return Options{
		DocumentWorkers: c.DocumentWorkers,
		FactFanout:      c.FactFanout,
		FactTimeout:     c.FactTimeoutDuration(),
	}
}

// Orchestrator turns document IDs into an ExtractionBatch
type Orchestrator struct {
	docs    DocumentSource
	drafts  DraftGenerator
	lookups lookup.Set
	opts    Options
	now     func() time.Time
}

// New creates an orchestrator. Zero options fall back to 4 document
// workers, a fan-out of 8 and a 30s per-fact timeout
func New(docs DocumentSource, drafts DraftGenerator, lookups lookup.Set, opts Options) *Orchestrator {
	if opts.DocumentWorkers <= 0 {
		opts.DocumentWorkers = 4
	}
	if opts.FactFanout <= 0 {
		opts.FactFanout = 8
	}
	if opts.FactTimeout <= 0 {
		opts.FactTimeout = 30 * time.Second
	}
	return &Orchestrator{
		docs:    docs,
		drafts:  drafts,
		lookups: lookups,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// documentJob adapts one document to the worker pool
type documentJob struct {
	o  *Orchestrator
	id int
}

func (j *documentJob) Execute(ctx context.Context) worker.Result {
	return j.o.processDocument(ctx, j.id)
}

type documentResult struct {
	result  *model.ExtractionResult
	failure *model.ExtractionFailure
	err     error
}

func (r *documentResult) GetError() error {
	return r.err
}

// Run extracts every document in ids. Documents are independent: a failure
// becomes an entry in Failures and never aborts its siblings. Results and
// Failures keep the order of ids
func (o *Orchestrator) Run(ctx context.Context, ids []int) model.ExtractionBatch {
	var batch model.ExtractionBatch
	if len(ids) == 0 {
		return batch
	}

	workers := o.opts.DocumentWorkers
	if workers > len(ids) {
		workers = len(ids)
	}
	pool := worker.NewPool(ctx, workers)
	pool.Start()

	slots := make([]int, len(ids))
	for i, id := range ids {
		slots[i] = pool.Submit(&documentJob{o: o, id: id})
	}
	results := pool.Wait()

	for i, id := range ids {
		var r worker.Result
		if slot := slots[i]; slot >= 0 && slot < len(results) {
			r = results[slot]
		}
		dr, ok := r.(*documentResult)
		if !ok || dr == nil {
			batch.Failures = append(batch.Failures, model.ExtractionFailure{
				DocumentID: id,
				Reason:     "cancelled before extraction started",
			})
			continue
		}
		if dr.failure != nil {
			batch.Failures = append(batch.Failures, *dr.failure)
			continue
		}
		batch.Results = append(batch.Results, *dr.result)
	}

	return batch
}

func (o *Orchestrator) processDocument(ctx context.Context, id int) *documentResult {
	logger := zap.L().With(zap.Int("document_id", id))

	doc, err := o.docs.Get(ctx, id)
	if err != nil {
		reason := "document could not be loaded"
		if errors.Is(err, docstore.ErrNotFound) {
			reason = "document not found"
		}
		logger.Warn("document fetch failed", zap.Error(err))
		return failed(id, "", reason, err)
	}

	// The draft call is made exactly once.
	draft, err := o.drafts.Extract(ctx, doc.Content)
	if err != nil {
		logger.Warn("draft generation failed", zap.Error(err))
		return failed(id, doc.Title, "structured extraction failed: "+err.Error(), err)
	}

	facts := o.enrich(ctx, draft.Facts)
	logger.Debug("document extracted", zap.Int("facts", len(facts)))

	return &documentResult{
		result: &model.ExtractionResult{
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			Facts:         facts,
			Patient:       draft.Patient,
			Vitals:        draft.Vitals,
			ExtractedAt:   o.now(),
		},
	}
}

func failed(id int, title, reason string, cause error) *documentResult {
	return &documentResult{
		failure: &model.ExtractionFailure{
			DocumentID:    id,
			DocumentTitle: title,
			Reason:        reason,
		},
		err: eris.Wrapf(ErrExtractionFailed, "document %d: %v", id, cause),
	}
}

type lookupOutcome struct {
	code  string
	found bool
}

// enrich looks up every fact in parallel and reconciles it. Outcomes are
// written by index so facts keep draft order
func (o *Orchestrator) enrich(ctx context.Context, drafts []model.DraftFact) []model.ClinicalFact {
	outcomes := make([]lookupOutcome, len(drafts))

	var g errgroup.Group
	g.SetLimit(o.opts.FactFanout)
	for i := range drafts {
		g.Go(func() error {
			outcomes[i] = o.lookupFact(ctx, drafts[i])
			return nil
		})
	}
	_ = g.Wait() // lookups never return errors

	facts := make([]model.ClinicalFact, len(drafts))
	for i, d := range drafts {
		facts[i] = reconcile.Reconcile(d, outcomes[i].code, outcomes[i].found)
	}
	return facts
}

func (o *Orchestrator) lookupFact(ctx context.Context, fact model.DraftFact) lookupOutcome {
	svc := o.lookups.For(fact.Kind)
	if svc == nil {
		return lookupOutcome{}
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.FactTimeout)
	defer cancel()

	code, found, err := svc.Lookup(ctx, fact.Name)
	if err != nil {
		zap.L().Warn("code lookup unavailable",
			zap.String("system", svc.System()),
			zap.String("term", fact.Name),
			zap.Error(err))
		return lookupOutcome{}
	}
	return lookupOutcome{code: code, found: found}
}
