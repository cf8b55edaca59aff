// Package session keeps per-conversation context and the extraction
// batches computed for it
package session

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/chartcode/internal/model"
)

// Session is the conversational state for one session ID
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.Mutex
	lastDocuments []int
	lastIntent    model.Intent
	lastFormat    model.Format
	batches       map[string]model.ExtractionBatch
	version       uint64 // bumped whenever cached batches are dropped
}

// Snapshot is a read-only copy of a session's context
type Snapshot struct {
	ID            string
	LastDocuments []int
	LastIntent    model.Intent
	LastFormat    model.Format
	CachedKeys    int
}

// computeTimeout bounds a shared computation once it is detached from the
// caller that started it
const computeTimeout = 10 * time.Minute

// Store maps session IDs to sessions. Idle sessions are evicted after the
// configured TTL; a zero TTL keeps them until Invalidate
type Store struct {
	sessions *gocache.Cache
	group    singleflight.Group
	mu       sync.Mutex // serializes get-or-create
}

// NewStore creates a session store
func NewStore(ttl, cleanupInterval time.Duration) *Store {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s := &Store{sessions: gocache.New(ttl, cleanupInterval)}
	s.sessions.OnEvicted(func(id string, _ interface{}) {
		zap.L().Debug("session evicted", zap.String("session_id", id))
	})
	return s
}

// Key builds the cache key for a document set. Order is significant
func Key(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func parseKey(key string) []int {
	var ids []int
	for _, p := range strings.Split(key, ",") {
		if id, err := strconv.Atoi(p); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// session returns the session for id, creating it on first use. Every
// access restarts the idle timer
func (s *Store) session(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.sessions.Get(id); ok {
		sess := v.(*Session)
		s.sessions.SetDefault(id, sess)
		return sess
	}

	sess := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		batches:   make(map[string]model.ExtractionBatch),
	}
	s.sessions.SetDefault(id, sess)
	zap.L().Debug("session created", zap.String("session_id", id))
	return sess
}

// Get returns the cached batch for key in the session
func (s *Store) Get(sessionID, key string) (model.ExtractionBatch, bool) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	b, ok := sess.batches[key]
	return b, ok
}

// Put caches a fully assembled batch. A batch with failures is kept too;
// Load retries only its failed documents
func (s *Store) Put(sessionID, key string, batch model.ExtractionBatch) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.batches[key] = batch
}

// Load returns the cached batch for ids or computes it. compute receives the
// documents that still need extraction: all of ids on a miss, only the failed
// ones when a partial batch is cached. Concurrent loads of the same session
// and key share one computation, which runs detached from any single
// caller's context; a caller that gives up gets a cancellation batch while
// the computation finishes and is cached for the next request. The second
// return value reports a full cache hit
func (s *Store) Load(ctx context.Context, sessionID string, ids []int, compute func(context.Context, []int) model.ExtractionBatch) (model.ExtractionBatch, bool) {
	key := Key(ids)
	if b, ok := s.Get(sessionID, key); ok && !b.HasFailures() {
		return b, true
	}

	ch := s.group.DoChan(sessionID+"\x00"+key, func() (interface{}, error) {
		return s.fill(context.WithoutCancel(ctx), sessionID, key, ids, compute), nil
	})

	select {
	case r := <-ch:
		return r.Val.(model.ExtractionBatch), false
	case <-ctx.Done():
		zap.L().Debug("extraction abandoned by caller",
			zap.String("session_id", sessionID),
			zap.String("key", key),
			zap.Error(ctx.Err()))
		return cancelled(ids, ctx.Err()), false
	}
}

// fill computes the documents missing from the cached batch for key and
// merges them in request order
func (s *Store) fill(ctx context.Context, sessionID, key string, ids []int, compute func(context.Context, []int) model.ExtractionBatch) model.ExtractionBatch {
	ctx, cancel := context.WithTimeout(ctx, computeTimeout)
	defer cancel()

	sess := s.session(sessionID)
	sess.mu.Lock()
	cached, ok := sess.batches[key]
	version := sess.version
	sess.mu.Unlock()

	if ok && !cached.HasFailures() {
		return cached
	}
	pending := ids
	if ok {
		pending = failedIDs(cached)
	}

	fresh := compute(ctx, pending)
	merged := merge(ids, cached, fresh)

	if ctx.Err() != nil {
		return merged
	}
	sess.mu.Lock()
	// Skip the write if a document in the set changed meanwhile.
	if sess.version == version {
		sess.batches[key] = merged
	}
	sess.mu.Unlock()
	return merged
}

func failedIDs(b model.ExtractionBatch) []int {
	ids := make([]int, len(b.Failures))
	for i, f := range b.Failures {
		ids[i] = f.DocumentID
	}
	return ids
}

// merge assembles a batch for ids from fresh and earlier outcomes. Fresh
// outcomes win; order follows ids
func merge(ids []int, earlier, fresh model.ExtractionBatch) model.ExtractionBatch {
	results := make(map[int]model.ExtractionResult)
	failures := make(map[int]model.ExtractionFailure)
	for _, b := range []model.ExtractionBatch{earlier, fresh} {
		for _, r := range b.Results {
			results[r.DocumentID] = r
			delete(failures, r.DocumentID)
		}
		for _, f := range b.Failures {
			failures[f.DocumentID] = f
			delete(results, f.DocumentID)
		}
	}

	var out model.ExtractionBatch
	for _, id := range ids {
		if r, ok := results[id]; ok {
			out.Results = append(out.Results, r)
		} else if f, ok := failures[id]; ok {
			out.Failures = append(out.Failures, f)
		}
	}
	return out
}

func cancelled(ids []int, err error) model.ExtractionBatch {
	var b model.ExtractionBatch
	for _, id := range ids {
		b.Failures = append(b.Failures, model.ExtractionFailure{
			DocumentID: id,
			Reason:     "request cancelled: " + err.Error(),
		})
	}
	return b
}

// Invalidate destroys the session and everything cached for it
func (s *Store) Invalidate(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Delete(sessionID)
}

// InvalidateDocument drops every cached batch, in every session, whose
// document set contains id
func (s *Store) InvalidateDocument(id int) {
	dropped := 0
	for _, item := range s.sessions.Items() {
		sess := item.Object.(*Session)
		sess.mu.Lock()
		for key := range sess.batches {
			if slices.Contains(parseKey(key), id) {
				delete(sess.batches, key)
				dropped++
			}
		}
		sess.version++
		sess.mu.Unlock()
	}
	if dropped > 0 {
		zap.L().Debug("invalidated cached batches", zap.Int("document_id", id), zap.Int("batches", dropped))
	}
}

// Snapshot returns the session's current context
func (s *Store) Snapshot(sessionID string) Snapshot {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return Snapshot{
		ID:            sess.ID,
		LastDocuments: slices.Clone(sess.lastDocuments),
		LastIntent:    sess.lastIntent,
		LastFormat:    sess.lastFormat,
		CachedKeys:    len(sess.batches),
	}
}

// Remember records the document set, intent and format an utterance
// resolved to. An empty set or an unspecified format leaves the previous
// value
func (s *Store) Remember(sessionID string, ids []int, intent model.Intent, format model.Format) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(ids) > 0 {
		sess.lastDocuments = slices.Clone(ids)
	}
	if intent.NeedsDocuments() {
		sess.lastIntent = intent
	}
	if format != model.FormatUnspecified {
		sess.lastFormat = format
	}
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	return s.sessions.ItemCount()
}
