package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chartcode/internal/model"
)

func batchFor(ids ...int) model.ExtractionBatch {
	var b model.ExtractionBatch
	for _, id := range ids {
		b.Results = append(b.Results, model.ExtractionResult{DocumentID: id})
	}
	return b
}

func TestKey_InsertionOrder(t *testing.T) {
	assert.Equal(t, "1,2,3", Key([]int{1, 2, 3}))
	assert.Equal(t, "3,1,2", Key([]int{3, 1, 2}))
	assert.NotEqual(t, Key([]int{1, 2}), Key([]int{2, 1}))
	assert.Equal(t, "", Key(nil))
}

func TestStore_GetPut(t *testing.T) {
	s := NewStore(0, 0)

	_, ok := s.Get("s1", "1,2")
	assert.False(t, ok)

	s.Put("s1", "1,2", batchFor(1, 2))
	b, ok := s.Get("s1", "1,2")
	require.True(t, ok)
	assert.Len(t, b.Results, 2)

	// Sessions are isolated
	_, ok = s.Get("s2", "1,2")
	assert.False(t, ok)

	// Different order is a different key
	_, ok = s.Get("s1", "2,1")
	assert.False(t, ok)
}

func failedBatch(ok []int, failed ...int) model.ExtractionBatch {
	b := batchFor(ok...)
	for _, id := range failed {
		b.Failures = append(b.Failures, model.ExtractionFailure{DocumentID: id, Reason: "timeout"})
	}
	return b
}

func TestStore_PutKeepsPartialBatches(t *testing.T) {
	s := NewStore(0, 0)
	s.Put("s1", "1,2", failedBatch([]int{1}, 2))

	b, ok := s.Get("s1", "1,2")
	require.True(t, ok)
	assert.Len(t, b.Results, 1)
	assert.Len(t, b.Failures, 1)
}

func TestStore_Load_CachesAndSkipsSecondCompute(t *testing.T) {
	s := NewStore(0, 0)
	var calls atomic.Int32
	compute := func(_ context.Context, ids []int) model.ExtractionBatch {
		calls.Add(1)
		return batchFor(ids...)
	}

	b, hit := s.Load(context.Background(), "s1", []int{1, 2, 3}, compute)
	assert.False(t, hit)
	assert.Len(t, b.Results, 3)

	b, hit = s.Load(context.Background(), "s1", []int{1, 2, 3}, compute)
	assert.True(t, hit)
	assert.Len(t, b.Results, 3)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStore_Load_SharesInFlightCompute(t *testing.T) {
	s := NewStore(0, 0)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(_ context.Context, ids []int) model.ExtractionBatch {
		calls.Add(1)
		<-release
		return batchFor(ids...)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Load(context.Background(), "s1", []int{1}, compute)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestStore_Load_RetriesOnlyFailedDocuments(t *testing.T) {
	s := NewStore(0, 0)
	perDoc := map[int]int{}
	var mu sync.Mutex
	healthy := false
	compute := func(_ context.Context, ids []int) model.ExtractionBatch {
		mu.Lock()
		defer mu.Unlock()
		var b model.ExtractionBatch
		for _, id := range ids {
			perDoc[id]++
			if id == 2 && !healthy {
				b.Failures = append(b.Failures, model.ExtractionFailure{DocumentID: id, Reason: "timeout"})
				continue
			}
			b.Results = append(b.Results, model.ExtractionResult{DocumentID: id})
		}
		return b
	}

	b, hit := s.Load(context.Background(), "s1", []int{1, 2, 3}, compute)
	assert.False(t, hit)
	assert.Len(t, b.Results, 2)
	require.Len(t, b.Failures, 1)

	// Still failing: only document 2 is recomputed
	b, hit = s.Load(context.Background(), "s1", []int{1, 2, 3}, compute)
	assert.False(t, hit)
	assert.Len(t, b.Results, 2)
	assert.Len(t, b.Failures, 1)

	mu.Lock()
	healthy = true
	mu.Unlock()

	b, hit = s.Load(context.Background(), "s1", []int{1, 2, 3}, compute)
	assert.False(t, hit)
	assert.Empty(t, b.Failures)
	require.Len(t, b.Results, 3)
	for i, id := range []int{1, 2, 3} {
		assert.Equal(t, id, b.Results[i].DocumentID, "results keep request order")
	}

	_, hit = s.Load(context.Background(), "s1", []int{1, 2, 3}, compute)
	assert.True(t, hit)
	assert.Equal(t, map[int]int{1: 1, 2: 3, 3: 1}, perDoc)
}

func TestStore_Load_CallerCancelDoesNotPoisonSharedCompute(t *testing.T) {
	s := NewStore(0, 0)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context, ids []int) model.ExtractionBatch {
		calls.Add(1)
		close(started)
		<-release
		if ctx.Err() != nil {
			return failedBatch(nil, ids...)
		}
		return batchFor(ids...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan model.ExtractionBatch, 1)
	go func() {
		b, _ := s.Load(ctx, "s1", []int{1, 2}, compute)
		done <- b
	}()

	<-started
	cancel()
	b := <-done
	assert.Empty(t, b.Results)
	require.Len(t, b.Failures, 2)
	assert.Contains(t, b.Failures[0].Reason, "cancelled")

	// A second caller joins the still running computation
	second := make(chan model.ExtractionBatch, 1)
	go func() {
		b, _ := s.Load(context.Background(), "s1", []int{1, 2}, compute)
		second <- b
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	b = <-second
	assert.Len(t, b.Results, 2)
	assert.Empty(t, b.Failures)

	b, hit := s.Load(context.Background(), "s1", []int{1, 2}, compute)
	assert.True(t, hit)
	assert.Len(t, b.Results, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStore_Invalidate(t *testing.T) {
	s := NewStore(0, 0)
	s.Put("s1", "1", batchFor(1))
	s.Remember("s1", []int{1}, model.IntentExtractCodes, model.FormatCSV)

	s.Invalidate("s1")

	_, ok := s.Get("s1", "1")
	assert.False(t, ok)
	snap := s.Snapshot("s1")
	assert.Empty(t, snap.LastDocuments)
	assert.Equal(t, model.FormatUnspecified, snap.LastFormat)
}

func TestStore_InvalidateDocument(t *testing.T) {
	s := NewStore(0, 0)
	s.Put("s1", "1,2", batchFor(1, 2))
	s.Put("s1", "3", batchFor(3))
	s.Put("s2", "12", batchFor(12))
	s.Put("s2", "2,5", batchFor(2, 5))

	s.InvalidateDocument(2)

	_, ok := s.Get("s1", "1,2")
	assert.False(t, ok)
	_, ok = s.Get("s1", "3")
	assert.True(t, ok)
	_, ok = s.Get("s2", "12")
	assert.True(t, ok, "document 12 must not match document 2")
	_, ok = s.Get("s2", "2,5")
	assert.False(t, ok)
}

func TestStore_Remember(t *testing.T) {
	s := NewStore(0, 0)

	s.Remember("s1", []int{1, 2, 3}, model.IntentVitals, model.FormatTable)
	s.Remember("s1", nil, model.IntentGeneralQuestion, model.FormatCSV)

	snap := s.Snapshot("s1")
	assert.Equal(t, []int{1, 2, 3}, snap.LastDocuments)
	assert.Equal(t, model.IntentVitals, snap.LastIntent, "a general question keeps the last document intent")
	assert.Equal(t, model.FormatCSV, snap.LastFormat)

	s.Remember("s1", []int{4}, model.IntentExtractCodes, model.FormatUnspecified)
	snap = s.Snapshot("s1")
	assert.Equal(t, []int{4}, snap.LastDocuments)
	assert.Equal(t, model.IntentExtractCodes, snap.LastIntent)
	assert.Equal(t, model.FormatCSV, snap.LastFormat)
}

func TestStore_TTLEviction(t *testing.T) {
	s := NewStore(30*time.Millisecond, 10*time.Millisecond)
	s.Put("s1", "1", batchFor(1))
	assert.Equal(t, 1, s.Len())

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 10*time.Millisecond)
}
