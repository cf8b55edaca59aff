package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chartcode/internal/cache"
	"github.com/ppiankov/chartcode/internal/model"
	"github.com/ppiankov/chartcode/internal/worker"
)

var (
	waitMu     sync.Mutex
	waitDelays []time.Duration
)

func init() {
	// Record backoff delays instead of sleeping
	retryWaitFunc = func(ctx context.Context, d time.Duration) error {
		waitMu.Lock()
		waitDelays = append(waitDelays, d)
		waitMu.Unlock()
		return ctx.Err()
	}
}

func resetDelays() {
	waitMu.Lock()
	waitDelays = nil
	waitMu.Unlock()
}

func recordedDelays() []time.Duration {
	waitMu.Lock()
	defer waitMu.Unlock()
	return append([]time.Duration(nil), waitDelays...)
}

// fakeService returns scripted answers, one per call
type fakeService struct {
	calls   int32
	answers []fakeAnswer
}

type fakeAnswer struct {
	code  string
	found bool
	err   error
}

func (f *fakeService) System() string { return "fake" }

func (f *fakeService) Lookup(ctx context.Context, term string) (string, bool, error) {
	n := int(atomic.AddInt32(&f.calls, 1)) - 1
	if n >= len(f.answers) {
		n = len(f.answers) - 1
	}
	a := f.answers[n]
	return a.code, a.found, a.err
}

func TestRxNormClient_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rxcui.json", r.URL.Path)
		switch r.URL.Query().Get("name") {
		case "Metformin":
			_, _ = w.Write([]byte(`{"idGroup":{"name":"Metformin","rxnormId":["6809"]}}`))
		default:
			_, _ = w.Write([]byte(`{"idGroup":{"name":"Unobtainium"}}`))
		}
	}))
	defer server.Close()

	client := NewRxNormClient(server.URL+"/", server.Client())
	assert.Equal(t, SystemRxNorm, client.System())

	code, found, err := client.Lookup(context.Background(), "Metformin")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "6809", code)

	code, found, err = client.Lookup(context.Background(), "Unobtainium")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, code)

	_, found, err = client.Lookup(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestICD10Client_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/icd10cm/v3/search", r.URL.Path)
		assert.Equal(t, "code,name", r.URL.Query().Get("sf"))
		assert.Equal(t, "1", r.URL.Query().Get("maxList"))
		switch r.URL.Query().Get("terms") {
		case "Overweight":
			_, _ = w.Write([]byte(`[1,["E66.3"],null,[["E66.3","Overweight"]]]`))
		default:
			_, _ = w.Write([]byte(`[0,[],null,[]]`))
		}
	}))
	defer server.Close()

	client := NewICD10Client(server.URL, server.Client())

	code, found, err := client.Lookup(context.Background(), "Overweight")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "E66.3", code)

	_, found, err = client.Lookup(context.Background(), "Annual wellness visit")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{name: "server error", status: http.StatusInternalServerError, wantTransient: true},
		{name: "bad gateway", status: http.StatusBadGateway, wantTransient: true},
		{name: "rate limited", status: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request", status: http.StatusBadRequest, wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, _, err := NewRxNormClient(server.URL, server.Client()).Lookup(context.Background(), "aspirin")
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, IsTransient(err))
		})
	}
}

func TestWithRetry_RecoversFromTransientFailures(t *testing.T) {
	resetDelays()
	fake := &fakeService{answers: []fakeAnswer{
		{err: NewTransientError(errors.New("boom"), 503)},
		{err: NewTransientError(errors.New("boom"), 503)},
		{code: "I10", found: true},
	}}

	code, found, err := WithRetry(fake, DefaultRetryConfig()).Lookup(context.Background(), "hypertension")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "I10", code)
	assert.Equal(t, int32(3), atomic.LoadInt32(&fake.calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, recordedDelays())
}

func TestWithRetry_ExhaustedBecomesNotFound(t *testing.T) {
	resetDelays()
	fake := &fakeService{answers: []fakeAnswer{{err: NewTransientError(errors.New("timeout"), 0)}}}

	code, found, err := WithRetry(fake, DefaultRetryConfig()).Lookup(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, code)
	assert.Equal(t, int32(3), atomic.LoadInt32(&fake.calls))
	assert.Len(t, recordedDelays(), 2)
}

func TestWithRetry_NotFoundIsNotRetried(t *testing.T) {
	fake := &fakeService{answers: []fakeAnswer{{found: false}}}

	_, found, err := WithRetry(fake, DefaultRetryConfig()).Lookup(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))
}

func TestWithRetry_PermanentErrorIsNotRetried(t *testing.T) {
	fake := &fakeService{answers: []fakeAnswer{{err: errors.New("bad request")}}}

	_, found, err := WithRetry(fake, DefaultRetryConfig()).Lookup(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))
}

func TestWithRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeService{answers: []fakeAnswer{{err: NewTransientError(context.Canceled, 0)}}}

	_, found, err := WithRetry(fake, DefaultRetryConfig()).Lookup(ctx, "x")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))
}

func TestBackoff_Capped(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, time.Second, backoff(0, cfg))
	assert.Equal(t, 2*time.Second, backoff(1, cfg))
	assert.Equal(t, 8*time.Second, backoff(3, cfg))
	assert.Equal(t, 10*time.Second, backoff(4, cfg))
	assert.Equal(t, 10*time.Second, backoff(10, cfg))
}

func TestWithCache(t *testing.T) {
	fake := &fakeService{answers: []fakeAnswer{
		{code: "6809", found: true},
		{found: false},
	}}
	svc := WithCache(fake, cache.NewMemoryCache(time.Minute, time.Minute), 0)

	for i := 0; i < 3; i++ {
		code, found, err := svc.Lookup(context.Background(), "Metformin")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "6809", code)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))

	// NotFound is cached too
	for i := 0; i < 2; i++ {
		_, found, err := svc.Lookup(context.Background(), "unknown")
		require.NoError(t, err)
		assert.False(t, found)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.calls))
}

func TestWithCache_DoesNotCacheErrors(t *testing.T) {
	fake := &fakeService{answers: []fakeAnswer{
		{err: NewTransientError(errors.New("down"), 503)},
		{code: "I10", found: true},
	}}
	svc := WithCache(fake, cache.NewMemoryCache(time.Minute, time.Minute), 0)

	_, _, err := svc.Lookup(context.Background(), "hypertension")
	require.Error(t, err)

	code, found, err := svc.Lookup(context.Background(), "hypertension")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "I10", code)
}

func TestWithRateLimit_CancelledWait(t *testing.T) {
	limiter := worker.NewLimiter(0.001, 1)
	fake := &fakeService{answers: []fakeAnswer{{code: "1", found: true}}}
	svc := WithRateLimit(fake, limiter)

	_, _, err := svc.Lookup(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = svc.Lookup(ctx, "b")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))
}

func TestNew_DecoratedSet(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch r.URL.Path {
		case "/rx/rxcui.json":
			_, _ = w.Write([]byte(`{"idGroup":{"rxnormId":["29046"]}}`))
		case "/ct/icd10cm/v3/search":
			_, _ = w.Write([]byte(`[1,["I10"],null,[["I10","Essential (primary) hypertension"]]]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := model.DefaultConfig().Lookup
	cfg.RxNormBaseURL = server.URL + "/rx"
	cfg.ICD10BaseURL = server.URL + "/ct"
	cfg.RequestsPerSecond = 0

	set := New(cfg, server.Client())

	code, found, err := set.For(model.FactKindMedication).Lookup(context.Background(), "Lisinopril")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "29046", code)

	code, found, err = set.For(model.FactKindCondition).Lookup(context.Background(), "Hypertension")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "I10", code)

	// second lookup is served from the answer cache
	_, _, _ = set.For(model.FactKindCondition).Lookup(context.Background(), "hypertension")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	assert.Nil(t, set.For(model.FactKind("procedure")))
	assert.Equal(t, SystemRxNorm, SystemFor(model.FactKindMedication))
	assert.Equal(t, SystemICD10, SystemFor(model.FactKindCondition))
}
