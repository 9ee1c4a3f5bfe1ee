package service_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"onsetscore/internal/modules/dataset/domain"
	"onsetscore/internal/modules/dataset/service"
	apperrors "onsetscore/internal/platform/errors"
	"onsetscore/internal/platform/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testIndex = `{"datasets":[{"id":"ds1","label":"DS1","test_type":"translation","timing":"T1",
"exhibit_path":"audio/ds1","record_path":"records/ds1","participants":["P1","P2"]}]}`

type fakeSource struct {
	mu          sync.Mutex
	indexCalls  atomic.Int32
	recordCalls atomic.Int32
	failIndex   bool
	records     map[string]string
	gate        chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{records: map[string]string{
		"P1": "trial,word,recording_file\n2,perro,P1_2_perro.wav\n1,casa,P1_1_casa.wav\n",
		"P2": "trial,word\n1,sol\n",
	}}
}

func (f *fakeSource) ReadIndex(context.Context) ([]byte, error) {
	f.indexCalls.Add(1)
	f.mu.Lock()
	fail := f.failIndex
	f.mu.Unlock()
	if fail {
		return nil, errors.New("index unavailable")
	}
	return []byte(testIndex), nil
}

func (f *fakeSource) ReadRecordSet(_ context.Context, _ domain.Dataset, participantID string) ([]byte, error) {
	f.recordCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	doc, ok := f.records[participantID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return []byte(doc), nil
}

func TestLoaderCachesParticipants(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	reg := metrics.New()
	loader := service.NewLoader(src, nil, reg)
	ctx := context.Background()

	p, err := loader.LoadParticipant(ctx, "ds1", "P1")
	if err != nil {
		t.Fatalf("load participant: %v", err)
	}
	if p.TrialCount() != 2 || p.Trials[0].Number != 1 || p.Trials[0].ExhibitName != "P1_1_casa.wav" {
		t.Fatalf("unexpected participant %+v", p)
	}
	again, err := loader.LoadParticipant(ctx, "ds1", "P1")
	if err != nil {
		t.Fatalf("load participant again: %v", err)
	}
	if again != p {
		t.Fatalf("expected the cached participant to be shared")
	}
	if src.recordCalls.Load() != 1 || src.indexCalls.Load() != 1 {
		t.Fatalf("expected one fetch each, got records=%d index=%d", src.recordCalls.Load(), src.indexCalls.Load())
	}
	if testutil.ToFloat64(reg.RecordCacheHits) != 1 || testutil.ToFloat64(reg.RecordCacheMisses) != 1 {
		t.Fatalf("unexpected cache metrics")
	}

	loader.Evict("ds1", "P1")
	if _, ok := loader.Cached("ds1", "P1"); ok {
		t.Fatalf("evicted participant still cached")
	}
	if _, err := loader.LoadParticipant(ctx, "ds1", "P1"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if src.recordCalls.Load() != 2 {
		t.Fatalf("expected refetch after evict, got %d", src.recordCalls.Load())
	}

	if _, err := loader.LoadParticipant(ctx, "ds1", "P2"); err != nil {
		t.Fatalf("load P2: %v", err)
	}
	loader.ClearCache()
	if _, ok := loader.Cached("ds1", "P2"); ok {
		t.Fatalf("clear cache left P2")
	}
}

func TestLoaderSharesConcurrentFetches(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	src.gate = make(chan struct{})
	loader := service.NewLoader(src, nil, nil)
	ctx := context.Background()
	if _, err := loader.LoadIndex(ctx); err != nil {
		t.Fatalf("load index: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]*domain.Participant, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := loader.LoadParticipant(ctx, "ds1", "P1")
			if err != nil {
				t.Errorf("load: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	for src.recordCalls.Load() == 0 {
		runtime.Gosched()
	}
	close(src.gate)
	wg.Wait()
	for _, p := range results {
		if p != results[0] {
			t.Fatalf("concurrent loads returned different participants")
		}
	}
	if n := src.recordCalls.Load(); n != 1 {
		t.Fatalf("expected a single shared fetch, got %d", n)
	}
}

func TestLoaderFailuresAreNotCached(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	src.failIndex = true
	loader := service.NewLoader(src, nil, nil)
	ctx := context.Background()

	if _, err := loader.LoadIndex(ctx); err == nil {
		t.Fatalf("expected index failure")
	}
	src.mu.Lock()
	src.failIndex = false
	src.mu.Unlock()
	if _, err := loader.LoadIndex(ctx); err != nil {
		t.Fatalf("index must be refetched after failure: %v", err)
	}

	if _, err := loader.LoadParticipant(ctx, "ds1", "P9"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unassigned participant must be not found, got %v", err)
	}
	if _, err := loader.LoadParticipant(ctx, "nope", "P1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unknown dataset must be not found, got %v", err)
	}
	delete(src.records, "P2")
	if _, err := loader.LoadParticipant(ctx, "ds1", "P2"); err == nil {
		t.Fatalf("record fetch failure must reject the load")
	}
	if _, ok := loader.Cached("ds1", "P2"); ok {
		t.Fatalf("failed load must not be cached")
	}
}

func TestLoaderRejectsParticipantWithoutTrials(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	src.records["P2"] = "trial,word\n"
	loader := service.NewLoader(src, nil, nil)

	if _, err := loader.LoadParticipant(context.Background(), "ds1", "P2"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("empty record set must be invalid input, got %v", err)
	}
	if _, ok := loader.Cached("ds1", "P2"); ok {
		t.Fatalf("empty participant must not be cached")
	}
}
