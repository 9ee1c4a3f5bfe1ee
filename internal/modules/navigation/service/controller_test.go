package service_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	datasetdomain "onsetscore/internal/modules/dataset/domain"
	"onsetscore/internal/modules/navigation/domain"
	"onsetscore/internal/modules/navigation/service"
	sessiondomain "onsetscore/internal/modules/session/domain"
	sessionservice "onsetscore/internal/modules/session/service"
	"onsetscore/internal/platform/clock"
	apperrors "onsetscore/internal/platform/errors"
	"onsetscore/internal/platform/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const datasetID = "ds"

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

type manualClock struct{}

func (manualClock) Now() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

func (manualClock) AfterFunc(time.Duration, func()) clock.Timer { return noopTimer{} }

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) New() string { return fmt.Sprintf("session-%d", s.n.Add(1)) }

type memoryRepo struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (r *memoryRepo) Save(_ context.Context, s *sessiondomain.Session) error {
	raw, err := sessiondomain.Encode(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.docs == nil {
		r.docs = map[string][]byte{}
	}
	r.docs[s.RaterID+"/"+s.DatasetID] = raw
	return nil
}

func (r *memoryRepo) Load(_ context.Context, raterID, datasetID string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	raw, ok := r.docs[raterID+"/"+datasetID]
	r.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return sessiondomain.Decode(raw)
}

type fakeLoader struct {
	mu           sync.Mutex
	participants map[string]*datasetdomain.Participant
	cache        map[string]bool
	neverCache   map[string]bool
	gates        map[string]chan struct{}
	started      chan string
}

func newFakeLoader(participants ...*datasetdomain.Participant) *fakeLoader {
	l := &fakeLoader{
		participants: map[string]*datasetdomain.Participant{},
		cache:        map[string]bool{},
		neverCache:   map[string]bool{},
		gates:        map[string]chan struct{}{},
		started:      make(chan string, 16),
	}
	for _, p := range participants {
		l.participants[p.ID] = p
	}
	return l
}

func (l *fakeLoader) Dataset(_ context.Context, id string) (datasetdomain.Dataset, error) {
	ids := make([]string, 0, len(l.participants))
	for pid := range l.participants {
		ids = append(ids, pid)
	}
	sort.Strings(ids)
	return datasetdomain.Dataset{ID: id, TestType: datasetdomain.TestTypeTranslation, Participants: ids}, nil
}

func (l *fakeLoader) LoadParticipant(ctx context.Context, _ string, pid string) (*datasetdomain.Participant, error) {
	l.mu.Lock()
	gate := l.gates[pid]
	l.mu.Unlock()
	if gate != nil {
		l.started <- pid
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.participants[pid]
	if !ok {
		return nil, fmt.Errorf("participant %s: %w", pid, apperrors.ErrNotFound)
	}
	if !l.neverCache[pid] {
		l.cache[pid] = true
	}
	return p, nil
}

func (l *fakeLoader) Cached(_ string, pid string) (*datasetdomain.Participant, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.cache[pid] {
		return nil, false
	}
	return l.participants[pid], true
}

type recordingRenderer struct {
	mu    sync.Mutex
	views []domain.View
}

func (r *recordingRenderer) OnNavigate(v domain.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recordingRenderer) all() []domain.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.View(nil), r.views...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.CompletionEvent
	err    error
}

func (n *recordingNotifier) ParticipantComplete(_ context.Context, e domain.CompletionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type chanPrefetcher struct {
	ctxs chan context.Context
}

func (p *chanPrefetcher) Prefetch(ctx context.Context, _ datasetdomain.Dataset, _ *datasetdomain.Participant) error {
	p.ctxs <- ctx
	return nil
}

func participant(id string, n int) *datasetdomain.Participant {
	p := &datasetdomain.Participant{ID: id, DatasetID: datasetID}
	for i := 1; i <= n; i++ {
		p.Trials = append(p.Trials, datasetdomain.Trial{Number: i, Word: fmt.Sprintf("w%d", i)})
	}
	return p
}

type harness struct {
	ctrl     *service.Controller
	store    *sessionservice.Store
	loader   *fakeLoader
	renderer *recordingRenderer
	notifier *recordingNotifier
	metrics  *metrics.Registry
}

func newHarness(t *testing.T, prefetcher *chanPrefetcher, participants ...*datasetdomain.Participant) *harness {
	t.Helper()
	ctx := context.Background()
	store := sessionservice.NewStore(&memoryRepo{}, manualClock{}, &seqIDs{}, sessionservice.Options{Rand: rand.New(rand.NewPCG(7, 11))})
	pids := make([]string, 0, len(participants))
	for _, p := range participants {
		pids = append(pids, p.ID)
	}
	if _, err := store.Create(ctx, "r1", datasetID, pids); err != nil {
		t.Fatalf("create session: %v", err)
	}
	h := &harness{
		store:    store,
		loader:   newFakeLoader(participants...),
		renderer: &recordingRenderer{},
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
	}
	deps := service.Deps{
		Loader:   h.loader,
		Store:    store,
		Renderer: h.renderer,
		Notifier: h.notifier,
		Metrics:  h.metrics,
	}
	if prefetcher != nil {
		deps.Prefetcher = prefetcher
	}
	h.ctrl = service.NewController(deps)
	t.Cleanup(func() {
		h.ctrl.Close()
		_ = store.Close(ctx)
	})
	return h
}

func (h *harness) scoreAt(t *testing.T, pid string, shuffled ...int) {
	t.Helper()
	p := h.loader.participants[pid]
	order, err := h.store.ShuffleOrder(pid, p.TrialCount())
	if err != nil {
		t.Fatalf("shuffle order: %v", err)
	}
	acc := sessiondomain.AccuracyCorrect
	for _, idx := range shuffled {
		if _, err := h.store.SetScore(pid, p.Trials[order[idx]].Number, sessiondomain.ScoreUpdate{Accuracy: &acc}); err != nil {
			t.Fatalf("score: %v", err)
		}
	}
}

func (h *harness) scoreAll(t *testing.T, pid string) {
	t.Helper()
	n := h.loader.participants[pid].TrialCount()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	h.scoreAt(t, pid, idx...)
}

func (h *harness) position(t *testing.T) sessiondomain.Position {
	t.Helper()
	pos, err := h.store.Position()
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	return pos
}

func TestSingleParticipantBoundaryAndCompletionOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, participant("P01", 24))
	ctx := context.Background()

	if err := h.ctrl.Navigate(ctx, 0, 0); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	for i := 1; i < 24; i++ {
		moved, err := h.ctrl.Next(ctx)
		if err != nil || !moved {
			t.Fatalf("next %d: moved=%v err=%v", i, moved, err)
		}
	}
	if pos := h.position(t); pos != (sessiondomain.Position{ParticipantIndex: 0, TrialIndex: 23}) {
		t.Fatalf("unexpected position %+v", pos)
	}

	seen := map[int]bool{}
	for _, v := range h.renderer.all() {
		seen[v.Trial.Number] = true
		if v.TrialCount() != 24 {
			t.Fatalf("trial count must come from the record set, got %d", v.TrialCount())
		}
	}
	if len(seen) != 24 {
		t.Fatalf("shuffled traversal must visit every trial once, saw %d", len(seen))
	}

	moved, err := h.ctrl.Next(ctx)
	if err != nil || moved {
		t.Fatalf("next past the end: moved=%v err=%v", moved, err)
	}
	if h.notifier.count() != 0 {
		t.Fatalf("incomplete participant must not signal")
	}

	h.scoreAll(t, "P01")
	if moved, _ := h.ctrl.Next(ctx); moved {
		t.Fatalf("single participant has nowhere to go")
	}
	if h.notifier.count() != 1 {
		t.Fatalf("expected one completion signal, got %d", h.notifier.count())
	}

	for i := 0; i < 3; i++ {
		if moved, _ := h.ctrl.PrevParticipant(ctx); moved {
			t.Fatalf("prev participant must be bounded")
		}
		if moved, _ := h.ctrl.NextParticipant(ctx); moved {
			t.Fatalf("next participant must be bounded")
		}
		if moved, err := h.ctrl.Prev(ctx); err != nil || !moved {
			t.Fatalf("prev: moved=%v err=%v", moved, err)
		}
		if moved, err := h.ctrl.Next(ctx); err != nil || !moved {
			t.Fatalf("next: moved=%v err=%v", moved, err)
		}
		if moved, _ := h.ctrl.Next(ctx); moved {
			t.Fatalf("last trial must stay put")
		}
	}
	if h.notifier.count() != 1 {
		t.Fatalf("completion must be signalled once, got %d", h.notifier.count())
	}
	event := h.notifier.events[0]
	if event.ParticipantID != "P01" || event.RaterID != "r1" || len(event.Trials) != 24 {
		t.Fatalf("unexpected event %+v", event)
	}
	for _, ts := range event.Trials {
		if ts.Score.Accuracy != sessiondomain.AccuracyCorrect {
			t.Fatalf("event must carry scores, got %+v", ts)
		}
	}
}

func TestCompletionSignalSurvivesNotifierFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, participant("A", 2), participant("B", 2))
	h.notifier.err = errors.New("exporter down")
	ctx := context.Background()

	if err := h.ctrl.Navigate(ctx, 0, 1); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	h.scoreAll(t, "A")
	moved, err := h.ctrl.Next(ctx)
	if err != nil || !moved {
		t.Fatalf("crossing must still happen: moved=%v err=%v", moved, err)
	}
	if pos := h.position(t); pos != (sessiondomain.Position{ParticipantIndex: 1, TrialIndex: 0}) {
		t.Fatalf("unexpected position %+v", pos)
	}
	if _, err := h.ctrl.Prev(ctx); err != nil {
		t.Fatalf("prev: %v", err)
	}
	if _, err := h.ctrl.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	if h.notifier.count() != 1 {
		t.Fatalf("signal is recorded before delivery, got %d attempts", h.notifier.count())
	}
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, participant("A", 3), participant("B", 3))
	gate := make(chan struct{})
	h.loader.gates["A"] = gate
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Navigate(ctx, 0, 0) }()
	if pid := <-h.loader.started; pid != "A" {
		t.Fatalf("expected A to start loading, got %s", pid)
	}

	if err := h.ctrl.Navigate(ctx, 1, 0); err != nil {
		t.Fatalf("navigate to B: %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("superseded navigation must end quietly, got %v", err)
	}

	views := h.renderer.all()
	if len(views) != 1 || views[0].Participant.ID != "B" {
		t.Fatalf("only B may reach the renderer, got %+v", views)
	}
	if pos := h.position(t); pos != (sessiondomain.Position{ParticipantIndex: 1, TrialIndex: 0}) {
		t.Fatalf("stale load must not move the cursor, got %+v", pos)
	}
	if got := testutil.ToFloat64(h.metrics.StaleLoadsDiscarded); got != 1 {
		t.Fatalf("expected one discarded load, got %v", got)
	}
	if cur, ok := h.ctrl.Current(); !ok || cur.Participant.ID != "B" {
		t.Fatalf("current view must be B, got %+v", cur)
	}
}

func TestPrevCrossesIntoPreviousParticipantsLastTrial(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, participant("A", 3), participant("B", 2))
	ctx := context.Background()

	if err := h.ctrl.Navigate(ctx, 1, 0); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	moved, err := h.ctrl.Prev(ctx)
	if err != nil || !moved {
		t.Fatalf("prev: moved=%v err=%v", moved, err)
	}
	if pos := h.position(t); pos != (sessiondomain.Position{ParticipantIndex: 0, TrialIndex: 2}) {
		t.Fatalf("expected A's last trial, got %+v", pos)
	}
	if err := h.ctrl.Navigate(ctx, 0, 0); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if moved, _ := h.ctrl.Prev(ctx); moved {
		t.Fatalf("prev at the very start must stay put")
	}
}

func TestJumpToUnscoredWrapsAroundToCursorPrefix(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, participant("A", 3), participant("B", 3))
	ctx := context.Background()
	if _, err := h.loader.LoadParticipant(ctx, datasetID, "B"); err != nil {
		t.Fatalf("preload: %v", err)
	}

	h.scoreAt(t, "A", 0)
	h.scoreAll(t, "B")
	h.scoreAt(t, "A", 2)
	if err := h.ctrl.Navigate(ctx, 0, 0); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	found, err := h.ctrl.JumpToUnscored(ctx)
	if err != nil || !found {
		t.Fatalf("jump forward: found=%v err=%v", found, err)
	}
	if pos := h.position(t); pos != (sessiondomain.Position{ParticipantIndex: 0, TrialIndex: 1}) {
		t.Fatalf("expected forward hit at (0,1), got %+v", pos)
	}

	h.scoreAt(t, "A", 1)
	if err := h.ctrl.Navigate(ctx, 1, 2); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	found, err = h.ctrl.JumpToUnscored(ctx)
	if err != nil || found {
		t.Fatalf("everything scored: found=%v err=%v", found, err)
	}

	acc := sessiondomain.AccuracyUnset
	order, _ := h.store.ShuffleOrder("B", 3)
	b := h.loader.participants["B"]
	if _, err := h.store.SetScore("B", b.Trials[order[0]].Number, sessiondomain.ScoreUpdate{Accuracy: &acc}); err != nil {
		t.Fatalf("unscore: %v", err)
	}
	found, err = h.ctrl.JumpToUnscored(ctx)
	if err != nil || !found {
		t.Fatalf("jump with wrap: found=%v err=%v", found, err)
	}
	if pos := h.position(t); pos != (sessiondomain.Position{ParticipantIndex: 1, TrialIndex: 0}) {
		t.Fatalf("expected wrapped hit at (1,0), got %+v", pos)
	}
}

func TestJumpToUnscoredStopsAtUncachedParticipant(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, participant("A", 2), participant("B", 2), participant("C", 2))
	h.loader.neverCache["B"] = true
	ctx := context.Background()

	h.scoreAll(t, "A")
	if err := h.ctrl.Navigate(ctx, 0, 0); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	found, err := h.ctrl.JumpToUnscored(ctx)
	if err != nil || !found {
		t.Fatalf("jump: found=%v err=%v", found, err)
	}
	if pos := h.position(t); pos != (sessiondomain.Position{ParticipantIndex: 1, TrialIndex: 0}) {
		t.Fatalf("uncached participant must be entered at trial 0, got %+v", pos)
	}
}

func TestNavigateRejectsOutOfRangeCursor(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, participant("A", 3))
	ctx := context.Background()
	if err := h.ctrl.Navigate(ctx, 1, 0); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("participant out of range: %v", err)
	}
	if err := h.ctrl.Navigate(ctx, 0, 3); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("trial out of range: %v", err)
	}
	if err := h.ctrl.Navigate(ctx, 0, -1); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("negative trial: %v", err)
	}
	if len(h.renderer.all()) != 0 {
		t.Fatalf("rejected navigation must not render")
	}
}

func TestNavigateReportsLoadFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, participant("A", 3))
	delete(h.loader.participants, "A")
	if err := h.ctrl.Navigate(context.Background(), 0, 0); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResumeClampsToTrialCount(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, participant("A", 3))
	if err := h.store.SetPosition(0, 7); err != nil {
		t.Fatalf("set position: %v", err)
	}
	if err := h.ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if pos := h.position(t); pos != (sessiondomain.Position{ParticipantIndex: 0, TrialIndex: 2}) {
		t.Fatalf("expected clamped cursor, got %+v", pos)
	}
}

func TestPrefetchContextEndsWithNavigation(t *testing.T) {
	t.Parallel()
	pf := &chanPrefetcher{ctxs: make(chan context.Context, 4)}
	h := newHarness(t, pf, participant("A", 3))
	ctx := context.Background()

	if err := h.ctrl.Navigate(ctx, 0, 0); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	first := <-pf.ctxs
	if err := h.ctrl.Navigate(ctx, 0, 1); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	second := <-pf.ctxs
	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatalf("superseded prefetch context must be cancelled")
	}
	if second.Err() != nil {
		t.Fatalf("current prefetch context must stay live")
	}
}
