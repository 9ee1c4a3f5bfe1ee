package domain_test

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"onsetscore/internal/modules/session/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestShuffleIsPermutation(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(1, 2))
	for _, n := range []int{0, 1, 2, 24, 100} {
		order := domain.Shuffle(n, rng)
		if !domain.IsPermutation(order, n) {
			t.Fatalf("shuffle(%d) not a permutation: %v", n, order)
		}
		sorted := slices.Clone(order)
		slices.Sort(sorted)
		for i, v := range sorted {
			if v != i {
				t.Fatalf("sorted order mismatch at %d: %v", i, sorted)
			}
		}
	}
	if domain.IsPermutation([]int{0, 0, 1}, 3) || domain.IsPermutation([]int{0, 1}, 3) || domain.IsPermutation([]int{0, 3, 1}, 3) {
		t.Fatalf("invalid orders accepted")
	}
}

func TestShuffleIsUnbiased(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))
	counts := map[[3]int]int{}
	const rounds = 60000
	for range rounds {
		o := domain.Shuffle(3, rng)
		counts[[3]int{o[0], o[1], o[2]}]++
	}
	if len(counts) != 6 {
		t.Fatalf("expected all 6 orderings, got %d", len(counts))
	}
	for k, c := range counts {
		if c < rounds/6*9/10 || c > rounds/6*11/10 {
			t.Fatalf("ordering %v drawn %d times out of %d", k, c, rounds)
		}
	}
}

func TestMergeKeepsUntouchedFields(t *testing.T) {
	t.Parallel()
	rec := domain.ScoreRecord{}.Merge(domain.ScoreUpdate{OnsetMs: ptr(512.0), OnsetStatus: ptr(domain.OnsetCorrected)}, t0)
	rec = rec.Merge(domain.ScoreUpdate{Note: ptr("hesitation")}, t0.Add(time.Second))
	rec = rec.Merge(domain.ScoreUpdate{Accuracy: ptr(domain.AccuracyCorrect)}, t0.Add(2*time.Second))

	want := domain.ScoreRecord{
		Accuracy:    domain.AccuracyCorrect,
		OnsetMs:     ptr(512.0),
		OnsetStatus: domain.OnsetCorrected,
		Note:        "hesitation",
		UpdatedAt:   t0.Add(2 * time.Second),
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Fatalf("merged record mismatch (-want +got):\n%s", diff)
	}
}

func TestNoResponseForcesNoSpeech(t *testing.T) {
	t.Parallel()
	priors := []domain.ScoreRecord{
		{},
		{OnsetStatus: domain.OnsetConfirmed, OnsetMs: ptr(300.0)},
		{OnsetStatus: domain.OnsetCorrected, OnsetMs: ptr(0.0)},
		{OnsetStatus: domain.OnsetManual, OnsetMs: ptr(812.0), Accuracy: domain.AccuracyCorrect},
		{OnsetStatus: domain.OnsetNoSpeech},
	}
	for _, prior := range priors {
		got := prior.Merge(domain.ScoreUpdate{Accuracy: ptr(domain.AccuracyNoResponse)}, t0)
		if got.OnsetStatus != domain.OnsetNoSpeech || got.OnsetMs != nil {
			t.Fatalf("prior %+v: expected no_speech without onset, got %+v", prior, got)
		}
		// an explicit onset action afterwards still moves the state
		again := got.Merge(domain.ScoreUpdate{OnsetMs: ptr(120.0), OnsetStatus: ptr(domain.OnsetManual)}, t0)
		if again.OnsetStatus != domain.OnsetManual || again.OnsetMs == nil || *again.OnsetMs != 120 {
			t.Fatalf("onset action after no_response was dropped: %+v", again)
		}
		if again.Accuracy != domain.AccuracyNoResponse {
			t.Fatalf("onset action must not touch accuracy: %+v", again)
		}
	}
}

func TestScoreUpdateValidate(t *testing.T) {
	t.Parallel()
	bad := []domain.ScoreUpdate{
		{Accuracy: ptr(domain.Accuracy("maybe"))},
		{OnsetStatus: ptr(domain.OnsetStatus("guessed"))},
		{OnsetMs: ptr(10.0), ClearOnset: true},
		{OnsetMs: ptr(-1.0)},
	}
	for _, u := range bad {
		if err := u.Validate(); err == nil {
			t.Fatalf("expected %+v to be rejected", u)
		}
	}
	if st, err := domain.ParseOnsetStatus("unset"); err != nil || st != domain.OnsetUnset {
		t.Fatalf("parse unset: %v %v", st, err)
	}
}

func TestParticipantCompleteness(t *testing.T) {
	t.Parallel()
	s, err := domain.New("s1", "r1", "ds1", []string{"P1", "P#2"}, t0)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	trials := []int{1, 2, 3}
	for _, n := range trials {
		s.ApplyScore("P1", n, domain.ScoreUpdate{Accuracy: ptr(domain.AccuracyCorrect)}, t0)
	}
	if !s.IsParticipantComplete("P1", trials) {
		t.Fatalf("expected complete")
	}
	if s.IsParticipantComplete("P1", append(trials, 4)) {
		t.Fatalf("an extra unscored trial must make it incomplete")
	}
	s.ApplyScore("P1", 4, domain.ScoreUpdate{Note: ptr("note only")}, t0)
	if s.IsParticipantComplete("P1", append(trials, 4)) {
		t.Fatalf("a note-only record does not count as scored")
	}
	s.ApplyScore("P1", 4, domain.ScoreUpdate{Accuracy: ptr(domain.AccuracyIncorrect)}, t0)
	if !s.IsParticipantComplete("P1", append(trials, 4)) {
		t.Fatalf("scoring the last trial must flip back to complete")
	}

	s.ApplyScore("P#2", 1, domain.ScoreUpdate{Accuracy: ptr(domain.AccuracyNoResponse)}, t0)
	if s.ParticipantScored("P1") != 4 || s.ParticipantScored("P#2") != 1 || s.TotalScored() != 5 {
		t.Fatalf("unexpected counts P1=%d P#2=%d total=%d", s.ParticipantScored("P1"), s.ParticipantScored("P#2"), s.TotalScored())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	s, err := domain.New("s1", "r1", "ds1", []string{"P1", "P2"}, t0)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.ApplyScore("P1", 3, domain.ScoreUpdate{Accuracy: ptr(domain.AccuracySelfCorrected), OnsetMs: ptr(0.0), OnsetStatus: ptr(domain.OnsetManual)}, t0)
	s.ShuffleOrders["P1"] = []int{2, 0, 1}
	s.Position = domain.Position{ParticipantIndex: 0, TrialIndex: 2}
	s.CompletionSignaled["P1"] = t0
	s.LastSaved = t0

	payload, err := domain.Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := domain.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMigratesOlderDocuments(t *testing.T) {
	t.Parallel()
	v1 := []byte(`{"schema_version":1,"rater_id":"r1","dataset_id":"ds1",
		"assigned_participants":["P1"],"position":{"participant_index":4,"trial_index":2},
		"scores":{"P1#1":{"accuracy":"correct","updated_at":"2026-03-01T09:00:00Z"}},
		"last_saved":"2026-03-01T09:00:00Z"}`)
	s, err := domain.Decode(v1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.SchemaVersion != domain.SchemaVersion || s.ShuffleOrders == nil || s.CompletionSignaled == nil {
		t.Fatalf("missing fields not migrated: %+v", s)
	}
	if s.Position != (domain.Position{}) {
		t.Fatalf("out of range cursor must reset, got %+v", s.Position)
	}
	if !s.IsScored("P1", 1) {
		t.Fatalf("scores lost in migration")
	}
	if _, err := domain.Decode([]byte(`{"schema_version":99,"rater_id":"r","dataset_id":"d","assigned_participants":["P1"]}`)); err == nil {
		t.Fatalf("future schema must be rejected")
	}
	if _, err := domain.Decode([]byte(`{"rater_id":"r"}`)); err == nil {
		t.Fatalf("document without dataset must be rejected")
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	s, _ := domain.New("s1", "r1", "ds1", []string{"P1"}, t0)
	s.ShuffleOrders["P1"] = []int{1, 0}
	s.ApplyScore("P1", 1, domain.ScoreUpdate{OnsetMs: ptr(5.0)}, t0)
	c := s.Clone()
	c.ShuffleOrders["P1"][0] = 9
	*c.Scores["P1#1"].OnsetMs = 99
	c.AssignedParticipants[0] = "X"
	if s.ShuffleOrders["P1"][0] != 1 || *s.Scores["P1#1"].OnsetMs != 5 || s.AssignedParticipants[0] != "P1" {
		t.Fatalf("clone shares state with original")
	}
}
