package usecase_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	datasetdto "onsetscore/internal/modules/dataset/dto"
	"onsetscore/internal/modules/onset/dto"
	onsetin "onsetscore/internal/modules/onset/port/in"
	onsetservice "onsetscore/internal/modules/onset/service"
	"onsetscore/internal/modules/onset/usecase"
	sessionout "onsetscore/internal/modules/session/adapter/out"
	sessiondto "onsetscore/internal/modules/session/dto"
	sessionservice "onsetscore/internal/modules/session/service"
	sessionusecase "onsetscore/internal/modules/session/usecase"
	"onsetscore/internal/platform/clock"
	apperrors "onsetscore/internal/platform/errors"
)

type stillClock struct{}

func (stillClock) Now() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

func (stillClock) AfterFunc(time.Duration, func()) clock.Timer { return noopTimer{} }

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

type fixedID struct{}

func (fixedID) New() string { return "sess-1" }

type fakeDatasets struct{}

func (fakeDatasets) ListDatasets(context.Context) ([]datasetdto.DatasetOutput, error) {
	return []datasetdto.DatasetOutput{{ID: "ds1", Participants: []string{"P1"}}}, nil
}

func (fakeDatasets) GetParticipant(_ context.Context, input datasetdto.ParticipantInput) (datasetdto.ParticipantOutput, error) {
	if input.DatasetID != "ds1" || input.ParticipantID != "P1" {
		return datasetdto.ParticipantOutput{}, apperrors.ErrNotFound
	}
	auto := 412.5
	return datasetdto.ParticipantOutput{ID: "P1", DatasetID: "ds1", Trials: []datasetdto.TrialOutput{
		{Number: 1, AutoOnsetMs: &auto},
		{Number: 2},
	}}, nil
}

func (fakeDatasets) Translate(_ context.Context, word string) (datasetdto.TranslationOutput, error) {
	return datasetdto.TranslationOutput{Word: word}, nil
}

func newInteractor(t *testing.T) (onsetin.Usecase, func() sessiondto.ScoreOutput) {
	t.Helper()
	workspace := t.TempDir()
	store := sessionservice.NewStore(sessionout.NewFileRepository(workspace), stillClock{}, fixedID{}, sessionservice.Options{Rand: rand.New(rand.NewPCG(1, 1))})
	sessions := sessionusecase.NewInteractor(store, sessionout.NewFileActivePointerStore(workspace), fakeDatasets{})
	if _, err := sessions.Start(context.Background(), sessiondto.StartInput{RaterID: "r1", DatasetID: "ds1"}); err != nil {
		t.Fatalf("start session: %v", err)
	}
	annotator := onsetservice.NewAnnotator(store, nil)
	uc := usecase.NewInteractor(annotator, sessions, fakeDatasets{})
	score := func() sessiondto.ScoreOutput {
		out, err := sessions.GetScore(context.Background(), "P1", 1)
		if err != nil {
			t.Fatalf("get score: %v", err)
		}
		return out
	}
	return uc, score
}

func TestApplyConfirmCopiesAutoOnset(t *testing.T) {
	t.Parallel()
	uc, score := newInteractor(t)
	out, err := uc.Apply(context.Background(), dto.ApplyInput{ParticipantID: "P1", TrialNumber: 1, Action: "confirm"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if out.OnsetMs == nil || *out.OnsetMs != 412.5 || out.OnsetStatus != "confirmed" {
		t.Fatalf("unexpected output %+v", out)
	}
	if got := score(); got.OnsetMs == nil || *got.OnsetMs != 412.5 {
		t.Fatalf("confirmed onset must be stored, got %+v", got)
	}
}

func TestApplyRejectsBadTargets(t *testing.T) {
	t.Parallel()
	uc, _ := newInteractor(t)
	ctx := context.Background()

	if _, err := uc.Apply(ctx, dto.ApplyInput{ParticipantID: "P1", TrialNumber: 2, Action: "confirm"}); !errors.Is(err, apperrors.ErrNoAutoOnset) {
		t.Fatalf("expected missing auto onset, got %v", err)
	}
	if _, err := uc.Apply(ctx, dto.ApplyInput{ParticipantID: "P1", TrialNumber: 9, Action: "clear"}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected unknown trial, got %v", err)
	}
	if _, err := uc.Apply(ctx, dto.ApplyInput{ParticipantID: "P1", TrialNumber: 1, Action: "guess"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid action, got %v", err)
	}
}

func TestSurfaceClickOnlyAppliesInManual(t *testing.T) {
	t.Parallel()
	uc, score := newInteractor(t)
	ctx := context.Background()

	if _, err := uc.Apply(ctx, dto.ApplyInput{ParticipantID: "P1", TrialNumber: 1, Action: "confirm"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	focused, err := uc.Focus(ctx, dto.TargetInput{ParticipantID: "P1", TrialNumber: 1})
	if err != nil || focused.ClickToSet {
		t.Fatalf("confirmed trial must not enable click placement, got %+v %v", focused, err)
	}
	out, err := uc.OnOnsetChanged(ctx, 100, "click")
	if err != nil || out.Applied {
		t.Fatalf("click must be ignored outside manual, got %+v", out)
	}
	if got := score(); *got.OnsetMs != 412.5 {
		t.Fatalf("ignored click must not change the onset, got %v", *got.OnsetMs)
	}

	if _, err := uc.ApplyFocused(ctx, "manual", nil); err != nil {
		t.Fatalf("manual: %v", err)
	}
	out, err = uc.OnOnsetChanged(ctx, 250, "click")
	if err != nil || !out.Applied || !out.ClickToSet {
		t.Fatalf("click in manual must apply, got %+v %v", out, err)
	}
	if got := score(); *got.OnsetMs != 250 || got.OnsetStatus != "manual" {
		t.Fatalf("unexpected stored score %+v", got)
	}
}
