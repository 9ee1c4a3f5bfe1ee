package domain_test

import (
	"errors"
	"testing"

	"onsetscore/internal/modules/onset/domain"
	sessiondomain "onsetscore/internal/modules/session/domain"
	apperrors "onsetscore/internal/platform/errors"
)

func ptr[T any](v T) *T { return &v }

func TestPlanCoversEveryAction(t *testing.T) {
	t.Parallel()
	withAuto := domain.Target{ParticipantID: "P1", TrialNumber: 3, AutoOnsetMs: ptr(612.0)}
	cases := []struct {
		action     domain.Action
		value      *float64
		wantStatus sessiondomain.OnsetStatus
		wantOnset  *float64
		wantClear  bool
	}{
		{domain.ActionConfirm, ptr(1.0), sessiondomain.OnsetConfirmed, ptr(612.0), false},
		{domain.ActionCorrect, ptr(700.0), sessiondomain.OnsetCorrected, ptr(700.0), false},
		{domain.ActionManual, ptr(820.0), sessiondomain.OnsetManual, ptr(820.0), false},
		{domain.ActionManual, nil, sessiondomain.OnsetManual, nil, false},
		{domain.ActionNoSpeech, nil, sessiondomain.OnsetNoSpeech, nil, true},
		{domain.ActionClear, nil, sessiondomain.OnsetUnset, nil, true},
	}
	for _, tc := range cases {
		u, err := domain.Plan(tc.action, withAuto, tc.value)
		if err != nil {
			t.Fatalf("%s: %v", tc.action, err)
		}
		if *u.OnsetStatus != tc.wantStatus || u.ClearOnset != tc.wantClear {
			t.Fatalf("%s: unexpected update %+v", tc.action, u)
		}
		if (u.OnsetMs == nil) != (tc.wantOnset == nil) || (u.OnsetMs != nil && *u.OnsetMs != *tc.wantOnset) {
			t.Fatalf("%s: onset %v, want %v", tc.action, u.OnsetMs, tc.wantOnset)
		}
	}
}

func TestPlanRejectsImpossibleRequests(t *testing.T) {
	t.Parallel()
	noAuto := domain.Target{ParticipantID: "P1", TrialNumber: 1}
	if _, err := domain.Plan(domain.ActionConfirm, noAuto, nil); !errors.Is(err, apperrors.ErrNoAutoOnset) {
		t.Fatalf("confirm without auto onset: %v", err)
	}
	if _, err := domain.Plan(domain.ActionCorrect, noAuto, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("correct without value: %v", err)
	}
	if _, err := domain.Plan(domain.ActionManual, noAuto, ptr(-5.0)); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("negative onset: %v", err)
	}
	if _, err := domain.ParseAction("guess"); err == nil {
		t.Fatalf("unknown action must fail")
	}
	if a, err := domain.ParseAction("no-speech"); err != nil || a != domain.ActionNoSpeech {
		t.Fatalf("dashed spelling: %v %v", a, err)
	}
}

func TestClickToSetOnlyInManual(t *testing.T) {
	t.Parallel()
	for _, st := range []sessiondomain.OnsetStatus{sessiondomain.OnsetUnset, sessiondomain.OnsetConfirmed, sessiondomain.OnsetCorrected, sessiondomain.OnsetNoSpeech} {
		if domain.ClickToSet(st) {
			t.Fatalf("%s must not enable click-to-set", st)
		}
	}
	if !domain.ClickToSet(sessiondomain.OnsetManual) {
		t.Fatalf("manual must enable click-to-set")
	}
}
