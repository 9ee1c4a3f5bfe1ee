package domain

import (
	"fmt"

	sessiondomain "onsetscore/internal/modules/session/domain"
	apperrors "onsetscore/internal/platform/errors"
)

// Action is an explicit rater request to move a trial's onset to a status.
// Every status is reachable from every other one.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCorrect  Action = "correct"
	ActionManual   Action = "manual"
	ActionNoSpeech Action = "no_speech"
	ActionClear    Action = "clear"
)

func ParseAction(v string) (Action, error) {
	switch a := Action(v); a {
	case ActionConfirm, ActionCorrect, ActionManual, ActionNoSpeech, ActionClear:
		return a, nil
	case "no-speech":
		return ActionNoSpeech, nil
	default:
		return "", fmt.Errorf("unknown onset action %q: %w", v, apperrors.ErrInvalidInput)
	}
}

// Status is the onset status the action leads to.
func (a Action) Status() sessiondomain.OnsetStatus {
	switch a {
	case ActionConfirm:
		return sessiondomain.OnsetConfirmed
	case ActionCorrect:
		return sessiondomain.OnsetCorrected
	case ActionManual:
		return sessiondomain.OnsetManual
	case ActionNoSpeech:
		return sessiondomain.OnsetNoSpeech
	default:
		return sessiondomain.OnsetUnset
	}
}

// Source says how the surface produced an onset value.
type Source string

const (
	SourceDrag  Source = "drag"
	SourceClick Source = "click"
)

func ParseSource(v string) (Source, error) {
	switch s := Source(v); s {
	case SourceDrag, SourceClick:
		return s, nil
	default:
		return "", fmt.Errorf("unknown onset source %q: %w", v, apperrors.ErrInvalidInput)
	}
}

// Target is the trial being annotated.
type Target struct {
	ParticipantID string
	TrialNumber   int
	AutoOnsetMs   *float64
}

// Plan turns an action into the score update that records it. value is the
// rater-supplied onset; confirm ignores it and copies the auto onset.
func Plan(action Action, target Target, value *float64) (sessiondomain.ScoreUpdate, error) {
	status := action.Status()
	u := sessiondomain.ScoreUpdate{OnsetStatus: &status}
	switch action {
	case ActionConfirm:
		if target.AutoOnsetMs == nil {
			return sessiondomain.ScoreUpdate{}, fmt.Errorf("confirm trial %d of %s: %w", target.TrialNumber, target.ParticipantID, apperrors.ErrNoAutoOnset)
		}
		v := *target.AutoOnsetMs
		u.OnsetMs = &v
	case ActionCorrect:
		if value == nil {
			return sessiondomain.ScoreUpdate{}, fmt.Errorf("correct needs an onset value: %w", apperrors.ErrInvalidInput)
		}
		v := *value
		u.OnsetMs = &v
	case ActionManual:
		if value != nil {
			v := *value
			u.OnsetMs = &v
		}
	case ActionNoSpeech, ActionClear:
		u.ClearOnset = true
	default:
		return sessiondomain.ScoreUpdate{}, fmt.Errorf("unknown onset action %q: %w", action, apperrors.ErrInvalidInput)
	}
	if err := u.Validate(); err != nil {
		return sessiondomain.ScoreUpdate{}, err
	}
	return u, nil
}

// ClickToSet reports whether the surface should accept click placement
// while a trial sits in status.
func ClickToSet(status sessiondomain.OnsetStatus) bool {
	return status == sessiondomain.OnsetManual
}
