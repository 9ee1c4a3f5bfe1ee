package domain

import (
	"fmt"
	"time"

	apperrors "onsetscore/internal/platform/errors"
)

type Accuracy string

const (
	AccuracyUnset         Accuracy = ""
	AccuracyCorrect       Accuracy = "correct"
	AccuracyIncorrect     Accuracy = "incorrect"
	AccuracySelfCorrected Accuracy = "self_corrected"
	AccuracyNoResponse    Accuracy = "no_response"
)

func (a Accuracy) Validate() error {
	switch a {
	case AccuracyUnset, AccuracyCorrect, AccuracyIncorrect, AccuracySelfCorrected, AccuracyNoResponse:
		return nil
	default:
		return fmt.Errorf("unknown accuracy %q: %w", string(a), apperrors.ErrInvalidInput)
	}
}

type OnsetStatus string

const (
	OnsetUnset     OnsetStatus = ""
	OnsetConfirmed OnsetStatus = "confirmed"
	OnsetCorrected OnsetStatus = "corrected"
	OnsetManual    OnsetStatus = "manual"
	OnsetNoSpeech  OnsetStatus = "no_speech"
)

// ParseOnsetStatus accepts "unset" as the spelled-out empty status.
func ParseOnsetStatus(v string) (OnsetStatus, error) {
	if v == "unset" {
		return OnsetUnset, nil
	}
	st := OnsetStatus(v)
	if err := st.Validate(); err != nil {
		return OnsetUnset, err
	}
	return st, nil
}

func (o OnsetStatus) Validate() error {
	switch o {
	case OnsetUnset, OnsetConfirmed, OnsetCorrected, OnsetManual, OnsetNoSpeech:
		return nil
	default:
		return fmt.Errorf("unknown onset status %q: %w", string(o), apperrors.ErrInvalidInput)
	}
}

func (o OnsetStatus) String() string {
	if o == OnsetUnset {
		return "unset"
	}
	return string(o)
}

type ScoreRecord struct {
	Accuracy    Accuracy    `json:"accuracy,omitempty"`
	OnsetMs     *float64    `json:"onset_ms,omitempty"`
	OnsetStatus OnsetStatus `json:"onset_status,omitempty"`
	Note        string      `json:"note,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Scored means an accuracy judgment is present.
func (r ScoreRecord) Scored() bool {
	return r.Accuracy != AccuracyUnset
}

func (r ScoreRecord) clone() ScoreRecord {
	if r.OnsetMs != nil {
		v := *r.OnsetMs
		r.OnsetMs = &v
	}
	return r
}

// ScoreUpdate is a partial update; nil fields leave the record untouched.
type ScoreUpdate struct {
	Accuracy    *Accuracy
	OnsetMs     *float64
	ClearOnset  bool
	OnsetStatus *OnsetStatus
	Note        *string
}

func (u ScoreUpdate) Validate() error {
	if u.Accuracy != nil {
		if err := u.Accuracy.Validate(); err != nil {
			return err
		}
	}
	if u.OnsetStatus != nil {
		if err := u.OnsetStatus.Validate(); err != nil {
			return err
		}
	}
	if u.OnsetMs != nil && u.ClearOnset {
		return fmt.Errorf("onset cannot be set and cleared together: %w", apperrors.ErrInvalidInput)
	}
	if u.OnsetMs != nil && *u.OnsetMs < 0 {
		return fmt.Errorf("onset must not be negative: %w", apperrors.ErrInvalidInput)
	}
	return nil
}

// Merge applies u field by field. Setting accuracy to no_response leaves the
// record with no_speech status and no onset value; a later onset action on
// the same record still applies.
func (r ScoreRecord) Merge(u ScoreUpdate, at time.Time) ScoreRecord {
	out := r.clone()
	if u.Accuracy != nil {
		out.Accuracy = *u.Accuracy
	}
	if u.ClearOnset {
		out.OnsetMs = nil
	}
	if u.OnsetMs != nil {
		v := *u.OnsetMs
		out.OnsetMs = &v
	}
	if u.OnsetStatus != nil {
		out.OnsetStatus = *u.OnsetStatus
	}
	if u.Note != nil {
		out.Note = *u.Note
	}
	if u.Accuracy != nil && *u.Accuracy == AccuracyNoResponse {
		out.OnsetStatus = OnsetNoSpeech
		out.OnsetMs = nil
	}
	out.UpdatedAt = at
	return out
}
