package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"onsetscore/internal/modules/onset/domain"
	onsetout "onsetscore/internal/modules/onset/port/out"
	sessiondomain "onsetscore/internal/modules/session/domain"
	apperrors "onsetscore/internal/platform/errors"
	"onsetscore/internal/platform/logging"
)

// Annotator runs the onset state machine for the trial in focus. Status
// transitions are written through immediately; notes ride the debounced
// path.
type Annotator struct {
	store  onsetout.ScoreStore
	logger *zap.Logger

	mu         sync.Mutex
	surface    onsetout.Surface
	target     *domain.Target
	clickToSet bool
}

func NewAnnotator(store onsetout.ScoreStore, logger *zap.Logger) *Annotator {
	return &Annotator{store: store, logger: logging.OrNop(logger).Named("onset")}
}

// Attach connects the surface that receives click-to-set changes.
func (a *Annotator) Attach(surface onsetout.Surface) {
	a.mu.Lock()
	a.surface = surface
	enabled := a.clickToSet
	a.mu.Unlock()
	if surface != nil {
		surface.SetClickToSet(enabled)
	}
}

// Focus makes target the trial that surface callbacks apply to. Click
// placement follows the trial's stored status.
func (a *Annotator) Focus(target domain.Target) {
	rec, _ := a.store.Score(target.ParticipantID, target.TrialNumber)
	a.mu.Lock()
	t := target
	a.target = &t
	a.mu.Unlock()
	a.setClickToSet(domain.ClickToSet(rec.OnsetStatus))
}

func (a *Annotator) Focused() (domain.Target, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.target == nil {
		return domain.Target{}, false
	}
	return *a.target, true
}

func (a *Annotator) ClickToSet() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clickToSet
}

// Apply performs action on the focused trial.
func (a *Annotator) Apply(ctx context.Context, action domain.Action, value *float64) (sessiondomain.ScoreRecord, error) {
	target, ok := a.Focused()
	if !ok {
		return sessiondomain.ScoreRecord{}, fmt.Errorf("no trial in focus: %w", apperrors.ErrInvalidInput)
	}
	return a.ApplyTo(ctx, target, action, value)
}

// ApplyTo performs action on target and saves it before returning.
func (a *Annotator) ApplyTo(ctx context.Context, target domain.Target, action domain.Action, value *float64) (sessiondomain.ScoreRecord, error) {
	update, err := domain.Plan(action, target, value)
	if err != nil {
		return sessiondomain.ScoreRecord{}, err
	}
	rec, err := a.store.SaveScore(ctx, target.ParticipantID, target.TrialNumber, update)
	if err != nil {
		return rec, fmt.Errorf("save onset: %w", err)
	}
	a.logger.Debug("onset updated",
		zap.String("participant", target.ParticipantID),
		zap.Int("trial", target.TrialNumber),
		zap.String("action", string(action)),
		zap.Stringer("status", rec.OnsetStatus))
	if a.isFocused(target) {
		a.setClickToSet(domain.ClickToSet(rec.OnsetStatus))
	}
	return rec, nil
}

// OnOnsetChanged is the surface callback for a placed or dragged onset
// marker. A drag corrects the value; a click sets it manually but only
// while click placement is enabled. It reports false when the change was
// ignored.
func (a *Annotator) OnOnsetChanged(ctx context.Context, ms float64, source domain.Source) (sessiondomain.ScoreRecord, bool, error) {
	var action domain.Action
	switch source {
	case domain.SourceDrag:
		action = domain.ActionCorrect
	case domain.SourceClick:
		if !a.ClickToSet() {
			return sessiondomain.ScoreRecord{}, false, nil
		}
		action = domain.ActionManual
	default:
		return sessiondomain.ScoreRecord{}, false, fmt.Errorf("unknown onset source %q: %w", source, apperrors.ErrInvalidInput)
	}
	rec, err := a.Apply(ctx, action, &ms)
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// SetNote stores a free-text note on the focused trial.
func (a *Annotator) SetNote(note string) (sessiondomain.ScoreRecord, error) {
	target, ok := a.Focused()
	if !ok {
		return sessiondomain.ScoreRecord{}, fmt.Errorf("no trial in focus: %w", apperrors.ErrInvalidInput)
	}
	return a.store.SetScore(target.ParticipantID, target.TrialNumber, sessiondomain.ScoreUpdate{Note: &note})
}

func (a *Annotator) isFocused(target domain.Target) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target != nil && a.target.ParticipantID == target.ParticipantID && a.target.TrialNumber == target.TrialNumber
}

func (a *Annotator) setClickToSet(enabled bool) {
	a.mu.Lock()
	a.clickToSet = enabled
	surface := a.surface
	a.mu.Unlock()
	if surface != nil {
		surface.SetClickToSet(enabled)
	}
}
