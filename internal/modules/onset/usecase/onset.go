package usecase

import (
	"context"
	"fmt"

	datasetdto "onsetscore/internal/modules/dataset/dto"
	datasetin "onsetscore/internal/modules/dataset/port/in"
	"onsetscore/internal/modules/onset/domain"
	"onsetscore/internal/modules/onset/dto"
	onsetin "onsetscore/internal/modules/onset/port/in"
	"onsetscore/internal/modules/onset/service"
	sessiondomain "onsetscore/internal/modules/session/domain"
	sessionin "onsetscore/internal/modules/session/port/in"
	apperrors "onsetscore/internal/platform/errors"
)

type Interactor struct {
	annotator *service.Annotator
	sessions  sessionin.Usecase
	datasets  datasetin.Usecase
}

func NewInteractor(annotator *service.Annotator, sessions sessionin.Usecase, datasets datasetin.Usecase) onsetin.Usecase {
	return &Interactor{annotator: annotator, sessions: sessions, datasets: datasets}
}

func (i *Interactor) Apply(ctx context.Context, input dto.ApplyInput) (dto.OnsetOutput, error) {
	action, err := domain.ParseAction(input.Action)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	target, err := i.target(ctx, input.ParticipantID, input.TrialNumber)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	rec, err := i.annotator.ApplyTo(ctx, target, action, input.ValueMs)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	return i.output(target, rec, true), nil
}

func (i *Interactor) Focus(ctx context.Context, input dto.TargetInput) (dto.OnsetOutput, error) {
	target, err := i.target(ctx, input.ParticipantID, input.TrialNumber)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	i.annotator.Focus(target)
	return i.current(ctx, target)
}

func (i *Interactor) ApplyFocused(ctx context.Context, action string, valueMs *float64) (dto.OnsetOutput, error) {
	a, err := domain.ParseAction(action)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	rec, err := i.annotator.Apply(ctx, a, valueMs)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	target, _ := i.annotator.Focused()
	return i.output(target, rec, true), nil
}

func (i *Interactor) OnOnsetChanged(ctx context.Context, ms float64, source string) (dto.OnsetOutput, error) {
	src, err := domain.ParseSource(source)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	rec, applied, err := i.annotator.OnOnsetChanged(ctx, ms, src)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	target, _ := i.annotator.Focused()
	if !applied {
		out, err := i.current(ctx, target)
		out.Applied = false
		return out, err
	}
	return i.output(target, rec, true), nil
}

func (i *Interactor) SetNote(_ context.Context, note string) (dto.OnsetOutput, error) {
	rec, err := i.annotator.SetNote(note)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	target, _ := i.annotator.Focused()
	return i.output(target, rec, true), nil
}

func (i *Interactor) current(ctx context.Context, target domain.Target) (dto.OnsetOutput, error) {
	score, err := i.sessions.GetScore(ctx, target.ParticipantID, target.TrialNumber)
	if err != nil {
		return dto.OnsetOutput{}, err
	}
	return dto.OnsetOutput{
		ParticipantID: target.ParticipantID,
		TrialNumber:   target.TrialNumber,
		AutoOnsetMs:   target.AutoOnsetMs,
		OnsetMs:       score.OnsetMs,
		OnsetStatus:   score.OnsetStatus,
		Accuracy:      score.Accuracy,
		ClickToSet:    i.annotator.ClickToSet(),
		Applied:       true,
		UpdatedAt:     score.UpdatedAt,
	}, nil
}

func (i *Interactor) output(target domain.Target, rec sessiondomain.ScoreRecord, applied bool) dto.OnsetOutput {
	return dto.OnsetOutput{
		ParticipantID: target.ParticipantID,
		TrialNumber:   target.TrialNumber,
		AutoOnsetMs:   target.AutoOnsetMs,
		OnsetMs:       rec.OnsetMs,
		OnsetStatus:   rec.OnsetStatus.String(),
		Accuracy:      string(rec.Accuracy),
		ClickToSet:    i.annotator.ClickToSet(),
		Applied:       applied,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// target resolves the auto-detected onset of a trial in the active
// session's dataset.
func (i *Interactor) target(ctx context.Context, participantID string, trialNumber int) (domain.Target, error) {
	session, err := i.sessions.Open(ctx)
	if err != nil {
		return domain.Target{}, err
	}
	p, err := i.datasets.GetParticipant(ctx, datasetdto.ParticipantInput{DatasetID: session.DatasetID, ParticipantID: participantID})
	if err != nil {
		return domain.Target{}, err
	}
	for _, t := range p.Trials {
		if t.Number == trialNumber {
			return domain.Target{ParticipantID: participantID, TrialNumber: trialNumber, AutoOnsetMs: t.AutoOnsetMs}, nil
		}
	}
	return domain.Target{}, fmt.Errorf("trial %d of %s: %w", trialNumber, participantID, apperrors.ErrNotFound)
}
