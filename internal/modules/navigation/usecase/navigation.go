package usecase

import (
	"context"

	"onsetscore/internal/modules/navigation/domain"
	"onsetscore/internal/modules/navigation/dto"
	navigationin "onsetscore/internal/modules/navigation/port/in"
	"onsetscore/internal/modules/navigation/service"
	sessionin "onsetscore/internal/modules/session/port/in"
)

type Interactor struct {
	controller *service.Controller
	sessions   sessionin.Usecase
}

func NewInteractor(controller *service.Controller, sessions sessionin.Usecase) navigationin.Usecase {
	return &Interactor{controller: controller, sessions: sessions}
}

func (i *Interactor) Goto(ctx context.Context, input dto.GotoInput) (dto.ViewOutput, error) {
	return i.run(ctx, func() (bool, error) {
		return true, i.controller.Navigate(ctx, input.ParticipantIndex, input.TrialIndex)
	})
}

func (i *Interactor) Next(ctx context.Context) (dto.ViewOutput, error) {
	return i.run(ctx, func() (bool, error) { return i.controller.Next(ctx) })
}

func (i *Interactor) Prev(ctx context.Context) (dto.ViewOutput, error) {
	return i.run(ctx, func() (bool, error) { return i.controller.Prev(ctx) })
}

func (i *Interactor) NextParticipant(ctx context.Context) (dto.ViewOutput, error) {
	return i.run(ctx, func() (bool, error) { return i.controller.NextParticipant(ctx) })
}

func (i *Interactor) PrevParticipant(ctx context.Context) (dto.ViewOutput, error) {
	return i.run(ctx, func() (bool, error) { return i.controller.PrevParticipant(ctx) })
}

func (i *Interactor) JumpToUnscored(ctx context.Context) (dto.ViewOutput, error) {
	return i.run(ctx, func() (bool, error) { return i.controller.JumpToUnscored(ctx) })
}

func (i *Interactor) Resume(ctx context.Context) (dto.ViewOutput, error) {
	return i.run(ctx, func() (bool, error) { return true, i.controller.Resume(ctx) })
}

// run opens the workspace session, applies move and reports where the
// cursor ended up. When nothing moved the current position is re-rendered
// so callers always get a view.
func (i *Interactor) run(ctx context.Context, move func() (bool, error)) (dto.ViewOutput, error) {
	if _, err := i.sessions.Open(ctx); err != nil {
		return dto.ViewOutput{}, err
	}
	moved, err := move()
	if err != nil {
		return dto.ViewOutput{}, err
	}
	view, ok := i.controller.Current()
	if !ok {
		if err := i.controller.Resume(ctx); err != nil {
			return dto.ViewOutput{}, err
		}
		view, _ = i.controller.Current()
	}
	out := toViewOutput(view)
	out.Moved = moved
	return out, nil
}

func toViewOutput(v domain.View) dto.ViewOutput {
	out := dto.ViewOutput{
		DatasetID:        v.Dataset.ID,
		TestType:         string(v.Dataset.TestType),
		ParticipantIndex: v.ParticipantIndex,
		ParticipantCount: v.ParticipantCount,
		TrialIndex:       v.TrialIndex,
		TrialCount:       v.TrialCount(),
		TrialNumber:      v.Trial.Number,
		Word:             v.Trial.Word,
		ExhibitName:      v.Trial.ExhibitName,
		AutoOnsetMs:      v.Trial.AutoOnsetMs,
		LatencyMs:        v.Trial.LatencyMs,
		LatencyStatus:    v.Trial.LatencyStatus,
	}
	if v.Participant != nil {
		out.ParticipantID = v.Participant.ID
	}
	return out
}
