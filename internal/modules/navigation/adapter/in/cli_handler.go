package in

import (
	"context"

	"onsetscore/internal/modules/navigation/dto"
	navigationin "onsetscore/internal/modules/navigation/port/in"
)

type CLIHandler struct {
	usecase navigationin.Usecase
}

func NewCLIHandler(usecase navigationin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Goto(ctx context.Context, participantIndex, trialIndex int) (dto.ViewOutput, error) {
	return h.usecase.Goto(ctx, dto.GotoInput{ParticipantIndex: participantIndex, TrialIndex: trialIndex})
}

func (h CLIHandler) Next(ctx context.Context) (dto.ViewOutput, error) {
	return h.usecase.Next(ctx)
}

func (h CLIHandler) Prev(ctx context.Context) (dto.ViewOutput, error) {
	return h.usecase.Prev(ctx)
}

func (h CLIHandler) NextParticipant(ctx context.Context) (dto.ViewOutput, error) {
	return h.usecase.NextParticipant(ctx)
}

func (h CLIHandler) PrevParticipant(ctx context.Context) (dto.ViewOutput, error) {
	return h.usecase.PrevParticipant(ctx)
}

func (h CLIHandler) JumpToUnscored(ctx context.Context) (dto.ViewOutput, error) {
	return h.usecase.JumpToUnscored(ctx)
}

func (h CLIHandler) Resume(ctx context.Context) (dto.ViewOutput, error) {
	return h.usecase.Resume(ctx)
}
