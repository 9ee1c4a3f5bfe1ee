package in

import (
	"context"

	"onsetscore/internal/modules/onset/dto"
	onsetin "onsetscore/internal/modules/onset/port/in"
)

type CLIHandler struct {
	usecase onsetin.Usecase
}

func NewCLIHandler(usecase onsetin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Apply(ctx context.Context, participantID string, trialNumber int, action string, valueMs *float64) (dto.OnsetOutput, error) {
	return h.usecase.Apply(ctx, dto.ApplyInput{
		ParticipantID: participantID,
		TrialNumber:   trialNumber,
		Action:        action,
		ValueMs:       valueMs,
	})
}
