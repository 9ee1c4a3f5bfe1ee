package in

import (
	"context"

	"onsetscore/internal/modules/onset/dto"
	onsetin "onsetscore/internal/modules/onset/port/in"
)

// TUIHandler drives the trial in focus; the terminal surface has no notion
// of participant ids beyond what it last focused.
type TUIHandler struct {
	usecase onsetin.Usecase
}

func NewTUIHandler(usecase onsetin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) Focus(ctx context.Context, participantID string, trialNumber int) (dto.OnsetOutput, error) {
	return h.usecase.Focus(ctx, dto.TargetInput{ParticipantID: participantID, TrialNumber: trialNumber})
}

func (h TUIHandler) Apply(ctx context.Context, action string, valueMs *float64) (dto.OnsetOutput, error) {
	return h.usecase.ApplyFocused(ctx, action, valueMs)
}

func (h TUIHandler) Place(ctx context.Context, ms float64, source string) (dto.OnsetOutput, error) {
	return h.usecase.OnOnsetChanged(ctx, ms, source)
}

func (h TUIHandler) SetNote(ctx context.Context, note string) (dto.OnsetOutput, error) {
	return h.usecase.SetNote(ctx, note)
}
