package in

import (
	"context"

	sessiondto "onsetscore/internal/modules/session/dto"
	sessionin "onsetscore/internal/modules/session/port/in"
)

type TUIHandler struct {
	usecase sessionin.Usecase
}

func NewTUIHandler(usecase sessionin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) Status(ctx context.Context) (sessiondto.StatusOutput, error) {
	return h.usecase.Status(ctx)
}

// SetScore rides the debounced write path; the program flushes on exit.
func (h TUIHandler) SetScore(ctx context.Context, participantID string, trialNumber int, accuracy, note *string) (sessiondto.ScoreOutput, error) {
	return h.usecase.SetScore(ctx, sessiondto.SetScoreInput{
		ParticipantID: participantID,
		TrialNumber:   trialNumber,
		Accuracy:      accuracy,
		Note:          note,
	})
}

func (h TUIHandler) GetScore(ctx context.Context, participantID string, trialNumber int) (sessiondto.ScoreOutput, error) {
	return h.usecase.GetScore(ctx, participantID, trialNumber)
}

func (h TUIHandler) Flush(ctx context.Context) error {
	return h.usecase.Flush(ctx)
}
