package in

import (
	"context"

	sessiondto "onsetscore/internal/modules/session/dto"
	sessionin "onsetscore/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, raterID, datasetID string, participants []string) (sessiondto.SessionOutput, error) {
	return h.usecase.Start(ctx, sessiondto.StartInput{RaterID: raterID, DatasetID: datasetID, Participants: participants})
}

func (h CLIHandler) Resume(ctx context.Context, raterID, datasetID string) (sessiondto.ResumeOutput, error) {
	return h.usecase.Resume(ctx, sessiondto.ResumeInput{RaterID: raterID, DatasetID: datasetID})
}

func (h CLIHandler) Open(ctx context.Context) (sessiondto.SessionOutput, error) {
	return h.usecase.Open(ctx)
}

func (h CLIHandler) Status(ctx context.Context) (sessiondto.StatusOutput, error) {
	return h.usecase.Status(ctx)
}

// SetScore always writes through; CLI invocations do not outlive a debounce
// window.
func (h CLIHandler) SetScore(ctx context.Context, participantID string, trialNumber int, accuracy, note *string) (sessiondto.ScoreOutput, error) {
	return h.usecase.SetScore(ctx, sessiondto.SetScoreInput{
		ParticipantID: participantID,
		TrialNumber:   trialNumber,
		Accuracy:      accuracy,
		Note:          note,
		Immediate:     true,
	})
}

func (h CLIHandler) GetScore(ctx context.Context, participantID string, trialNumber int) (sessiondto.ScoreOutput, error) {
	return h.usecase.GetScore(ctx, participantID, trialNumber)
}
