package in

import (
	"context"

	"onsetscore/internal/modules/session/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.SessionOutput, error)
	Resume(ctx context.Context, input dto.ResumeInput) (dto.ResumeOutput, error)
	// Open reactivates the session the workspace last worked on.
	Open(ctx context.Context) (dto.SessionOutput, error)
	Status(ctx context.Context) (dto.StatusOutput, error)
	SetScore(ctx context.Context, input dto.SetScoreInput) (dto.ScoreOutput, error)
	GetScore(ctx context.Context, participantID string, trialNumber int) (dto.ScoreOutput, error)
	Flush(ctx context.Context) error
}
