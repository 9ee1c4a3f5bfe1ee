package in

import (
	"context"

	"onsetscore/internal/modules/navigation/dto"
)

type Usecase interface {
	Goto(ctx context.Context, input dto.GotoInput) (dto.ViewOutput, error)
	Next(ctx context.Context) (dto.ViewOutput, error)
	Prev(ctx context.Context) (dto.ViewOutput, error)
	NextParticipant(ctx context.Context) (dto.ViewOutput, error)
	PrevParticipant(ctx context.Context) (dto.ViewOutput, error)
	JumpToUnscored(ctx context.Context) (dto.ViewOutput, error)
	Resume(ctx context.Context) (dto.ViewOutput, error)
}
