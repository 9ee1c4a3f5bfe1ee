package in

import (
	"context"

	"onsetscore/internal/modules/onset/dto"
)

type Usecase interface {
	// Apply runs an explicit action on a trial of the active session.
	Apply(ctx context.Context, input dto.ApplyInput) (dto.OnsetOutput, error)
	Focus(ctx context.Context, input dto.TargetInput) (dto.OnsetOutput, error)
	ApplyFocused(ctx context.Context, action string, valueMs *float64) (dto.OnsetOutput, error)
	OnOnsetChanged(ctx context.Context, ms float64, source string) (dto.OnsetOutput, error)
	SetNote(ctx context.Context, note string) (dto.OnsetOutput, error)
}
