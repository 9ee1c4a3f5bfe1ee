package in

import (
	"context"

	"onsetscore/internal/modules/dataset/dto"
)

type Usecase interface {
	ListDatasets(ctx context.Context) ([]dto.DatasetOutput, error)
	GetParticipant(ctx context.Context, input dto.ParticipantInput) (dto.ParticipantOutput, error)
	Translate(ctx context.Context, word string) (dto.TranslationOutput, error)
}
