package in

import (
	"context"

	"onsetscore/internal/modules/dataset/dto"
	datasetin "onsetscore/internal/modules/dataset/port/in"
)

type CLIHandler struct {
	usecase datasetin.Usecase
}

func NewCLIHandler(usecase datasetin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) ListDatasets(ctx context.Context) ([]dto.DatasetOutput, error) {
	return h.usecase.ListDatasets(ctx)
}

func (h CLIHandler) GetParticipant(ctx context.Context, datasetID, participantID string) (dto.ParticipantOutput, error) {
	return h.usecase.GetParticipant(ctx, dto.ParticipantInput{DatasetID: datasetID, ParticipantID: participantID})
}

func (h CLIHandler) Translate(ctx context.Context, word string) (dto.TranslationOutput, error) {
	return h.usecase.Translate(ctx, word)
}
