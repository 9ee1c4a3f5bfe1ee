package in

import (
	"context"

	"onsetscore/internal/modules/exhibit/dto"
	exhibitin "onsetscore/internal/modules/exhibit/port/in"
)

type CLIHandler struct {
	usecase exhibitin.Usecase
}

func NewCLIHandler(usecase exhibitin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Locate(ctx context.Context, datasetID, participantID string, trialNumber int) (dto.LocateOutput, error) {
	return h.usecase.Locate(ctx, dto.LocateInput{DatasetID: datasetID, ParticipantID: participantID, TrialNumber: trialNumber})
}
