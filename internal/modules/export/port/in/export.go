package in

import (
	"context"

	"onsetscore/internal/modules/export/dto"
)

type Usecase interface {
	List(ctx context.Context) ([]dto.ExporterInfo, error)
	Doctor(ctx context.Context) ([]dto.DoctorResult, error)
	ParticipantComplete(ctx context.Context, input dto.ParticipantReportInput) ([]dto.DeliveryOutput, error)
}
