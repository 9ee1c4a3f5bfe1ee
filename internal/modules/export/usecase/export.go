package usecase

import (
	"context"

	"onsetscore/internal/modules/export/dto"
	exportin "onsetscore/internal/modules/export/port/in"
	"onsetscore/internal/modules/export/service"
)

type Interactor struct {
	svc *service.ExportService
}

func NewInteractor(svc *service.ExportService) exportin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) List(ctx context.Context) ([]dto.ExporterInfo, error) {
	return i.svc.List(ctx)
}

func (i *Interactor) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return i.svc.Doctor(ctx)
}

func (i *Interactor) ParticipantComplete(ctx context.Context, input dto.ParticipantReportInput) ([]dto.DeliveryOutput, error) {
	return i.svc.ParticipantComplete(ctx, input)
}
