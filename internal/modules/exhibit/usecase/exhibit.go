package usecase

import (
	"context"
	"fmt"

	datasetdto "onsetscore/internal/modules/dataset/dto"
	datasetin "onsetscore/internal/modules/dataset/port/in"
	"onsetscore/internal/modules/exhibit/dto"
	exhibitin "onsetscore/internal/modules/exhibit/port/in"
	"onsetscore/internal/modules/exhibit/service"
	apperrors "onsetscore/internal/platform/errors"
)

type Interactor struct {
	prefetcher *service.Prefetcher
	datasets   datasetin.Usecase
}

func NewInteractor(prefetcher *service.Prefetcher, datasets datasetin.Usecase) exhibitin.Usecase {
	return &Interactor{prefetcher: prefetcher, datasets: datasets}
}

func (i *Interactor) Locate(ctx context.Context, input dto.LocateInput) (dto.LocateOutput, error) {
	p, err := i.datasets.GetParticipant(ctx, datasetdto.ParticipantInput{DatasetID: input.DatasetID, ParticipantID: input.ParticipantID})
	if err != nil {
		return dto.LocateOutput{}, err
	}
	for _, t := range p.Trials {
		if t.Number != input.TrialNumber {
			continue
		}
		if t.ExhibitName == "" {
			return dto.LocateOutput{}, fmt.Errorf("trial %d of %s has no recording: %w", t.Number, p.ID, apperrors.ErrNotFound)
		}
		if loc, ok := i.prefetcher.Lookup(input.DatasetID, p.ID, t.ExhibitName); ok {
			return dto.LocateOutput{ExhibitName: t.ExhibitName, Location: loc, Cached: true}, nil
		}
		return dto.LocateOutput{ExhibitName: t.ExhibitName, Location: t.ExhibitURL}, nil
	}
	return dto.LocateOutput{}, fmt.Errorf("trial %d of %s: %w", input.TrialNumber, input.ParticipantID, apperrors.ErrNotFound)
}

func (i *Interactor) Release(_ context.Context) error {
	return i.prefetcher.Release()
}
