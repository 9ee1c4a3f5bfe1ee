package usecase

import (
	"context"

	"onsetscore/internal/modules/dataset/domain"
	"onsetscore/internal/modules/dataset/dto"
	datasetin "onsetscore/internal/modules/dataset/port/in"
	"onsetscore/internal/modules/dataset/service"
)

type Interactor struct {
	loader *service.Loader
}

func NewInteractor(loader *service.Loader) datasetin.Usecase {
	return &Interactor{loader: loader}
}

func (i *Interactor) ListDatasets(ctx context.Context) ([]dto.DatasetOutput, error) {
	idx, err := i.loader.LoadIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DatasetOutput, 0, len(idx.Datasets))
	for _, ds := range idx.Datasets {
		out = append(out, dto.DatasetOutput{
			ID:           ds.ID,
			Label:        ds.Label,
			TestType:     string(ds.TestType),
			Timing:       ds.Timing,
			Participants: append([]string(nil), ds.Participants...),
		})
	}
	return out, nil
}

func (i *Interactor) GetParticipant(ctx context.Context, input dto.ParticipantInput) (dto.ParticipantOutput, error) {
	ds, err := i.loader.Dataset(ctx, input.DatasetID)
	if err != nil {
		return dto.ParticipantOutput{}, err
	}
	p, err := i.loader.LoadParticipant(ctx, input.DatasetID, input.ParticipantID)
	if err != nil {
		return dto.ParticipantOutput{}, err
	}
	out := dto.ParticipantOutput{ID: p.ID, DatasetID: p.DatasetID, Trials: make([]dto.TrialOutput, 0, len(p.Trials))}
	for _, t := range p.Trials {
		out.Trials = append(out.Trials, dto.TrialOutput{
			Number:        t.Number,
			Word:          t.Word,
			WordID:        t.WordID,
			ListID:        t.ListID,
			ExhibitName:   t.ExhibitName,
			ExhibitURL:    domain.ExhibitURL(ds.ExhibitPath, p.ID, t.ExhibitName),
			AutoOnsetMs:   t.AutoOnsetMs,
			LatencyMs:     t.LatencyMs,
			LatencyStatus: t.LatencyStatus,
		})
	}
	return out, nil
}

func (i *Interactor) Translate(ctx context.Context, word string) (dto.TranslationOutput, error) {
	idx, err := i.loader.LoadIndex(ctx)
	if err != nil {
		return dto.TranslationOutput{}, err
	}
	tr, ok := idx.Translate(word)
	return dto.TranslationOutput{Word: word, Translation: tr, Found: ok}, nil
}
