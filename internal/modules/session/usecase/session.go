package usecase

import (
	"context"
	"fmt"

	datasetdto "onsetscore/internal/modules/dataset/dto"
	datasetin "onsetscore/internal/modules/dataset/port/in"
	"onsetscore/internal/modules/session/domain"
	"onsetscore/internal/modules/session/dto"
	sessionin "onsetscore/internal/modules/session/port/in"
	sessionout "onsetscore/internal/modules/session/port/out"
	"onsetscore/internal/modules/session/service"
	apperrors "onsetscore/internal/platform/errors"
)

type Interactor struct {
	store    *service.Store
	pointer  sessionout.ActivePointer
	datasets datasetin.Usecase
}

func NewInteractor(store *service.Store, pointer sessionout.ActivePointer, datasets datasetin.Usecase) sessionin.Usecase {
	return &Interactor{store: store, pointer: pointer, datasets: datasets}
}

func (i *Interactor) Start(ctx context.Context, input dto.StartInput) (dto.SessionOutput, error) {
	ds, err := i.dataset(ctx, input.DatasetID)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	participants := input.Participants
	if len(participants) == 0 {
		participants = ds.Participants
	}
	known := make(map[string]struct{}, len(ds.Participants))
	for _, p := range ds.Participants {
		known[p] = struct{}{}
	}
	for _, p := range participants {
		if _, ok := known[p]; !ok {
			return dto.SessionOutput{}, fmt.Errorf("participant %s in dataset %s: %w", p, ds.ID, apperrors.ErrNotFound)
		}
	}
	session, err := i.store.Create(ctx, input.RaterID, ds.ID, participants)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	if err := i.pointer.SaveActive(ctx, domain.ActivePointer{RaterID: session.RaterID, DatasetID: session.DatasetID}); err != nil {
		return dto.SessionOutput{}, err
	}
	return toSessionOutput(session), nil
}

func (i *Interactor) Resume(ctx context.Context, input dto.ResumeInput) (dto.ResumeOutput, error) {
	if _, err := i.dataset(ctx, input.DatasetID); err != nil {
		return dto.ResumeOutput{}, err
	}
	found, err := i.store.Load(ctx, input.RaterID, input.DatasetID)
	if err != nil {
		return dto.ResumeOutput{}, err
	}
	if !found {
		out, err := i.Start(ctx, dto.StartInput{RaterID: input.RaterID, DatasetID: input.DatasetID})
		if err != nil {
			return dto.ResumeOutput{}, err
		}
		return dto.ResumeOutput{Session: out}, nil
	}
	session := i.store.Get()
	if err := i.pointer.SaveActive(ctx, domain.ActivePointer{RaterID: session.RaterID, DatasetID: session.DatasetID}); err != nil {
		return dto.ResumeOutput{}, err
	}
	return dto.ResumeOutput{Session: toSessionOutput(session), Resumed: true}, nil
}

func (i *Interactor) Open(ctx context.Context) (dto.SessionOutput, error) {
	if session := i.store.Get(); session != nil {
		return toSessionOutput(session), nil
	}
	pointer, err := i.pointer.LoadActive(ctx)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	found, err := i.store.Load(ctx, pointer.RaterID, pointer.DatasetID)
	if err != nil {
		return dto.SessionOutput{}, err
	}
	if !found {
		return dto.SessionOutput{}, apperrors.ErrNoActiveSession
	}
	return toSessionOutput(i.store.Get()), nil
}

func (i *Interactor) Status(ctx context.Context) (dto.StatusOutput, error) {
	if _, err := i.Open(ctx); err != nil {
		return dto.StatusOutput{}, err
	}
	session := i.store.Get()
	out := dto.StatusOutput{Session: toSessionOutput(session)}
	for idx, pid := range session.AssignedParticipants {
		p, err := i.datasets.GetParticipant(ctx, datasetdto.ParticipantInput{DatasetID: session.DatasetID, ParticipantID: pid})
		if err != nil {
			return dto.StatusOutput{}, err
		}
		numbers := make([]int, len(p.Trials))
		for n, t := range p.Trials {
			numbers[n] = t.Number
		}
		_, signaled := session.CompletionSignaled[pid]
		_, hasOrder := session.ShuffleOrders[pid]
		out.Participants = append(out.Participants, dto.ParticipantStatus{
			ID:        pid,
			Trials:    len(p.Trials),
			Scored:    session.ParticipantScored(pid),
			Complete:  session.IsParticipantComplete(pid, numbers),
			Signaled:  signaled,
			HasOrder:  hasOrder,
			IsCurrent: idx == session.Position.ParticipantIndex,
		})
	}
	return out, nil
}

func (i *Interactor) SetScore(ctx context.Context, input dto.SetScoreInput) (dto.ScoreOutput, error) {
	if _, err := i.Open(ctx); err != nil {
		return dto.ScoreOutput{}, err
	}
	update := domain.ScoreUpdate{Note: input.Note}
	if input.Accuracy != nil {
		acc := domain.Accuracy(*input.Accuracy)
		update.Accuracy = &acc
	}
	var (
		rec domain.ScoreRecord
		err error
	)
	if input.Immediate {
		rec, err = i.store.SaveScore(ctx, input.ParticipantID, input.TrialNumber, update)
	} else {
		rec, err = i.store.SetScore(input.ParticipantID, input.TrialNumber, update)
	}
	if err != nil {
		return dto.ScoreOutput{}, err
	}
	return toScoreOutput(input.ParticipantID, input.TrialNumber, rec), nil
}

func (i *Interactor) GetScore(ctx context.Context, participantID string, trialNumber int) (dto.ScoreOutput, error) {
	if _, err := i.Open(ctx); err != nil {
		return dto.ScoreOutput{}, err
	}
	rec, _ := i.store.Score(participantID, trialNumber)
	return toScoreOutput(participantID, trialNumber, rec), nil
}

func (i *Interactor) Flush(ctx context.Context) error {
	return i.store.Flush(ctx)
}

func (i *Interactor) dataset(ctx context.Context, datasetID string) (datasetdto.DatasetOutput, error) {
	datasets, err := i.datasets.ListDatasets(ctx)
	if err != nil {
		return datasetdto.DatasetOutput{}, err
	}
	for _, ds := range datasets {
		if ds.ID == datasetID {
			return ds, nil
		}
	}
	return datasetdto.DatasetOutput{}, fmt.Errorf("dataset %s: %w", datasetID, apperrors.ErrNotFound)
}

func toSessionOutput(s *domain.Session) dto.SessionOutput {
	return dto.SessionOutput{
		SessionID:        s.SessionID,
		RaterID:          s.RaterID,
		DatasetID:        s.DatasetID,
		Participants:     append([]string(nil), s.AssignedParticipants...),
		ParticipantIndex: s.Position.ParticipantIndex,
		TrialIndex:       s.Position.TrialIndex,
		TotalScored:      s.TotalScored(),
		CreatedAt:        s.CreatedAt,
		LastSaved:        s.LastSaved,
	}
}

func toScoreOutput(participantID string, trialNumber int, rec domain.ScoreRecord) dto.ScoreOutput {
	return dto.ScoreOutput{
		ParticipantID: participantID,
		TrialNumber:   trialNumber,
		Accuracy:      string(rec.Accuracy),
		OnsetMs:       rec.OnsetMs,
		OnsetStatus:   rec.OnsetStatus.String(),
		Note:          rec.Note,
		UpdatedAt:     rec.UpdatedAt,
		Scored:        rec.Scored(),
	}
}
