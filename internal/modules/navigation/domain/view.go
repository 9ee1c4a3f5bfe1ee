package domain

import (
	datasetdomain "onsetscore/internal/modules/dataset/domain"
	sessiondomain "onsetscore/internal/modules/session/domain"
)

// View is what the rendering surface receives after a successful navigation.
// Indices are in shuffled space; Trial is the descriptor they map to.
type View struct {
	ParticipantIndex int
	TrialIndex       int
	ParticipantCount int
	Dataset          datasetdomain.Dataset
	Participant      *datasetdomain.Participant
	Trial            datasetdomain.Trial
	Generation       uint64
}

func (v View) TrialCount() int {
	if v.Participant == nil {
		return 0
	}
	return v.Participant.TrialCount()
}

func (v View) IsLastTrial() bool {
	return v.TrialIndex == v.TrialCount()-1
}

// CompletionEvent is emitted once per participant per session when the
// rater leaves a fully scored participant.
type CompletionEvent struct {
	RaterID       string
	DatasetID     string
	ParticipantID string
	Trials        []TrialScore
}

type TrialScore struct {
	TrialNumber int
	Word        string
	AutoOnsetMs *float64
	Score       sessiondomain.ScoreRecord
}
