package dto

import "time"

type StartInput struct {
	RaterID      string
	DatasetID    string
	Participants []string
}

type ResumeInput struct {
	RaterID   string
	DatasetID string
}

type SessionOutput struct {
	SessionID        string
	RaterID          string
	DatasetID        string
	Participants     []string
	ParticipantIndex int
	TrialIndex       int
	TotalScored      int
	CreatedAt        time.Time
	LastSaved        time.Time
}

type ResumeOutput struct {
	Session SessionOutput
	// Resumed is false when no readable session existed and a new one was
	// started instead.
	Resumed bool
}

type ParticipantStatus struct {
	ID        string
	Trials    int
	Scored    int
	Complete  bool
	Signaled  bool
	HasOrder  bool
	IsCurrent bool
}

type StatusOutput struct {
	Session      SessionOutput
	Participants []ParticipantStatus
}

type SetScoreInput struct {
	ParticipantID string
	TrialNumber   int
	Accuracy      *string
	Note          *string
	// Immediate writes before returning instead of waiting for the
	// debounce window.
	Immediate bool
}

type ScoreOutput struct {
	ParticipantID string
	TrialNumber   int
	Accuracy      string
	OnsetMs       *float64
	OnsetStatus   string
	Note          string
	UpdatedAt     time.Time
	Scored        bool
}
