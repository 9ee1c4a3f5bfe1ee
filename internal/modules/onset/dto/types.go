package dto

import "time"

type TargetInput struct {
	ParticipantID string
	TrialNumber   int
}

type ApplyInput struct {
	ParticipantID string
	TrialNumber   int
	Action        string
	ValueMs       *float64
}

type OnsetOutput struct {
	ParticipantID string
	TrialNumber   int
	AutoOnsetMs   *float64
	OnsetMs       *float64
	OnsetStatus   string
	Accuracy      string
	ClickToSet    bool
	// Applied is false when a surface change was ignored.
	Applied   bool
	UpdatedAt time.Time
}
