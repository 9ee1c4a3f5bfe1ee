package dto

type GotoInput struct {
	ParticipantIndex int
	TrialIndex       int
}

type ViewOutput struct {
	Moved            bool
	DatasetID        string
	TestType         string
	ParticipantIndex int
	ParticipantCount int
	TrialIndex       int
	TrialCount       int
	ParticipantID    string
	TrialNumber      int
	Word             string
	ExhibitName      string
	AutoOnsetMs      *float64
	LatencyMs        *float64
	LatencyStatus    string
}
