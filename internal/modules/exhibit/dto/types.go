package dto

type LocateInput struct {
	DatasetID     string
	ParticipantID string
	TrialNumber   int
}

type LocateOutput struct {
	ExhibitName string
	Location    string
	Cached      bool
}
