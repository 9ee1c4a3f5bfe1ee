package dto

type DatasetOutput struct {
	ID           string
	Label        string
	TestType     string
	Timing       string
	Participants []string
}

type ParticipantInput struct {
	DatasetID     string
	ParticipantID string
}

type TrialOutput struct {
	Number        int
	Word          string
	WordID        string
	ListID        string
	ExhibitName   string
	ExhibitURL    string
	AutoOnsetMs   *float64
	LatencyMs     *float64
	LatencyStatus string
}

type ParticipantOutput struct {
	ID        string
	DatasetID string
	Trials    []TrialOutput
}

type TranslationOutput struct {
	Word        string
	Translation string
	Found       bool
}
