package dto

import "time"

type ExporterInfo struct {
	Name         string
	Version      string
	Enabled      bool
	Binary       string
	Capabilities []string
}

type DoctorResult struct {
	Name            string
	ChecksumValid   bool
	BinaryReachable bool
	LifecycleOK     bool
	Error           string
}

type TrialReport struct {
	TrialNumber int
	Word        string
	AutoOnsetMs *float64
	Accuracy    string
	OnsetMs     *float64
	OnsetStatus string
	Note        string
}

// ParticipantReportInput leaves CompletedAt zero to stamp it with the
// current time.
type ParticipantReportInput struct {
	RaterID       string
	DatasetID     string
	ParticipantID string
	CompletedAt   time.Time
	Trials        []TrialReport
}

type DeliveryOutput struct {
	Exporter string
	Location string
	Error    string
}
