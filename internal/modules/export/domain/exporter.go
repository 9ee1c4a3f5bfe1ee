package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

type Capability string

const (
	CapabilityParticipantComplete Capability = "participant_complete"
)

var (
	ErrExporterDisabled  = errors.New("exporter is disabled")
	ErrChecksumMismatch  = errors.New("exporter checksum mismatch")
	ErrCapabilityMissing = errors.New("exporter capability missing")
	ErrExporterTimeout   = errors.New("exporter timeout")
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Manifest registers one exporter binary in plugins/plugins.json.
type Manifest struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Binary       string       `json:"binary"`
	SHA256       string       `json:"sha256"`
	Enabled      bool         `json:"enabled"`
	Capabilities []Capability `json:"capabilities"`
}

func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("exporter name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("exporter version is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("exporter binary path is required")
	}
	if !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("exporter sha256 must be lowercase 64-char hex")
	}
	if len(m.Capabilities) == 0 {
		return fmt.Errorf("exporter capabilities are required")
	}
	seen := map[Capability]struct{}{}
	for _, capability := range m.Capabilities {
		if err := capability.Validate(); err != nil {
			return err
		}
		if _, ok := seen[capability]; ok {
			return fmt.Errorf("duplicate capability: %s", capability)
		}
		seen[capability] = struct{}{}
	}
	return nil
}

func (c Capability) Validate() error {
	switch c {
	case CapabilityParticipantComplete:
		return nil
	default:
		return fmt.Errorf("unknown capability: %s", c)
	}
}

func (m Manifest) HasCapability(capability Capability) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

type Metadata struct {
	Name         string
	Version      string
	Capabilities []Capability
}

// ParticipantReport is the payload handed to exporters when a rater leaves
// a fully scored participant.
type ParticipantReport struct {
	RaterID       string
	DatasetID     string
	ParticipantID string
	CompletedAt   time.Time
	Trials        []TrialReport
}

func (r ParticipantReport) Validate() error {
	if r.RaterID == "" || r.DatasetID == "" || r.ParticipantID == "" {
		return fmt.Errorf("report needs rater, dataset and participant")
	}
	return nil
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

// Delivery is one exporter's answer to a report.
type Delivery struct {
	Exporter string
	Location string
	Err      error
}
