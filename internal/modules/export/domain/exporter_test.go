package domain_test

import (
	"strings"
	"testing"

	"onsetscore/internal/modules/export/domain"
)

func TestManifestValidate(t *testing.T) {
	t.Parallel()
	valid := domain.Manifest{
		Name:         "jsonl",
		Version:      "1.0.0",
		Binary:       "/tmp/jsonl",
		SHA256:       strings.Repeat("a", 64),
		Capabilities: []domain.Capability{domain.CapabilityParticipantComplete},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid manifest rejected: %v", err)
	}

	cases := map[string]func(m *domain.Manifest){
		"missing name":       func(m *domain.Manifest) { m.Name = "" },
		"upper hex":          func(m *domain.Manifest) { m.SHA256 = strings.Repeat("A", 64) },
		"no capabilities":    func(m *domain.Manifest) { m.Capabilities = nil },
		"unknown capability": func(m *domain.Manifest) { m.Capabilities = []domain.Capability{"command"} },
		"duplicate capability": func(m *domain.Manifest) {
			m.Capabilities = []domain.Capability{domain.CapabilityParticipantComplete, domain.CapabilityParticipantComplete}
		},
	}
	for name, mutate := range cases {
		m := valid
		m.Capabilities = append([]domain.Capability(nil), valid.Capabilities...)
		mutate(&m)
		if err := m.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParticipantReportValidate(t *testing.T) {
	t.Parallel()
	if err := (domain.ParticipantReport{RaterID: "r", DatasetID: "d"}).Validate(); err == nil {
		t.Fatalf("missing participant must fail")
	}
	if err := (domain.ParticipantReport{RaterID: "r", DatasetID: "d", ParticipantID: "P1"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
